package blob

import (
	memorystore "github.com/assamipatrick/seaweed-ambanifony-sub000/internal/infra/blob/memory"
)

// NewMemory returns an in-memory blob.Store suitable for tests.
func NewMemory() Store { return memorystore.New() }
