// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory implementation for transaction semantics and snapshots the full
// state to a single bucket table after every successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/infra/persistence/memory"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store and
// hydrates it from any existing snapshot at path.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "seaweedcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot domain.Snapshot
	targets := snapshotBuckets(&snapshot)
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		target, ok := targets[bucket]
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		loaded = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	targets := snapshotBuckets(&snapshot)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range bucketNames {
		data, err := json.Marshal(targets[bucket])
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// RunInTransaction applies the provided function within a transaction, then
// snapshots state to SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// bucketNames orders the persisted collections. Bucket names match the JSON
// field names of domain.Snapshot so durable payloads and exported snapshots
// stay interchangeable.
var bucketNames = []string{
	"sites",
	"farmers",
	"serviceProviders",
	"seaweedTypes",
	"creditTypes",
	"modules",
	"cultivationCycles",
	"cuttingOperations",
	"stockMovements",
	"pressedStockMovements",
	"farmerCredits",
	"repayments",
	"farmerDeliveries",
	"pressingSlips",
	"exportDocuments",
	"siteTransfers",
}

func snapshotBuckets(s *domain.Snapshot) map[string]any {
	return map[string]any{
		"sites":                 &s.Sites,
		"farmers":               &s.Farmers,
		"serviceProviders":      &s.ServiceProviders,
		"seaweedTypes":          &s.SeaweedTypes,
		"creditTypes":           &s.CreditTypes,
		"modules":               &s.Modules,
		"cultivationCycles":     &s.CultivationCycles,
		"cuttingOperations":     &s.CuttingOperations,
		"stockMovements":        &s.StockMovements,
		"pressedStockMovements": &s.PressedStockMovements,
		"farmerCredits":         &s.FarmerCredits,
		"repayments":            &s.Repayments,
		"farmerDeliveries":      &s.FarmerDeliveries,
		"pressingSlips":         &s.PressingSlips,
		"exportDocuments":       &s.ExportDocuments,
		"siteTransfers":         &s.SiteTransfers,
	}
}
