package core

import (
	"context"
	"fmt"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// CreateModule persists a new module. An empty status history is seeded with
// CREATED followed by FREE so the module is immediately available.
func (s *Service) CreateModule(ctx context.Context, module Module) (Module, Result, error) {
	var created Module
	res, err := s.run(ctx, "create_module", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSite(module.SiteID); !ok {
			return ErrNotFound{Entity: EntitySite, ID: module.SiteID}
		}
		if len(module.StatusHistory) == 0 {
			now := s.now()
			module.AppendStatus(StatusCreated, now, "")
			module.AppendStatus(StatusFree, now, "")
		}
		var err error
		created, err = tx.CreateModule(module)
		return err
	})
	return created, res, err
}

// AssignModule assigns a farmer to a free module and appends ASSIGNED.
func (s *Service) AssignModule(ctx context.Context, moduleID, farmerID string, date time.Time, notes string) (Module, Result, error) {
	var updated Module
	res, err := s.run(ctx, "assign_module", func(tx Transaction) error {
		farmer, ok := tx.Snapshot().FindFarmer(farmerID)
		if !ok {
			return ErrNotFound{Entity: EntityFarmer, ID: farmerID}
		}
		if notes == "" {
			notes = fmt.Sprintf("Assigned to %s", farmer.FullName())
		}
		var err error
		updated, err = tx.UpdateModule(moduleID, func(m *Module) error {
			m.FarmerID = &farmerID
			m.AppendStatus(StatusAssigned, date, notes)
			return nil
		})
		return err
	})
	return updated, res, err
}

// FreeModule clears the assigned farmer and appends FREE. A missing module
// is recorded as a consistency gap, not an error.
func (s *Service) FreeModule(ctx context.Context, moduleID string, date time.Time, notes string) (Result, error) {
	return s.run(ctx, "free_module", func(tx Transaction) error {
		freeModuleTx(tx, moduleID, date, notes)
		return nil
	})
}

// StartModuleMaintenance takes a module out of rotation. The farmer
// reference is cleared; maintenance closes any farming relationship.
func (s *Service) StartModuleMaintenance(ctx context.Context, moduleID string, date time.Time, notes string) (Module, Result, error) {
	var updated Module
	res, err := s.run(ctx, "start_module_maintenance", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateModule(moduleID, func(m *Module) error {
			m.FarmerID = nil
			m.AppendStatus(StatusMaintenance, date, notes)
			return nil
		})
		return err
	})
	return updated, res, err
}

// EndModuleMaintenance returns a module to FREE.
func (s *Service) EndModuleMaintenance(ctx context.Context, moduleID string, date time.Time) (Module, Result, error) {
	var updated Module
	res, err := s.run(ctx, "end_module_maintenance", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateModule(moduleID, func(m *Module) error {
			if m.CurrentStatus() != StatusMaintenance {
				return fmt.Errorf("module %s is not under maintenance", m.Code)
			}
			m.AppendStatus(StatusFree, date, "")
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteModule removes a module together with every cultivation cycle that
// ran on it. Cutting operations referencing those cycles are left in place;
// the service history they record stands on its own.
func (s *Service) DeleteModule(ctx context.Context, moduleID string) (Result, error) {
	return s.run(ctx, "delete_module", func(tx Transaction) error {
		return deleteModuleTx(tx, moduleID)
	})
}

// DeleteModules removes a batch of modules with the same cascade. Unknown
// ids are recorded as gaps so a stale selection still removes the modules
// that remain.
func (s *Service) DeleteModules(ctx context.Context, moduleIDs []string) (Result, error) {
	return s.run(ctx, "delete_modules", func(tx Transaction) error {
		for _, id := range moduleIDs {
			if _, ok := tx.Snapshot().FindModule(id); !ok {
				tx.RecordGap(domain.NewIntegrityGap(EntityModule, id, "module missing while deleting batch"))
				continue
			}
			if err := deleteModuleTx(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteModuleTx(tx Transaction, moduleID string) error {
	if _, ok := tx.Snapshot().FindModule(moduleID); !ok {
		return ErrNotFound{Entity: EntityModule, ID: moduleID}
	}
	tx.DeleteCyclesByModule(moduleID)
	return tx.DeleteModule(moduleID)
}

// freeModuleTx clears the farmer reference and appends FREE within an open
// transaction. Dangling module references are recorded as gaps so the rest
// of the calling cascade still completes.
func freeModuleTx(tx Transaction, moduleID string, date time.Time, notes string) {
	if _, ok := tx.Snapshot().FindModule(moduleID); !ok {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, "module missing while freeing"))
		return
	}
	if _, err := tx.UpdateModule(moduleID, func(m *Module) error {
		m.FarmerID = nil
		m.AppendStatus(StatusFree, date, notes)
		return nil
	}); err != nil {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, err.Error()))
	}
}

// appendModuleStatusTx appends one status entry within an open transaction,
// recording a gap when the module is gone.
func appendModuleStatusTx(tx Transaction, moduleID string, status ModuleStatus, date time.Time, notes string) {
	if _, ok := tx.Snapshot().FindModule(moduleID); !ok {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, fmt.Sprintf("module missing while appending %s", status)))
		return
	}
	if _, err := tx.UpdateModule(moduleID, func(m *Module) error {
		m.AppendStatus(status, date, notes)
		return nil
	}); err != nil {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, err.Error()))
	}
}
