package core

import (
	"context"
	"fmt"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// PlantCycleInput carries the fields for a manually planted cultivation
// cycle, one not derived from a cutting operation.
type PlantCycleInput struct {
	ModuleID        string
	SeaweedTypeID   string
	FarmerID        string
	PlantingDate    time.Time
	InitialWeightKg float64
	LinesPlanted    int
	Notes           string
}

// PlantCycle opens a new cultivation cycle on a module. The module is
// assigned to the farmer and its history gains ASSIGNED and PLANTED entries
// dated at the planting date.
func (s *Service) PlantCycle(ctx context.Context, input PlantCycleInput) (CultivationCycle, Result, error) {
	var cycle CultivationCycle
	res, err := s.run(ctx, "plant_cycle", func(tx Transaction) error {
		view := tx.Snapshot()
		module, ok := view.FindModule(input.ModuleID)
		if !ok {
			return ErrNotFound{Entity: EntityModule, ID: input.ModuleID}
		}
		farmer, ok := view.FindFarmer(input.FarmerID)
		if !ok {
			return ErrNotFound{Entity: EntityFarmer, ID: input.FarmerID}
		}
		if _, ok := view.FindSeaweedType(input.SeaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: input.SeaweedTypeID}
		}
		created, err := tx.CreateCycle(CultivationCycle{
			ModuleID:      input.ModuleID,
			SeaweedTypeID: input.SeaweedTypeID,
			PlantingDate:  input.PlantingDate,
			Status:        StatusPlanted,
			InitialWeight: input.InitialWeightKg,
			LinesPlanted:  input.LinesPlanted,
		})
		if err != nil {
			return err
		}
		cycle = created
		_, err = tx.UpdateModule(module.ID, func(m *Module) error {
			farmerID := farmer.ID
			m.FarmerID = &farmerID
			if m.CurrentStatus() != StatusAssigned {
				m.AppendStatus(StatusAssigned, input.PlantingDate, fmt.Sprintf("Assigned to %s", farmer.FullName()))
			}
			m.AppendStatus(StatusPlanted, input.PlantingDate, input.Notes)
			return nil
		})
		return err
	})
	return cycle, res, err
}

// HarvestInput carries the measured outcome of a harvest.
type HarvestInput struct {
	Date              time.Time
	HarvestedWeightKg float64
	LinesHarvested    int
	CuttingsTakenKg   float64
}

// RecordHarvest advances a cycle to HARVESTED and mirrors the status onto
// the module history.
func (s *Service) RecordHarvest(ctx context.Context, cycleID string, input HarvestInput) (CultivationCycle, Result, error) {
	return s.advanceCycle(ctx, "record_harvest", cycleID, func(c *CultivationCycle) error {
		date := input.Date
		weight := input.HarvestedWeightKg
		c.HarvestDate = &date
		c.HarvestedWeight = &weight
		c.LinesHarvested = input.LinesHarvested
		c.CuttingsTakenAtHarvestKg = input.CuttingsTakenKg
		c.Status = StatusHarvested
		return nil
	}, StatusHarvested)
}

// StartDrying advances a cycle to DRYING.
func (s *Service) StartDrying(ctx context.Context, cycleID string, date time.Time) (CultivationCycle, Result, error) {
	return s.advanceCycle(ctx, "start_drying", cycleID, func(c *CultivationCycle) error {
		d := date
		c.DryingStartDate = &d
		c.Status = StatusDrying
		return nil
	}, StatusDrying)
}

// CompleteDrying records the drying outcome. The cycle stays in DRYING until
// bagging starts, so no module history entry is written.
func (s *Service) CompleteDrying(ctx context.Context, cycleID string, date time.Time, dryWeightKg float64) (CultivationCycle, Result, error) {
	var cycle CultivationCycle
	res, err := s.run(ctx, "complete_drying", func(tx Transaction) error {
		updated, err := tx.UpdateCycle(cycleID, func(c *CultivationCycle) error {
			d := date
			w := dryWeightKg
			c.DryingCompletionDate = &d
			c.ActualDryWeightKg = &w
			return nil
		})
		cycle = updated
		return err
	})
	return cycle, res, err
}

// StartBagging advances a cycle to BAGGING.
func (s *Service) StartBagging(ctx context.Context, cycleID string, date time.Time) (CultivationCycle, Result, error) {
	return s.advanceCycle(ctx, "start_bagging", cycleID, func(c *CultivationCycle) error {
		d := date
		c.BaggingStartDate = &d
		c.Status = StatusBagging
		return nil
	}, StatusBagging)
}

// CompleteBagging advances a cycle to BAGGED with the bag count and weight
// that later feed the stock ledger entry.
func (s *Service) CompleteBagging(ctx context.Context, cycleID string, date time.Time, bags int, weightKg float64) (CultivationCycle, Result, error) {
	return s.advanceCycle(ctx, "complete_bagging", cycleID, func(c *CultivationCycle) error {
		d := date
		c.BaggedDate = &d
		c.BaggedBagsCount = bags
		c.BaggedWeightKg = weightKg
		c.Status = StatusBagged
		return nil
	}, StatusBagged)
}

// TransferBaggedToStock moves a bagged cycle's production into the on-site
// stock ledger. The cycle reaches IN_STOCK, the module mirrors the entry and
// is then freed for the next cycle, and one BAGGING_TRANSFER entry is
// appended to the site ledger.
func (s *Service) TransferBaggedToStock(ctx context.Context, cycleID string, date time.Time) (CultivationCycle, Result, error) {
	var cycle CultivationCycle
	res, err := s.run(ctx, "transfer_bagged_to_stock", func(tx Transaction) error {
		updated, err := tx.UpdateCycle(cycleID, func(c *CultivationCycle) error {
			if c.Status != StatusBagged {
				return fmt.Errorf("cycle %q is %s, only BAGGED cycles can be stocked", c.ID, c.Status)
			}
			d := date
			c.StockDate = &d
			c.Status = StatusInStock
			return nil
		})
		if err != nil {
			return err
		}
		cycle = updated

		module, ok := tx.Snapshot().FindModule(updated.ModuleID)
		if !ok {
			tx.RecordGap(domain.NewIntegrityGap(EntityModule, updated.ModuleID, "module missing while transferring bagged stock"))
			return nil
		}
		if _, err := tx.UpdateModule(module.ID, func(m *Module) error {
			m.AppendStatus(StatusInStock, date, "")
			m.FarmerID = nil
			m.AppendStatus(StatusFree, date, fmt.Sprintf("Cycle %s stocked", updated.ID))
			return nil
		}); err != nil {
			return err
		}
		relatedID := updated.ID
		weight := updated.BaggedWeightKg
		bags := updated.BaggedBagsCount
		_, err = tx.AppendStockMovement(StockMovement{
			Date:          date,
			SiteID:        module.SiteID,
			SeaweedTypeID: updated.SeaweedTypeID,
			Type:          domain.StockBaggingIn,
			Designation:   fmt.Sprintf("Bagged production of module %s", module.Code),
			InKg:          &weight,
			InBags:        &bags,
			RelatedID:     &relatedID,
		})
		return err
	})
	return cycle, res, err
}

// ExportCycleStock exports an in-stock cycle's production off site. The
// module keeps its history as recorded at stocking time; only the site
// ledger moves.
func (s *Service) ExportCycleStock(ctx context.Context, cycleID string, date time.Time) (CultivationCycle, Result, error) {
	var cycle CultivationCycle
	res, err := s.run(ctx, "export_cycle_stock", func(tx Transaction) error {
		updated, err := tx.UpdateCycle(cycleID, func(c *CultivationCycle) error {
			if c.Status != StatusInStock {
				return fmt.Errorf("cycle %q is %s, only IN_STOCK cycles can be exported", c.ID, c.Status)
			}
			d := date
			c.ExportDate = &d
			c.Status = StatusExported
			return nil
		})
		if err != nil {
			return err
		}
		cycle = updated

		module, ok := tx.Snapshot().FindModule(updated.ModuleID)
		if !ok {
			tx.RecordGap(domain.NewIntegrityGap(EntityModule, updated.ModuleID, "module missing while exporting cycle stock"))
			return nil
		}
		relatedID := updated.ID
		weight := updated.BaggedWeightKg
		bags := updated.BaggedBagsCount
		_, err = tx.AppendStockMovement(StockMovement{
			Date:          date,
			SiteID:        module.SiteID,
			SeaweedTypeID: updated.SeaweedTypeID,
			Type:          domain.StockExportOut,
			Designation:   fmt.Sprintf("Export of module %s production", module.Code),
			OutKg:         &weight,
			OutBags:       &bags,
			RelatedID:     &relatedID,
		})
		return err
	})
	return cycle, res, err
}

// CycleDetailsInput carries the editable planting details of a cycle.
type CycleDetailsInput struct {
	PlantingDate    time.Time
	SeaweedTypeID   string
	LinesPlanted    int
	InitialWeightKg float64
}

// UpdateCycleDetails edits a cycle's planting details and keeps the linked
// cutting operation consistent: the primary cut line count, the seaweed
// type, the recomputed total and the derived credits all follow the cycle.
// A planting date change rewrites the module's last PLANTED timestamp in
// place rather than appending history.
func (s *Service) UpdateCycleDetails(ctx context.Context, cycleID string, input CycleDetailsInput) (CultivationCycle, Result, error) {
	var cycle CultivationCycle
	res, err := s.run(ctx, "update_cycle_details", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSeaweedType(input.SeaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: input.SeaweedTypeID}
		}
		previous, ok := tx.Snapshot().FindCycle(cycleID)
		if !ok {
			return ErrNotFound{Entity: EntityCultivationCycle, ID: cycleID}
		}
		dateChanged := !previous.PlantingDate.Equal(input.PlantingDate)

		updated, err := tx.UpdateCycle(cycleID, func(c *CultivationCycle) error {
			c.PlantingDate = input.PlantingDate
			c.SeaweedTypeID = input.SeaweedTypeID
			c.LinesPlanted = input.LinesPlanted
			c.InitialWeight = input.InitialWeightKg
			return nil
		})
		if err != nil {
			return err
		}
		cycle = updated

		if dateChanged {
			if _, ok := tx.Snapshot().FindModule(updated.ModuleID); !ok {
				tx.RecordGap(domain.NewIntegrityGap(EntityModule, updated.ModuleID, "module missing while amending planting date"))
			} else if _, err := tx.UpdateModule(updated.ModuleID, func(m *Module) error {
				m.AmendPlantingTimestamp(input.PlantingDate)
				return nil
			}); err != nil {
				return err
			}
		}

		if updated.CuttingOperationID == nil {
			return nil
		}
		opID := *updated.CuttingOperationID
		if _, ok := tx.Snapshot().FindCuttingOperation(opID); !ok {
			tx.RecordGap(domain.NewIntegrityGap(EntityCuttingOperation, opID, "cutting operation missing while syncing cycle details"))
			return nil
		}
		op, err := tx.UpdateCuttingOperation(opID, func(o *CuttingOperation) error {
			o.SeaweedTypeID = input.SeaweedTypeID
			o.Date = input.PlantingDate
			for i := range o.ModuleCuts {
				if o.ModuleCuts[i].ModuleID == updated.ModuleID {
					o.ModuleCuts[i].LinesCut = input.LinesPlanted
					break
				}
			}
			o.TotalAmount = o.CutTotal()
			return nil
		})
		if err != nil {
			return err
		}
		return replaceOperationCredits(tx, op)
	})
	return cycle, res, err
}

// DeleteCycle removes a cycle and frees its module. The cutting operation
// that created the cycle, if any, is left in place.
func (s *Service) DeleteCycle(ctx context.Context, cycleID string, date time.Time) (Result, error) {
	return s.run(ctx, "delete_cycle", func(tx Transaction) error {
		cycle, ok := tx.Snapshot().FindCycle(cycleID)
		if !ok {
			return ErrNotFound{Entity: EntityCultivationCycle, ID: cycleID}
		}
		freeModuleTx(tx, cycle.ModuleID, date, fmt.Sprintf("Cycle %s deleted", cycle.ID))
		return tx.DeleteCycle(cycleID)
	})
}

// advanceCycle applies one status mutation and mirrors the resulting status
// onto the module history, dated at the cycle's most specific event date.
func (s *Service) advanceCycle(ctx context.Context, operation, cycleID string, mutate func(*CultivationCycle) error, status ModuleStatus) (CultivationCycle, Result, error) {
	var cycle CultivationCycle
	res, err := s.run(ctx, operation, func(tx Transaction) error {
		updated, err := tx.UpdateCycle(cycleID, mutate)
		if err != nil {
			return err
		}
		cycle = updated
		appendModuleStatusTx(tx, updated.ModuleID, status, updated.StatusEventDate(s.now()), "")
		return nil
	})
	return cycle, res, err
}
