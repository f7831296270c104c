package core

import (
	"errors"
	"testing"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

func mustBlock(t *testing.T, res Result, err error, rule string) {
	t.Helper()
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	for _, v := range res.Violations {
		if v.Rule == rule && v.Severity == SeverityBlock {
			return
		}
	}
	t.Fatalf("no blocking %s violation in %+v", rule, res.Violations)
}

func TestMovementShapeRuleBlocks(t *testing.T) {
	f := newFixture(t)
	store := f.svc.Store()
	weight := 10.0
	bags := 1

	res, err := store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.AppendStockMovement(StockMovement{
			Date: day(2), SiteID: "site-1", SeaweedTypeID: "st-1",
			Type: domain.StockAdjustmentIn,
			InKg: &weight, InBags: &bags, OutKg: &weight, OutBags: &bags,
		})
		return err
	})
	mustBlock(t, res, err, "movement_shape")

	res, err = store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.AppendStockMovement(StockMovement{
			Date: day(2), SiteID: "site-1", SeaweedTypeID: "st-1",
			Type: domain.StockAdjustmentIn,
		})
		return err
	})
	mustBlock(t, res, err, "movement_shape")

	negative := -5.0
	res, err = store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.AppendStockMovement(StockMovement{
			Date: day(2), SiteID: "site-1", SeaweedTypeID: "st-1",
			Type: domain.StockAdjustmentIn,
			InKg: &negative, InBags: &bags,
		})
		return err
	})
	mustBlock(t, res, err, "movement_shape")

	if got := f.stockMovements(); len(got) != 0 {
		t.Fatalf("blocked transactions must not commit, got %d movements", len(got))
	}
}

func TestModuleAssignmentRuleBlocks(t *testing.T) {
	f := newFixture(t)
	store := f.svc.Store()

	res, err := store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateModule("module-1", func(m *Module) error {
			farmerID := "farmer-1"
			m.FarmerID = &farmerID
			return nil
		})
		return err
	})
	mustBlock(t, res, err, "module_assignment")

	res, err = store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateModule("module-1", func(m *Module) error {
			m.AppendStatus(StatusAssigned, day(3), "")
			return nil
		})
		return err
	})
	mustBlock(t, res, err, "module_assignment")

	m := f.module("module-1")
	if m.FarmerID != nil || m.CurrentStatus() != StatusFree {
		t.Fatalf("blocked writes leaked into state: %+v", m)
	}
}

func TestCycleStatusOrderRuleBlocks(t *testing.T) {
	f := newFixture(t)
	ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))
	cycle := f.cycles()[0]
	ok[CultivationCycle](t)(f.svc.RecordHarvest(f.ctx, cycle.ID, HarvestInput{Date: day(32), HarvestedWeightKg: 200, LinesHarvested: 10}))

	store := f.svc.Store()
	res, err := store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateCycle(cycle.ID, func(c *CultivationCycle) error {
			c.Status = StatusPlanted
			return nil
		})
		return err
	})
	mustBlock(t, res, err, "cycle_status_order")

	res, err = store.RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateCycle(cycle.ID, func(c *CultivationCycle) error {
			c.Status = StatusGrowing
			return nil
		})
		return err
	})
	mustBlock(t, res, err, "cycle_status_order")
}
