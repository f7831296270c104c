package core

import (
	"context"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// SiteStockBalance reconstructs one site ledger position over a window.
func (s *Service) SiteStockBalance(ctx context.Context, siteID, seaweedTypeID string, w Window) (StockBalance, error) {
	var balance StockBalance
	err := s.store.View(ctx, func(view TransactionView) error {
		balance = domain.SiteStockBalance(view.ListStockMovements(), siteID, seaweedTypeID, w)
		return nil
	})
	return balance, err
}

// WarehouseStockBalance reconstructs one warehouse sub-ledger position over
// a window.
func (s *Service) WarehouseStockBalance(ctx context.Context, seaweedTypeID string, sub domain.WarehouseSubLedger, w Window) (StockBalance, error) {
	var balance StockBalance
	err := s.store.View(ctx, func(view TransactionView) error {
		balance = domain.WarehouseBalance(view.ListPressedStockMovements(), seaweedTypeID, sub, w)
		return nil
	})
	return balance, err
}

// FarmerCreditBalance returns one farmer's outstanding balance as of a date.
// An empty farmer id aggregates over all farmers.
func (s *Service) FarmerCreditBalance(ctx context.Context, farmerID string, asOf time.Time) (float64, error) {
	var balance float64
	err := s.store.View(ctx, func(view TransactionView) error {
		balance = domain.CreditBalance(view.ListFarmerCredits(), view.ListRepayments(), farmerID, asOf)
		return nil
	})
	return balance, err
}

// CreditBalancesByType returns the aggregate outstanding balance split by
// credit type, repayments pro-rated across types.
func (s *Service) CreditBalancesByType(ctx context.Context, asOf time.Time) ([]domain.CreditTypeBalance, error) {
	var balances []domain.CreditTypeBalance
	err := s.store.View(ctx, func(view TransactionView) error {
		balances = domain.CreditBalanceByType(view.ListFarmerCredits(), view.ListRepayments(), view.ListCreditTypes(), asOf)
		return nil
	})
	return balances, err
}

// CycleGrowthRate returns a cycle's specific growth rate in percent per day.
// The second return is false when the cycle lacks the weights or elapsed
// days the formula needs.
func (s *Service) CycleGrowthRate(ctx context.Context, cycleID string) (float64, bool, error) {
	var (
		rate    float64
		defined bool
	)
	err := s.store.View(ctx, func(view TransactionView) error {
		cycle, ok := view.FindCycle(cycleID)
		if !ok {
			return ErrNotFound{Entity: EntityCultivationCycle, ID: cycleID}
		}
		rate, defined = domain.CycleSGR(cycle)
		return nil
	})
	return rate, defined, err
}

// ModuleDisplayStatus returns a module's status with the derived GROWING
// phase applied: a planted module past its first day displays as GROWING
// without a history entry.
func (s *Service) ModuleDisplayStatus(ctx context.Context, moduleID string) (ModuleStatus, error) {
	var status ModuleStatus
	err := s.store.View(ctx, func(view TransactionView) error {
		module, ok := view.FindModule(moduleID)
		if !ok {
			return ErrNotFound{Entity: EntityModule, ID: moduleID}
		}
		status = module.CurrentStatus()
		if status != StatusPlanted {
			return nil
		}
		for _, c := range view.ListCycles() {
			if c.ModuleID == moduleID && c.Status == StatusPlanted {
				status = domain.DisplayStatus(c, s.now())
				break
			}
		}
		return nil
	})
	return status, err
}
