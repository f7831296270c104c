package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func strptr(s string) *string { return &s }

// ok asserts an operation returned neither an error nor a blocking
// violation and hands back its entity. It is curried so the service call's
// results can be forwarded directly: ok[Module](t)(f.svc.CreateModule(...)).
func ok[T any](t *testing.T) func(T, Result, error) T {
	return func(v T, res Result, err error) T {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.HasBlocking() {
			t.Fatalf("unexpected blocking violations: %+v", res.Violations)
		}
		return v
	}
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	svc *Service
	now time.Time
}

// newFixture builds an in-memory service with the default rules and the
// reference data the operation tests share: two sites, two farmers, a
// service provider, a seaweed type, the cutting credit type and two free
// modules on the first site.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:   t,
		ctx: context.Background(),
		now: day(1),
	}
	f.svc = NewInMemoryService(nil, WithNowFunc(func() time.Time { return f.now }))
	ok[Site](t)(f.svc.CreateSite(f.ctx, Site{Base: Base{ID: "site-1"}, Name: "Ambanifony", Code: "AMB"}))
	ok[Site](t)(f.svc.CreateSite(f.ctx, Site{Base: Base{ID: "site-2"}, Name: "Ankarana", Code: "ANK"}))
	ok[Farmer](t)(f.svc.CreateFarmer(f.ctx, Farmer{Base: Base{ID: "farmer-1"}, FirstName: "Jean", LastName: "Rakoto", Code: "F001", SiteID: "site-1"}))
	ok[Farmer](t)(f.svc.CreateFarmer(f.ctx, Farmer{Base: Base{ID: "farmer-2"}, FirstName: "Marie", LastName: "Rasoa", Code: "F002", SiteID: "site-1"}))
	ok[ServiceProvider](t)(f.svc.CreateServiceProvider(f.ctx, ServiceProvider{Base: Base{ID: "provider-1"}, Name: "Equipe Coupe", ServiceType: "cutting"}))
	ok[SeaweedType](t)(f.svc.CreateSeaweedType(f.ctx, SeaweedType{Base: Base{ID: "st-1"}, Name: "Cottonii", WetPrice: 500, DryPrice: 2500}))
	ok[CreditType](t)(f.svc.CreateCreditType(f.ctx, CreditType{Base: Base{ID: domain.CreditTypeCuttingService}, Name: "Cutting service"}))
	ok[Module](t)(f.svc.CreateModule(f.ctx, Module{Base: Base{ID: "module-1"}, Code: "AMB-001", SiteID: "site-1", ZoneID: "zone-a", Lines: 10}))
	ok[Module](t)(f.svc.CreateModule(f.ctx, Module{Base: Base{ID: "module-2"}, Code: "AMB-002", SiteID: "site-1", ZoneID: "zone-a", Lines: 10}))
	return f
}

func (f *fixture) module(id string) Module {
	f.t.Helper()
	var module Module
	err := f.svc.View(f.ctx, func(view TransactionView) error {
		m, found := view.FindModule(id)
		if !found {
			f.t.Fatalf("module %s not found", id)
		}
		module = m
		return nil
	})
	if err != nil {
		f.t.Fatalf("view: %v", err)
	}
	return module
}

func (f *fixture) cycles() []CultivationCycle {
	f.t.Helper()
	var cycles []CultivationCycle
	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		cycles = view.ListCycles()
		return nil
	}); err != nil {
		f.t.Fatalf("view: %v", err)
	}
	return cycles
}

func (f *fixture) credits() []FarmerCredit {
	f.t.Helper()
	var credits []FarmerCredit
	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		credits = view.ListFarmerCredits()
		return nil
	}); err != nil {
		f.t.Fatalf("view: %v", err)
	}
	return credits
}

// dropCycles deletes every cultivation cycle behind the service's back,
// leaving operations that reference them dangling.
func (f *fixture) dropCycles() {
	f.t.Helper()
	if _, err := f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		for _, cycle := range tx.Snapshot().ListCycles() {
			if err := tx.DeleteCycle(cycle.ID); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		f.t.Fatalf("drop cycles: %v", err)
	}
}

func (f *fixture) stockMovements() []StockMovement {
	f.t.Helper()
	var movements []StockMovement
	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		movements = view.ListStockMovements()
		return nil
	}); err != nil {
		f.t.Fatalf("view: %v", err)
	}
	return movements
}

func (f *fixture) pressedMovements() []PressedStockMovement {
	f.t.Helper()
	var movements []PressedStockMovement
	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		movements = view.ListPressedStockMovements()
		return nil
	}); err != nil {
		f.t.Fatalf("view: %v", err)
	}
	return movements
}

func lastStatuses(m Module, n int) []ModuleStatus {
	statuses := make([]ModuleStatus, 0, n)
	history := m.StatusHistory
	if len(history) < n {
		n = len(history)
	}
	for _, entry := range history[len(history)-n:] {
		statuses = append(statuses, entry.Status)
	}
	return statuses
}

func TestCreateModuleSeedsHistory(t *testing.T) {
	f := newFixture(t)
	m := f.module("module-1")
	if len(m.StatusHistory) != 2 {
		t.Fatalf("expected seeded history of 2 entries, got %d", len(m.StatusHistory))
	}
	if m.StatusHistory[0].Status != StatusCreated || m.StatusHistory[1].Status != StatusFree {
		t.Fatalf("expected CREATED then FREE, got %v", m.StatusHistory)
	}
	if m.CurrentStatus() != StatusFree {
		t.Fatalf("expected current status FREE, got %s", m.CurrentStatus())
	}
}

func TestCreateModuleUnknownSite(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.CreateModule(f.ctx, Module{Code: "X-001", SiteID: "nope"})
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Entity != EntitySite {
		t.Fatalf("expected site not-found, got %s", nf.Entity)
	}
}

func TestUpdateSeaweedTypePrices(t *testing.T) {
	f := newFixture(t)
	updated := ok[SeaweedType](t)(f.svc.UpdateSeaweedTypePrices(f.ctx, "st-1", 600, 2800, day(10)))
	if updated.WetPrice != 600 || updated.DryPrice != 2800 {
		t.Fatalf("prices not updated: %+v", updated)
	}
	if len(updated.PriceHistory) != 1 {
		t.Fatalf("expected one price history entry, got %d", len(updated.PriceHistory))
	}
	entry := updated.PriceHistory[0]
	if !entry.Date.Equal(day(10)) || entry.WetPrice != 600 || entry.DryPrice != 2800 {
		t.Fatalf("unexpected history entry: %+v", entry)
	}
}

func TestRecordRepaymentUnknownFarmer(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.RecordRepayment(f.ctx, Repayment{FarmerID: "ghost", Amount: 100, Date: day(5)})
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	f := newFixture(t)
	snapshot := f.svc.ExportState()

	other := NewInMemoryService(nil)
	other.ImportState(snapshot)

	if err := other.View(context.Background(), func(view TransactionView) error {
		if _, found := view.FindSite("site-1"); !found {
			t.Fatal("site-1 missing after import")
		}
		if _, found := view.FindModule("module-2"); !found {
			t.Fatal("module-2 missing after import")
		}
		if len(view.ListFarmers()) != 2 {
			t.Fatalf("expected 2 farmers, got %d", len(view.ListFarmers()))
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}
