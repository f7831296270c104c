package core

import (
	"testing"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

func TestSiteStockBalanceQuery(t *testing.T) {
	f := newFixture(t)
	ok[StockMovement](t)(f.svc.AddInitialSiteStock(f.ctx, "site-1", "st-1", day(1), 1000, 40))
	ok[StockMovement](t)(f.svc.AddSiteStockAdjustment(f.ctx, "site-1", "st-1", day(10), 200, 8, true, "recount"))
	ok[StockMovement](t)(f.svc.AddSiteStockAdjustment(f.ctx, "site-1", "st-1", day(12), 300, 12, false, "spoilage"))

	balance, err := f.svc.SiteStockBalance(f.ctx, "site-1", "st-1", Window{Start: day(5), End: day(15)})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.OpeningKg != 1000 || balance.OpeningCount != 40 {
		t.Fatalf("opening = %v/%v, want 1000/40", balance.OpeningKg, balance.OpeningCount)
	}
	if balance.EntriesKg != 200 || balance.ExitsKg != 300 {
		t.Fatalf("entries/exits = %v/%v, want 200/300", balance.EntriesKg, balance.ExitsKg)
	}
	if balance.ClosingKg != 900 || balance.ClosingCount != 36 {
		t.Fatalf("closing = %v/%v, want 900/36", balance.ClosingKg, balance.ClosingCount)
	}
}

func TestWarehouseStockBalanceQuery(t *testing.T) {
	f := newFixture(t)
	ok[PressedStockMovement](t)(f.svc.AddInitialWarehouseStock(f.ctx, "st-1", day(1), 600, 24))
	ok[FarmerDelivery](t)(f.svc.RecordFarmerDelivery(f.ctx, FarmerDelivery{
		SlipNo:        "BL-010",
		Date:          day(3),
		FarmerID:      "farmer-1",
		SeaweedTypeID: "st-1",
		TotalWeightKg: 700,
		TotalBags:     28,
		Destination:   domain.DeliverToWarehouse,
	}))
	ok[PressingSlip](t)(f.svc.CreatePressingSlip(f.ctx, slipFixture()))

	window := Window{Start: day(1), End: day(20)}
	bulk, err := f.svc.WarehouseStockBalance(f.ctx, "st-1", domain.SubLedgerBulk, window)
	if err != nil {
		t.Fatalf("bulk balance: %v", err)
	}
	if bulk.EntriesKg != 700 || bulk.ExitsKg != 500 || bulk.ClosingKg != 200 {
		t.Fatalf("bulk = %+v, want entries 700 exits 500 closing 200", bulk)
	}

	pressed, err := f.svc.WarehouseStockBalance(f.ctx, "st-1", domain.SubLedgerPressed, window)
	if err != nil {
		t.Fatalf("pressed balance: %v", err)
	}
	if pressed.EntriesKg != 1080 || pressed.ClosingKg != 1080 || pressed.ClosingCount != 36 {
		t.Fatalf("pressed = %+v, want entries 1080 closing 1080/36", pressed)
	}
}

func TestFarmerCreditBalanceQuery(t *testing.T) {
	f := newFixture(t)
	ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))
	ok[Repayment](t)(f.svc.RecordRepayment(f.ctx, Repayment{FarmerID: "farmer-2", Amount: 400, Date: day(10)}))

	balance, err := f.svc.FarmerCreditBalance(f.ctx, "farmer-2", day(30))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 600 {
		t.Fatalf("balance = %v, want 600", balance)
	}

	before, err := f.svc.FarmerCreditBalance(f.ctx, "farmer-2", day(5))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if before != 1000 {
		t.Fatalf("balance before repayment = %v, want 1000", before)
	}
}

func TestCreditBalancesByTypeQuery(t *testing.T) {
	f := newFixture(t)
	ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))
	ok[Repayment](t)(f.svc.RecordRepayment(f.ctx, Repayment{FarmerID: "farmer-2", Amount: 250, Date: day(10)}))

	balances, err := f.svc.CreditBalancesByType(f.ctx, day(30))
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected one credit type, got %d", len(balances))
	}
	b := balances[0]
	if b.CreditTypeID != domain.CreditTypeCuttingService {
		t.Fatalf("unexpected credit type %s", b.CreditTypeID)
	}
	if b.Issued != 1000 || b.Balance != 750 || b.Farmers != 1 {
		t.Fatalf("unexpected balance: %+v", b)
	}
}
