package core

import (
	"errors"
	"strings"
	"testing"
)

func cutInput() CuttingOperationInput {
	return CuttingOperationInput{
		Date:                day(2),
		SiteID:              "site-1",
		ServiceProviderID:   "provider-1",
		SeaweedTypeID:       "st-1",
		ModuleCuts:          []ModuleCut{{ModuleID: "module-1", LinesCut: 10}},
		UnitPrice:           100,
		FarmerID:            "farmer-1",
		BeneficiaryFarmerID: strptr("farmer-2"),
		InitialWeightKg:     120,
	}
}

func TestCreateCuttingOperationCascade(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))

	if op.TotalAmount != 1000 {
		t.Fatalf("expected total 1000, got %v", op.TotalAmount)
	}

	credits := f.credits()
	if len(credits) != 1 {
		t.Fatalf("expected one credit, got %d", len(credits))
	}
	credit := credits[0]
	if credit.FarmerID != "farmer-2" {
		t.Fatalf("credit went to %s, want the beneficiary", credit.FarmerID)
	}
	if credit.TotalAmount != 1000 {
		t.Fatalf("expected credit amount 1000, got %v", credit.TotalAmount)
	}
	if credit.RelatedOperationID == nil || *credit.RelatedOperationID != op.ID {
		t.Fatalf("credit not linked to operation: %+v", credit.RelatedOperationID)
	}

	cycles := f.cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(cycles))
	}
	cycle := cycles[0]
	if cycle.ModuleID != "module-1" || cycle.Status != StatusPlanted {
		t.Fatalf("unexpected cycle: %+v", cycle)
	}
	if cycle.CuttingOperationID == nil || *cycle.CuttingOperationID != op.ID {
		t.Fatalf("cycle not linked to operation")
	}
	if cycle.LinesPlanted != 10 || cycle.InitialWeight != 120 {
		t.Fatalf("cycle planting details wrong: %+v", cycle)
	}

	m := f.module("module-1")
	if m.FarmerID == nil || *m.FarmerID != "farmer-1" {
		t.Fatalf("module not assigned to farmer-1")
	}
	got := lastStatuses(m, 3)
	want := []ModuleStatus{StatusCutting, StatusAssigned, StatusPlanted}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected status tail %v, got %v", want, got)
		}
	}
}

func TestUpdateCuttingOperationReplacesCredits(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))

	input := cutInput()
	input.ModuleCuts = []ModuleCut{{ModuleID: "module-1", LinesCut: 8}}
	for i := 0; i < 3; i++ {
		updated := ok[CuttingOperation](t)(f.svc.UpdateCuttingOperation(f.ctx, op.ID, input))
		if updated.TotalAmount != 800 {
			t.Fatalf("expected total 800, got %v", updated.TotalAmount)
		}
	}

	credits := f.credits()
	if len(credits) != 1 {
		t.Fatalf("repeated edits duplicated credits: %d", len(credits))
	}
	if credits[0].TotalAmount != 800 {
		t.Fatalf("expected credit 800 after edit, got %v", credits[0].TotalAmount)
	}

	cycles := f.cycles()
	if len(cycles) != 1 || cycles[0].LinesPlanted != 8 {
		t.Fatalf("cycle not synced to edited cut: %+v", cycles)
	}
}

func TestUpdateCuttingOperationMovesModule(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))

	input := cutInput()
	input.ModuleCuts = []ModuleCut{{ModuleID: "module-2", LinesCut: 10}}
	ok[CuttingOperation](t)(f.svc.UpdateCuttingOperation(f.ctx, op.ID, input))

	old := f.module("module-1")
	if old.FarmerID != nil {
		t.Fatalf("old module still assigned")
	}
	lastOld := old.StatusHistory[len(old.StatusHistory)-1]
	if lastOld.Status != StatusFree || !strings.Contains(lastOld.Notes, "moved to module AMB-002") {
		t.Fatalf("old module not freed with move note: %+v", lastOld)
	}

	next := f.module("module-2")
	if next.FarmerID == nil || *next.FarmerID != "farmer-1" {
		t.Fatalf("new module not assigned")
	}
	got := lastStatuses(next, 2)
	want := []ModuleStatus{StatusAssigned, StatusPlanted}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected status tail %v on new module, got %v", want, got)
		}
	}
	for _, entry := range next.StatusHistory {
		if entry.Status == StatusCutting {
			t.Fatalf("move must not record a cut on the new module: %+v", next.StatusHistory)
		}
	}

	cycles := f.cycles()
	if len(cycles) != 1 || cycles[0].ModuleID != "module-2" {
		t.Fatalf("cycle did not follow the module: %+v", cycles)
	}
}

func TestUpdateCuttingOperationDateOnlyAmendsPlanting(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))
	before := f.module("module-1")

	newDate := day(6)
	input := cutInput()
	input.PlantingDate = &newDate
	ok[CuttingOperation](t)(f.svc.UpdateCuttingOperation(f.ctx, op.ID, input))

	after := f.module("module-1")
	if len(after.StatusHistory) != len(before.StatusHistory) {
		t.Fatalf("date edit appended history: %d -> %d", len(before.StatusHistory), len(after.StatusHistory))
	}
	last := after.StatusHistory[len(after.StatusHistory)-1]
	if last.Status != StatusPlanted || !last.Date.Equal(newDate) {
		t.Fatalf("PLANTED entry not amended: %+v", last)
	}

	cycles := f.cycles()
	if !cycles[0].PlantingDate.Equal(newDate) {
		t.Fatalf("cycle planting date not updated: %v", cycles[0].PlantingDate)
	}
}

func TestDeleteCuttingOperationCascade(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))

	res, err := f.svc.DeleteCuttingOperation(f.ctx, op.ID, day(9))
	if err != nil || res.HasBlocking() {
		t.Fatalf("delete failed: %v %+v", err, res.Violations)
	}

	if got := f.cycles(); len(got) != 0 {
		t.Fatalf("cycle survived deletion: %+v", got)
	}
	if got := f.credits(); len(got) != 0 {
		t.Fatalf("credits survived deletion: %+v", got)
	}
	m := f.module("module-1")
	if m.FarmerID != nil || m.CurrentStatus() != StatusFree {
		t.Fatalf("module not freed: farmer=%v status=%s", m.FarmerID, m.CurrentStatus())
	}
}

func TestDeleteCuttingOperationFreesModuleWithoutCycle(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))
	f.dropCycles()

	res, err := f.svc.DeleteCuttingOperation(f.ctx, op.ID, day(9))
	if err != nil || res.HasBlocking() {
		t.Fatalf("delete failed: %v %+v", err, res.Violations)
	}
	if len(res.Gaps()) == 0 {
		t.Fatalf("missing cycle must be recorded as a gap: %+v", res.Violations)
	}

	m := f.module("module-1")
	if m.FarmerID != nil || m.CurrentStatus() != StatusFree {
		t.Fatalf("module not freed despite missing cycle: farmer=%v status=%s", m.FarmerID, m.CurrentStatus())
	}
	if got := f.credits(); len(got) != 0 {
		t.Fatalf("credits survived deletion: %+v", got)
	}
}

func TestUpdateCuttingOperationWithoutCycleStillMovesModule(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))
	f.dropCycles()

	input := cutInput()
	input.ModuleCuts = []ModuleCut{{ModuleID: "module-2", LinesCut: 10}}
	_, res, err := f.svc.UpdateCuttingOperation(f.ctx, op.ID, input)
	if err != nil || res.HasBlocking() {
		t.Fatalf("update failed: %v %+v", err, res.Violations)
	}
	if len(res.Gaps()) == 0 {
		t.Fatalf("missing cycle must be recorded as a gap: %+v", res.Violations)
	}

	old := f.module("module-1")
	if old.FarmerID != nil || old.CurrentStatus() != StatusFree {
		t.Fatalf("old module not freed: farmer=%v status=%s", old.FarmerID, old.CurrentStatus())
	}
	next := f.module("module-2")
	if next.FarmerID == nil || *next.FarmerID != "farmer-1" || next.CurrentStatus() != StatusPlanted {
		t.Fatalf("new module not planted: farmer=%v status=%s", next.FarmerID, next.CurrentStatus())
	}
}

func TestDeleteCuttingOperationMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteCuttingOperation(f.ctx, "ghost", day(3))
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkCuttingOperationsPaid(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))

	res, err := f.svc.MarkCuttingOperationsPaid(f.ctx, []string{op.ID, "ghost"}, day(20))
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if len(res.Gaps()) != 1 {
		t.Fatalf("expected one gap for the unknown id, got %+v", res.Violations)
	}

	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		updated, found := view.FindCuttingOperation(op.ID)
		if !found {
			t.Fatal("operation missing")
		}
		if !updated.IsPaid || updated.PaymentDate == nil || !updated.PaymentDate.Equal(day(20)) {
			t.Fatalf("payment not stamped: %+v", updated)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCuttingWithoutBeneficiarySkipsCredits(t *testing.T) {
	f := newFixture(t)
	input := cutInput()
	input.BeneficiaryFarmerID = nil
	ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, input))
	if got := f.credits(); len(got) != 0 {
		t.Fatalf("expected no credits without a beneficiary, got %d", len(got))
	}
}

func TestCreateCuttingOperationValidation(t *testing.T) {
	f := newFixture(t)

	input := cutInput()
	input.ModuleCuts = nil
	if _, _, err := f.svc.CreateCuttingOperation(f.ctx, input); err == nil {
		t.Fatal("expected error for empty module cuts")
	}

	input = cutInput()
	input.ServiceProviderID = "ghost"
	_, _, err := f.svc.CreateCuttingOperation(f.ctx, input)
	var nf ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != EntityServiceProvider {
		t.Fatalf("expected provider not-found, got %v", err)
	}
}

func TestCreateCuttingOperationDefaultPlantingDate(t *testing.T) {
	f := newFixture(t)
	input := cutInput()
	input.PlantingDate = nil
	ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, input))

	cycles := f.cycles()
	if !cycles[0].PlantingDate.Equal(input.Date) {
		t.Fatalf("planting date should default to the operation date, got %v", cycles[0].PlantingDate)
	}
}
