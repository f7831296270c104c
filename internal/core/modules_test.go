package core

import (
	"errors"
	"strings"
	"testing"
)

func TestAssignAndFreeModule(t *testing.T) {
	f := newFixture(t)

	assigned := ok[Module](t)(f.svc.AssignModule(f.ctx, "module-1", "farmer-1", day(3), ""))
	if assigned.FarmerID == nil || *assigned.FarmerID != "farmer-1" {
		t.Fatalf("farmer not set: %+v", assigned.FarmerID)
	}
	last := assigned.StatusHistory[len(assigned.StatusHistory)-1]
	if last.Status != StatusAssigned {
		t.Fatalf("expected ASSIGNED, got %s", last.Status)
	}
	if last.Notes != "Assigned to Jean Rakoto" {
		t.Fatalf("unexpected default note %q", last.Notes)
	}

	res, err := f.svc.FreeModule(f.ctx, "module-1", day(4), "season over")
	if err != nil || res.HasBlocking() {
		t.Fatalf("free failed: %v %+v", err, res.Violations)
	}
	freed := f.module("module-1")
	if freed.FarmerID != nil {
		t.Fatalf("farmer still set after free: %v", *freed.FarmerID)
	}
	if freed.CurrentStatus() != StatusFree {
		t.Fatalf("expected FREE, got %s", freed.CurrentStatus())
	}
}

func TestFreeMissingModuleRecordsGap(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.FreeModule(f.ctx, "ghost", day(3), "")
	if err != nil {
		t.Fatalf("expected gap, got error %v", err)
	}
	if len(res.Gaps()) != 1 {
		t.Fatalf("expected one gap, got %+v", res.Violations)
	}
}

func TestModuleMaintenance(t *testing.T) {
	f := newFixture(t)
	ok[Module](t)(f.svc.AssignModule(f.ctx, "module-1", "farmer-1", day(3), ""))

	m := ok[Module](t)(f.svc.StartModuleMaintenance(f.ctx, "module-1", day(5), "hull damage"))
	if m.FarmerID != nil {
		t.Fatalf("maintenance must clear the farmer, got %v", *m.FarmerID)
	}
	if m.CurrentStatus() != StatusMaintenance {
		t.Fatalf("expected MAINTENANCE, got %s", m.CurrentStatus())
	}

	m = ok[Module](t)(f.svc.EndModuleMaintenance(f.ctx, "module-1", day(8)))
	if m.CurrentStatus() != StatusFree {
		t.Fatalf("expected FREE after maintenance, got %s", m.CurrentStatus())
	}
}

func TestEndMaintenanceOnFreeModuleFails(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.EndModuleMaintenance(f.ctx, "module-1", day(3))
	if err == nil || !strings.Contains(err.Error(), "not under maintenance") {
		t.Fatalf("expected maintenance guard error, got %v", err)
	}
}

func TestDeleteModuleCascadesCycles(t *testing.T) {
	f := newFixture(t)
	op := ok[CuttingOperation](t)(f.svc.CreateCuttingOperation(f.ctx, cutInput()))

	res, err := f.svc.DeleteModule(f.ctx, "module-1")
	if err != nil || res.HasBlocking() {
		t.Fatalf("delete failed: %v %+v", err, res.Violations)
	}

	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		if _, found := view.FindModule("module-1"); found {
			t.Fatal("module survived deletion")
		}
		if _, found := view.FindCuttingOperation(op.ID); !found {
			t.Fatal("cutting operation must outlive its module")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := f.cycles(); len(got) != 0 {
		t.Fatalf("cycles survived module deletion: %+v", got)
	}
}

func TestDeleteModuleMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteModule(f.ctx, "ghost")
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteModulesSkipsUnknownIDs(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.DeleteModules(f.ctx, []string{"module-2", "ghost"})
	if err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if len(res.Gaps()) != 1 {
		t.Fatalf("expected one gap for the unknown id, got %+v", res.Violations)
	}

	if err := f.svc.View(f.ctx, func(view TransactionView) error {
		if _, found := view.FindModule("module-2"); found {
			t.Fatal("module-2 survived batch deletion")
		}
		if _, found := view.FindModule("module-1"); !found {
			t.Fatal("module-1 must remain")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}
