package core

import (
	"context"
	"fmt"
)

// cycleStatusRank orders the stored cycle statuses along the canonical
// sequence. GROWING never appears here: it is derived for display only.
var cycleStatusRank = map[ModuleStatus]int{
	StatusPlanted:   0,
	StatusHarvested: 1,
	StatusDrying:    2,
	StatusBagging:   3,
	StatusBagged:    4,
	StatusInStock:   5,
	StatusExported:  6,
}

// CycleStatusOrderRule blocks cycle updates that move the stored status
// backwards along the canonical sequence or set a status that is never
// stored on a cycle.
func CycleStatusOrderRule() Rule {
	return cycleStatusOrderRule{}
}

type cycleStatusOrderRule struct{}

func (cycleStatusOrderRule) Name() string { return "cycle_status_order" }

func (cycleStatusOrderRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityCultivationCycle {
			continue
		}
		after, ok := change.After.(CultivationCycle)
		if !ok {
			continue
		}
		afterRank, valid := cycleStatusRank[after.Status]
		if !valid {
			res.Violations = append(res.Violations, Violation{
				Rule:     "cycle_status_order",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("cycle %s is set to invalid status %s", after.ID, after.Status),
				Entity:   EntityCultivationCycle,
				EntityID: after.ID,
			})
			continue
		}
		if change.Action != ActionUpdate {
			continue
		}
		before, ok := change.Before.(CultivationCycle)
		if !ok {
			continue
		}
		beforeRank, valid := cycleStatusRank[before.Status]
		if !valid {
			continue
		}
		if afterRank < beforeRank {
			res.Violations = append(res.Violations, Violation{
				Rule:     "cycle_status_order",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("cannot move cycle %s from %s back to %s", after.ID, before.Status, after.Status),
				Entity:   EntityCultivationCycle,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
