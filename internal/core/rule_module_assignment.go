package core

import (
	"context"
	"fmt"
)

// unassignedStatuses are the statuses under which a module must carry no
// farmer reference. Everywhere else a farmer must be set.
var unassignedStatuses = map[ModuleStatus]struct{}{
	StatusCreated:     {},
	StatusFree:        {},
	StatusMaintenance: {},
}

// ModuleAssignmentRule blocks module writes that break the assignment
// invariant: the farmer reference is non-nil exactly when the latest status
// history entry is an assigned-phase status.
func ModuleAssignmentRule() Rule {
	return moduleAssignmentRule{}
}

type moduleAssignmentRule struct{}

func (moduleAssignmentRule) Name() string { return "module_assignment" }

func (moduleAssignmentRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityModule || change.Action == ActionDelete {
			continue
		}
		m, ok := change.After.(Module)
		if !ok {
			continue
		}
		status := m.CurrentStatus()
		_, unassigned := unassignedStatuses[status]
		switch {
		case unassigned && m.FarmerID != nil:
			res.Violations = append(res.Violations, Violation{
				Rule:     "module_assignment",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("module %s is %s but still references farmer %s", m.Code, status, *m.FarmerID),
				Entity:   EntityModule,
				EntityID: m.ID,
			})
		case !unassigned && m.FarmerID == nil:
			res.Violations = append(res.Violations, Violation{
				Rule:     "module_assignment",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("module %s is %s without an assigned farmer", m.Code, status),
				Entity:   EntityModule,
				EntityID: m.ID,
			})
		}
	}
	return res, nil
}
