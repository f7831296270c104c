package core

import (
	"context"
	"fmt"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// MovementShapeRule blocks ledger entries that do not carry exactly one of
// the in pair or the out pair, or that carry negative components. Reports
// depend on this shape holding for every record.
func MovementShapeRule() Rule {
	return movementShapeRule{}
}

type movementShapeRule struct{}

func (movementShapeRule) Name() string { return "movement_shape" }

func (movementShapeRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Action != ActionCreate {
			continue
		}
		switch change.Entity {
		case EntityStockMovement:
			m, ok := change.After.(StockMovement)
			if !ok {
				continue
			}
			if msg := checkMovementShape(m.InKg, m.InBags, m.OutKg, m.OutBags); msg != "" {
				res.Violations = append(res.Violations, Violation{
					Rule:     "movement_shape",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("stock movement %s: %s", m.ID, msg),
					Entity:   EntityStockMovement,
					EntityID: m.ID,
				})
			}
		case EntityPressedStockMovement:
			m, ok := change.After.(PressedStockMovement)
			if !ok {
				continue
			}
			if msg := checkMovementShape(m.InKg, m.InBales, m.OutKg, m.OutBales); msg != "" {
				res.Violations = append(res.Violations, Violation{
					Rule:     "movement_shape",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("pressed stock movement %s: %s", m.ID, msg),
					Entity:   EntityPressedStockMovement,
					EntityID: m.ID,
				})
			}
		}
	}
	return res, nil
}

func checkMovementShape(inKg *float64, inCount *int, outKg *float64, outCount *int) string {
	hasIn := inKg != nil || inCount != nil
	hasOut := outKg != nil || outCount != nil
	switch {
	case hasIn && hasOut:
		return "carries both in and out components"
	case !hasIn && !hasOut:
		return "carries neither in nor out components"
	}
	if (inKg != nil && *inKg < 0) || (outKg != nil && *outKg < 0) {
		return "negative weight component"
	}
	if (inCount != nil && *inCount < 0) || (outCount != nil && *outCount < 0) {
		return "negative count component"
	}
	return ""
}

var _ domain.Rule = movementShapeRule{}
