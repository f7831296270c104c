package domain

import "context"

// Rule inspects a transaction's pending state and change feed at commit
// time. A rule reports violations on its Result; an error aborts the
// evaluation outright.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error)
}

// RulesEngine runs every registered rule at commit.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with no rules registered.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register adds a rule. Rules run in registration order.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate runs all rules against the pending view and merges their
// violations into one Result.
func (e *RulesEngine) Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
