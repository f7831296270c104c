package domain

import "time"

// CreditBalance returns a farmer's outstanding balance as of a date:
// Σ credits.totalAmount − Σ repayments.amount over records dated on or
// before asOf. An empty farmerID aggregates across all farmers.
func CreditBalance(credits []FarmerCredit, repayments []Repayment, farmerID string, asOf time.Time) float64 {
	balance := 0.0
	for _, c := range credits {
		if farmerID != "" && c.FarmerID != farmerID {
			continue
		}
		if c.Date.After(asOf) {
			continue
		}
		balance += c.TotalAmount
	}
	for _, r := range repayments {
		if farmerID != "" && r.FarmerID != farmerID {
			continue
		}
		if r.Date.After(asOf) {
			continue
		}
		balance -= r.Amount
	}
	return balance
}

// CreditTypeBalance is one credit type's share of the aggregate position.
type CreditTypeBalance struct {
	CreditTypeID string
	Issued       float64
	Balance      float64
	Farmers      int
}

// CreditBalanceByType splits the aggregate credit position across credit
// types as of a date. Repayments carry no credit type, so the repaid amount
// is apportioned pro-rata to each type's share of the total issued amount.
// This split serves aggregate reporting only, never individual statements.
func CreditBalanceByType(credits []FarmerCredit, repayments []Repayment, types []CreditType, asOf time.Time) []CreditTypeBalance {
	totalIssued := 0.0
	totalRepaid := 0.0
	for _, c := range credits {
		if !c.Date.After(asOf) {
			totalIssued += c.TotalAmount
		}
	}
	for _, r := range repayments {
		if !r.Date.After(asOf) {
			totalRepaid += r.Amount
		}
	}

	out := make([]CreditTypeBalance, 0, len(types))
	for _, ct := range types {
		issued := 0.0
		farmers := map[string]struct{}{}
		for _, c := range credits {
			if c.CreditTypeID != ct.ID || c.Date.After(asOf) {
				continue
			}
			issued += c.TotalAmount
			farmers[c.FarmerID] = struct{}{}
		}
		repaid := 0.0
		if totalIssued > 0 {
			repaid = totalRepaid * issued / totalIssued
		}
		out = append(out, CreditTypeBalance{
			CreditTypeID: ct.ID,
			Issued:       issued,
			Balance:      issued - repaid,
			Farmers:      len(farmers),
		})
	}
	return out
}
