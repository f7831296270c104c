package domain

import (
	"math"
	"testing"
)

func credit(farmerID, creditTypeID string, day int, amount float64) FarmerCredit {
	return FarmerCredit{
		FarmerID:     farmerID,
		CreditTypeID: creditTypeID,
		Date:         date(2024, 1, 1).AddDate(0, 0, day),
		TotalAmount:  amount,
	}
}

func repayment(farmerID string, day int, amount float64) Repayment {
	return Repayment{
		FarmerID: farmerID,
		Date:     date(2024, 1, 1).AddDate(0, 0, day),
		Amount:   amount,
	}
}

func TestCreditBalancePerFarmer(t *testing.T) {
	credits := []FarmerCredit{
		credit("f1", "ct-1", 0, 1000),
		credit("f1", "ct-2", 5, 500),
		credit("f2", "ct-1", 5, 300),
	}
	repayments := []Repayment{
		repayment("f1", 10, 400),
		repayment("f2", 10, 300),
	}
	asOf := date(2024, 2, 1)
	if got := CreditBalance(credits, repayments, "f1", asOf); got != 1100 {
		t.Fatalf("f1 balance = %f, want 1100", got)
	}
	if got := CreditBalance(credits, repayments, "f2", asOf); got != 0 {
		t.Fatalf("f2 balance = %f, want 0", got)
	}
	if got := CreditBalance(credits, repayments, "", asOf); got != 1100 {
		t.Fatalf("aggregate balance = %f, want 1100", got)
	}
}

func TestCreditBalanceAsOfCutoff(t *testing.T) {
	credits := []FarmerCredit{credit("f1", "ct-1", 0, 1000), credit("f1", "ct-1", 40, 999)}
	repayments := []Repayment{repayment("f1", 50, 100)}
	if got := CreditBalance(credits, repayments, "f1", date(2024, 1, 20)); got != 1000 {
		t.Fatalf("later records must not count, got %f", got)
	}
}

func TestCreditBalanceByTypeProRata(t *testing.T) {
	types := []CreditType{
		{Base: Base{ID: "ct-1"}, Name: "Cutting service"},
		{Base: Base{ID: "ct-2"}, Name: "Cash advance"},
	}
	credits := []FarmerCredit{
		credit("f1", "ct-1", 0, 750),
		credit("f2", "ct-1", 1, 250),
		credit("f1", "ct-2", 2, 1000),
	}
	// Repaid 400 against 2000 issued: ct-1 carries half the issue, so it
	// absorbs half the repayment.
	repayments := []Repayment{repayment("f1", 10, 400)}

	out := CreditBalanceByType(credits, repayments, types, date(2024, 2, 1))
	if len(out) != 2 {
		t.Fatalf("expected 2 type balances, got %d", len(out))
	}
	if out[0].CreditTypeID != "ct-1" || out[0].Issued != 1000 || out[0].Farmers != 2 {
		t.Fatalf("ct-1 summary wrong: %+v", out[0])
	}
	if math.Abs(out[0].Balance-800) > 1e-9 {
		t.Fatalf("ct-1 balance = %f, want 800", out[0].Balance)
	}
	if math.Abs(out[1].Balance-800) > 1e-9 {
		t.Fatalf("ct-2 balance = %f, want 800", out[1].Balance)
	}
	// Pro-rata split preserves the aggregate position.
	total := out[0].Balance + out[1].Balance
	if math.Abs(total-CreditBalance(credits, repayments, "", date(2024, 2, 1))) > 1e-9 {
		t.Fatalf("type split must sum to aggregate, got %f", total)
	}
}

func TestCreditBalanceByTypeNoIssues(t *testing.T) {
	types := []CreditType{{Base: Base{ID: "ct-1"}}}
	out := CreditBalanceByType(nil, []Repayment{repayment("f1", 0, 100)}, types, date(2024, 2, 1))
	if out[0].Balance != 0 {
		t.Fatalf("no issues means zero balance, got %f", out[0].Balance)
	}
}
