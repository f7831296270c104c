package domain

import "time"

// Window is a closed [Start, End] reporting interval. Records dated strictly
// before Start feed the opening balance; records within the window feed
// entries and exits.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether a date falls within the window, inclusive.
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// StockBalance is the reconstructed position of one ledger dimension over a
// window. Weight and count columns are accumulated independently; the count
// column is bags on the site ledger and bales on the warehouse ledger.
type StockBalance struct {
	OpeningKg    float64
	OpeningCount int
	EntriesKg    float64
	EntriesCount int
	ExitsKg      float64
	ExitsCount   int
	ClosingKg    float64
	ClosingCount int
}

func (b *StockBalance) close() {
	b.ClosingKg = b.OpeningKg + b.EntriesKg - b.ExitsKg
	b.ClosingCount = b.OpeningCount + b.EntriesCount - b.ExitsCount
}

func (b *StockBalance) addIn(kg *float64, count *int, during bool) {
	if during {
		b.EntriesKg += deref(kg)
		b.EntriesCount += derefInt(count)
	} else {
		b.OpeningKg += deref(kg)
		b.OpeningCount += derefInt(count)
	}
}

func (b *StockBalance) addOut(kg *float64, count *int, during bool) {
	if during {
		b.ExitsKg += deref(kg)
		b.ExitsCount += derefInt(count)
	} else {
		b.OpeningKg -= deref(kg)
		b.OpeningCount -= derefInt(count)
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// SiteStockBalance reconstructs the on-site ledger position for one
// (site, seaweed type) dimension over a window by scanning the movement log.
// The closing identity closing == opening + entries − exits holds exactly
// for the weight and count columns independently.
func SiteStockBalance(movements []StockMovement, siteID, seaweedTypeID string, w Window) StockBalance {
	var b StockBalance
	for _, m := range movements {
		if m.SiteID != siteID || m.SeaweedTypeID != seaweedTypeID {
			continue
		}
		before := m.Date.Before(w.Start)
		during := w.Contains(m.Date)
		if !before && !during {
			continue
		}
		if m.InKg != nil || m.InBags != nil {
			b.addIn(m.InKg, m.InBags, during)
		}
		if m.OutKg != nil || m.OutBags != nil {
			b.addOut(m.OutKg, m.OutBags, during)
		}
	}
	b.close()
	return b
}

// WarehouseSubLedger selects one of the two parallel warehouse positions.
type WarehouseSubLedger string

// The warehouse tracks bulk (unpressed) and pressed stock separately.
const (
	SubLedgerBulk    WarehouseSubLedger = "bulk"
	SubLedgerPressed WarehouseSubLedger = "pressed"
)

// warehouseRoute maps each warehouse movement kind to the sub-ledger it
// feeds and its direction. Kinds are disjoint between sub-ledgers; a
// pressing run writes one consumption (bulk out) and one production
// (pressed in) record in the same transaction.
var warehouseRoute = map[PressedStockMovementType]struct {
	sub WarehouseSubLedger
	in  bool
}{
	PressedBulkInFromSite: {SubLedgerBulk, true},
	PressedFarmerIn:       {SubLedgerBulk, true},
	PressedConsumption:    {SubLedgerBulk, false},
	PressedInitial:        {SubLedgerPressed, true},
	PressedPressingIn:     {SubLedgerPressed, true},
	PressedAdjustmentIn:   {SubLedgerPressed, true},
	PressedExportOut:      {SubLedgerPressed, false},
	PressedReturnToSite:   {SubLedgerPressed, false},
	PressedAdjustmentOut:  {SubLedgerPressed, false},
}

// WarehouseBalance reconstructs one warehouse sub-ledger position for a
// seaweed type over a window. Counts are bales.
func WarehouseBalance(movements []PressedStockMovement, seaweedTypeID string, sub WarehouseSubLedger, w Window) StockBalance {
	var b StockBalance
	for _, m := range movements {
		if m.SeaweedTypeID != seaweedTypeID {
			continue
		}
		route, ok := warehouseRoute[m.Type]
		if !ok || route.sub != sub {
			continue
		}
		before := m.Date.Before(w.Start)
		during := w.Contains(m.Date)
		if !before && !during {
			continue
		}
		if route.in {
			b.addIn(m.InKg, m.InBales, during)
		} else {
			b.addOut(m.OutKg, m.OutBales, during)
		}
	}
	b.close()
	return b
}
