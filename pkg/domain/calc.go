package domain

import (
	"math"
	"time"
)

// DurationDays returns the whole number of days between two dates, rounding
// partial days up. The order of arguments does not matter.
func DurationDays(start, end time.Time) int {
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// CycleAge returns the cycle's age in days as of the given date, or up to
// the harvest date when the cycle has been harvested.
func CycleAge(c CultivationCycle, asOf time.Time) int {
	end := asOf
	if c.HarvestDate != nil {
		end = *c.HarvestDate
	}
	return DurationDays(c.PlantingDate, end)
}

// NetHarvestWeight returns the saleable yield: harvested weight minus the
// cuttings removed at harvest, floored at zero.
func NetHarvestWeight(grossKg, cuttingsKg float64) float64 {
	net := grossKg - cuttingsKg
	if net < 0 {
		return 0
	}
	return net
}

// CalculateSGR computes the Specific Growth Rate as a percentage per day:
//
//	SGR = (ln(W2) − ln(W1)) / days × 100
//
// The second return value is false when either weight is non-positive or the
// duration is zero or negative; the rate is undefined in those cases.
func CalculateSGR(initialWeight, finalWeight float64, days int) (float64, bool) {
	if initialWeight <= 0 || finalWeight <= 0 || days <= 0 {
		return 0, false
	}
	rate := (math.Log(finalWeight) - math.Log(initialWeight)) / float64(days) * 100
	return rate, true
}

// CycleSGR computes the specific growth rate of a harvested cycle from its
// initial and harvested weights over its duration.
func CycleSGR(c CultivationCycle) (float64, bool) {
	if c.HarvestDate == nil || c.HarvestedWeight == nil {
		return 0, false
	}
	return CalculateSGR(c.InitialWeight, *c.HarvestedWeight, DurationDays(c.PlantingDate, *c.HarvestDate))
}

// DisplayStatus returns the status a cycle renders with. GROWING is never
// stored: any PLANTED cycle past its first day displays as GROWING.
func DisplayStatus(c CultivationCycle, asOf time.Time) ModuleStatus {
	if c.Status == StatusPlanted && DurationDays(c.PlantingDate, asOf) > 1 {
		return StatusGrowing
	}
	return c.Status
}
