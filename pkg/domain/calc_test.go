package domain

import (
	"math"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDurationDays(t *testing.T) {
	start := date(2024, 3, 1)
	if got := DurationDays(start, start.AddDate(0, 0, 30)); got != 30 {
		t.Fatalf("expected 30 days, got %d", got)
	}
	if got := DurationDays(start.AddDate(0, 0, 30), start); got != 30 {
		t.Fatalf("expected order-independence, got %d", got)
	}
	if got := DurationDays(start, start.Add(36*time.Hour)); got != 2 {
		t.Fatalf("expected partial days to round up, got %d", got)
	}
	if got := DurationDays(start, start); got != 0 {
		t.Fatalf("expected 0 for equal dates, got %d", got)
	}
}

func TestCalculateSGR(t *testing.T) {
	rate, ok := CalculateSGR(100, 150, 30)
	if !ok {
		t.Fatal("expected defined rate")
	}
	want := (math.Log(150) - math.Log(100)) / 30 * 100
	if math.Abs(rate-want) > 1e-9 {
		t.Fatalf("rate = %f, want %f", rate, want)
	}
	if math.Abs(rate-1.3515) > 0.001 {
		t.Fatalf("rate = %f, want about 1.3516", rate)
	}
}

func TestCalculateSGRUndefined(t *testing.T) {
	cases := []struct {
		name    string
		initial float64
		final   float64
		days    int
	}{
		{"zero initial", 0, 150, 30},
		{"negative initial", -5, 150, 30},
		{"zero final", 100, 0, 30},
		{"zero days", 100, 150, 0},
		{"negative days", 100, 150, -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := CalculateSGR(tc.initial, tc.final, tc.days); ok {
				t.Fatal("expected undefined rate")
			}
		})
	}
}

func TestCycleSGR(t *testing.T) {
	harvest := date(2024, 4, 15)
	weight := 180.0
	cycle := CultivationCycle{
		PlantingDate:    date(2024, 3, 1),
		InitialWeight:   90,
		HarvestDate:     &harvest,
		HarvestedWeight: &weight,
	}
	rate, ok := CycleSGR(cycle)
	if !ok {
		t.Fatal("expected defined rate")
	}
	want := (math.Log(180) - math.Log(90)) / 45 * 100
	if math.Abs(rate-want) > 1e-9 {
		t.Fatalf("rate = %f, want %f", rate, want)
	}

	if _, ok := CycleSGR(CultivationCycle{PlantingDate: date(2024, 3, 1), InitialWeight: 90}); ok {
		t.Fatal("expected undefined rate before harvest")
	}
}

func TestNetHarvestWeight(t *testing.T) {
	if got := NetHarvestWeight(120, 20); got != 100 {
		t.Fatalf("net = %f, want 100", got)
	}
	if got := NetHarvestWeight(10, 25); got != 0 {
		t.Fatalf("net floored at zero, got %f", got)
	}
}

func TestDisplayStatusGrowing(t *testing.T) {
	cycle := CultivationCycle{Status: StatusPlanted, PlantingDate: date(2024, 3, 1)}
	if got := DisplayStatus(cycle, date(2024, 3, 1)); got != StatusPlanted {
		t.Fatalf("day zero should render PLANTED, got %s", got)
	}
	if got := DisplayStatus(cycle, date(2024, 3, 10)); got != StatusGrowing {
		t.Fatalf("past day one should render GROWING, got %s", got)
	}
	harvested := CultivationCycle{Status: StatusHarvested, PlantingDate: date(2024, 3, 1)}
	if got := DisplayStatus(harvested, date(2024, 3, 10)); got != StatusHarvested {
		t.Fatalf("only PLANTED derives GROWING, got %s", got)
	}
}

func TestCycleAge(t *testing.T) {
	harvest := date(2024, 3, 21)
	cycle := CultivationCycle{PlantingDate: date(2024, 3, 1), HarvestDate: &harvest}
	if got := CycleAge(cycle, date(2024, 6, 1)); got != 20 {
		t.Fatalf("age should stop at harvest, got %d", got)
	}
	open := CultivationCycle{PlantingDate: date(2024, 3, 1)}
	if got := CycleAge(open, date(2024, 3, 11)); got != 10 {
		t.Fatalf("age = %d, want 10", got)
	}
}

func TestStatusEventDatePreference(t *testing.T) {
	now := date(2025, 1, 1)
	cycle := CultivationCycle{}
	if got := cycle.StatusEventDate(now); !got.Equal(now) {
		t.Fatalf("empty cycle should fall back to now, got %v", got)
	}
	harvest := date(2024, 4, 1)
	cycle.HarvestDate = &harvest
	if got := cycle.StatusEventDate(now); !got.Equal(harvest) {
		t.Fatalf("expected harvest date, got %v", got)
	}
	drying := date(2024, 4, 5)
	cycle.DryingStartDate = &drying
	if got := cycle.StatusEventDate(now); !got.Equal(drying) {
		t.Fatalf("expected drying date, got %v", got)
	}
	stock := date(2024, 5, 1)
	cycle.StockDate = &stock
	if got := cycle.StatusEventDate(now); !got.Equal(stock) {
		t.Fatalf("expected stock date, got %v", got)
	}
}

func TestAmendPlantingTimestamp(t *testing.T) {
	m := Module{}
	m.AppendStatus(StatusCreated, date(2024, 1, 1), "")
	m.AppendStatus(StatusFree, date(2024, 1, 1), "")
	m.AppendStatus(StatusAssigned, date(2024, 2, 1), "")
	m.AppendStatus(StatusPlanted, date(2024, 2, 1), "")

	amended := m.AmendPlantingTimestamp(date(2024, 2, 10))
	if !amended {
		t.Fatal("expected amendment")
	}
	if !m.StatusHistory[3].Date.Equal(date(2024, 2, 10)) {
		t.Fatalf("PLANTED date not amended: %v", m.StatusHistory[3].Date)
	}
	if !m.StatusHistory[2].Date.Equal(date(2024, 2, 10)) {
		t.Fatalf("paired ASSIGNED date not amended: %v", m.StatusHistory[2].Date)
	}
	if len(m.StatusHistory) != 4 {
		t.Fatalf("amendment must not append entries, got %d", len(m.StatusHistory))
	}
	if m.AmendPlantingTimestamp(date(2024, 2, 10)) {
		t.Fatal("same date should be a no-op")
	}
}
