package fares

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

func newLondonTariff(t *testing.T) *TariffCalculator {
	t.Helper()
	c, err := NewTariffCalculator(LondonTariffTable())
	if err != nil {
		t.Fatalf("NewTariffCalculator() error: %v", err)
	}
	return c
}

func TestSelectBand(t *testing.T) {
	c := newLondonTariff(t)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"weekday morning", londonTime(9, 8, 0), BandWeekdayDay},
		{"weekday 05:00", londonTime(9, 5, 0), BandWeekdayDay},
		{"weekday 04:59", londonTime(9, 4, 59), BandNight},
		{"weekday 19:59", londonTime(9, 19, 59), BandWeekdayDay},
		{"weekday 20:00", londonTime(9, 20, 0), BandNight},
		{"saturday noon", londonTime(13, 12, 0), BandWeekendDay},
		{"sunday 02:00", londonTime(14, 2, 0), BandNight},
		{"sunday 21:00", londonTime(14, 21, 0), BandNight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.SelectBand(tt.at).Name; got != tt.want {
				t.Errorf("SelectBand(%s) = %q, want %q", tt.at, got, tt.want)
			}
		})
	}
}

func TestTariffCalculateFare(t *testing.T) {
	c := newLondonTariff(t)
	weekdayDay := londonTime(9, 12, 0)
	night := londonTime(9, 23, 0)

	tests := []struct {
		name     string
		distance float64
		at       time.Time
		want     float64
		wantBand string
	}{
		{"zero distance is minimum charge", 0, weekdayDay, 3.80, BandWeekdayDay},
		{"short trip is base", 1.5, weekdayDay, 11.60, BandWeekdayDay},
		{"exactly two miles", 2, weekdayDay, 11.60, BandWeekdayDay},
		{"four miles", 4, weekdayDay, 18.40, BandWeekdayDay},
		{"exactly six miles", 6, weekdayDay, 25.20, BandWeekdayDay},
		{"ten miles uses long distance rate", 10, weekdayDay, 41.20, BandWeekdayDay},
		{"ten miles at night", 10, night, 51.28, BandNight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CalculateFare(tt.distance, tt.at)
			if err != nil {
				t.Fatalf("CalculateFare() error: %v", err)
			}
			if !almostEqual(got.Fare, tt.want) {
				t.Errorf("CalculateFare(%v) = %v, want %v", tt.distance, got.Fare, tt.want)
			}
			if got.Band != tt.wantBand {
				t.Errorf("Band = %q, want %q", got.Band, tt.wantBand)
			}
		})
	}
}

func TestTariffBreakdown(t *testing.T) {
	c := newLondonTariff(t)

	got, err := c.CalculateFare(10, londonTime(9, 12, 0))
	if err != nil {
		t.Fatalf("CalculateFare() error: %v", err)
	}
	b := got.Breakdown
	if !almostEqual(b.BaseCharge, 11.60) || !almostEqual(b.AdditionalDistance, 4) || !almostEqual(b.AdditionalRate, 3.40) {
		t.Errorf("breakdown = %+v, want base 11.60, 4 additional miles at 3.40", b)
	}
	if !almostEqual(b.LongDistance, 4) || !almostEqual(b.LongDistanceRate, 4.00) {
		t.Errorf("long distance = %v at %v, want 4 at 4.00", b.LongDistance, b.LongDistanceRate)
	}
	if !almostEqual(b.MinimumCharge, 3.80) {
		t.Errorf("MinimumCharge = %v, want 3.80", b.MinimumCharge)
	}
}

func TestTariffMinimumCharge(t *testing.T) {
	c := newLondonTariff(t)
	for day := 8; day <= 14; day++ {
		for hour := 0; hour < 24; hour++ {
			got, err := c.CalculateFare(0, londonTime(day, hour, 0))
			if err != nil {
				t.Fatalf("CalculateFare(0) error: %v", err)
			}
			if got.Fare != c.MinimumCharge() {
				t.Errorf("CalculateFare(0, day %d hour %d) = %v, want %v", day, hour, got.Fare, c.MinimumCharge())
			}
		}
	}
}

func TestTariffMonotonic(t *testing.T) {
	c := newLondonTariff(t)
	times := []time.Time{londonTime(9, 12, 0), londonTime(9, 23, 0), londonTime(13, 12, 0)}

	for _, at := range times {
		prev := -1.0
		for d := 0.0; d <= 20; d += 0.05 {
			got, err := c.CalculateFare(d, at)
			if err != nil {
				t.Fatalf("CalculateFare(%v) error: %v", d, err)
			}
			if got.Fare < prev {
				t.Fatalf("fare decreased at %v miles (%s): %v < %v", d, at, got.Fare, prev)
			}
			prev = got.Fare
		}
	}
}

func TestTariffInvalidDistance(t *testing.T) {
	c := newLondonTariff(t)
	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := c.CalculateFare(d, londonTime(9, 12, 0)); !errors.Is(err, journey.ErrInvalidInput) {
			t.Errorf("CalculateFare(%v) error = %v, want invalid input", d, err)
		}
		if _, err := c.EstimateRange(d); !errors.Is(err, journey.ErrInvalidInput) {
			t.Errorf("EstimateRange(%v) error = %v, want invalid input", d, err)
		}
	}
}

func TestEstimateRange(t *testing.T) {
	c := newLondonTariff(t)

	got, err := c.EstimateRange(4)
	if err != nil {
		t.Fatalf("EstimateRange() error: %v", err)
	}
	if !almostEqual(got.Min, 18.40) || got.MinBand != BandWeekdayDay {
		t.Errorf("Min = %v (%s), want 18.40 (%s)", got.Min, got.MinBand, BandWeekdayDay)
	}
	if !almostEqual(got.Max, 25.76) || got.MaxBand != BandNight {
		t.Errorf("Max = %v (%s), want 25.76 (%s)", got.Max, got.MaxBand, BandNight)
	}
}

func TestTariffTableValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TariffTable)
	}{
		{"gap in weekday hours", func(tt *TariffTable) { tt.Windows = tt.Windows[1:] }},
		{"overlapping windows", func(tt *TariffTable) {
			tt.Windows = append(tt.Windows, TariffWindow{StartHour: 10, EndHour: 11, Band: BandNight})
		}},
		{"unknown band", func(tt *TariffTable) { tt.Windows[0].Band = "holiday" }},
		{"duplicate band", func(tt *TariffTable) { tt.Bands = append(tt.Bands, tt.Bands[0]) }},
		{"negative rate", func(tt *TariffTable) { tt.Bands[0].PerMile = -1 }},
		{"long distance before base distance", func(tt *TariffTable) { tt.LongDistanceFrom = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := LondonTariffTable()
			tt.mutate(&table)
			if _, err := NewTariffCalculator(table); !errors.Is(err, journey.ErrInvalidInput) {
				t.Errorf("NewTariffCalculator() error = %v, want invalid input", err)
			}
		})
	}
}
