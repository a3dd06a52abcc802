package planner

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/eco"
	"github.com/NERVsystems/journeymcp/pkg/emissions"
	"github.com/NERVsystems/journeymcp/pkg/fares"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/scoring"
)

type testOptions struct {
	fallbackZone int
	workers      int
}

func newTestPlanner(t *testing.T, opts testOptions) *Planner {
	t.Helper()
	table := fares.LondonZoneTable()
	table.FallbackZone = opts.fallbackZone
	zones, err := fares.NewZoneCalculator(table)
	if err != nil {
		t.Fatalf("NewZoneCalculator() error: %v", err)
	}
	tariff, err := fares.NewTariffCalculator(fares.LondonTariffTable())
	if err != nil {
		t.Fatalf("NewTariffCalculator() error: %v", err)
	}
	transit, err := fares.NewTransitCalculator(fares.LondonBusFares())
	if err != nil {
		t.Fatalf("NewTransitCalculator() error: %v", err)
	}
	model, err := emissions.NewModel(emissions.DefaultCoefficients())
	if err != nil {
		t.Fatalf("NewModel() error: %v", err)
	}
	scorer, err := scoring.NewScorer(journey.DefaultScoreWeights(), scoring.DefaultThresholds(model.CarBaseline()))
	if err != nil {
		t.Fatalf("NewScorer() error: %v", err)
	}
	converter, err := eco.NewConverter(eco.DefaultFactors())
	if err != nil {
		t.Fatalf("NewConverter() error: %v", err)
	}
	p, err := New(Config{
		Zones:     zones,
		Tariff:    tariff,
		Transit:   transit,
		Emissions: model,
		Scorer:    scorer,
		Eco:       converter,
		Workers:   opts.workers,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p
}

// Tuesday morning peak.
func weekdayMorning() time.Time {
	return time.Date(2024, time.January, 9, 8, 0, 0, 0, fares.LondonLocation())
}

func mins(n int) time.Duration { return time.Duration(n) * time.Minute }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func findCandidate(t *testing.T, plan Plan, id string) journey.Candidate {
	t.Helper()
	for _, c := range plan.Candidates {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("candidate %q not in plan", id)
	return journey.Candidate{}
}

func TestEvaluateDriveScenario(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	req := Request{
		Departure: weekdayMorning(),
		Candidates: []journey.Candidate{{
			ID:   "drive",
			Legs: []journey.Leg{{Mode: journey.ModeDrive, Distance: 10, Duration: mins(35)}},
		}},
	}

	plan, err := p.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	got := plan.Best
	// Day band: 11.60 + 4 x 3.40 + 4 x 4.00.
	if !got.FareKnown || !almostEqual(got.Fare, 41.20) {
		t.Errorf("Fare = %v (known %v), want 41.20", got.Fare, got.FareKnown)
	}
	if !almostEqual(got.CO2, 0.17*10) {
		t.Errorf("CO2 = %v, want %v", got.CO2, 0.17*10)
	}
	if got.Score < 0 || got.Score > 1 {
		t.Errorf("Score = %v, outside [0, 1]", got.Score)
	}
	if got.SavedVsCar != 0 {
		t.Errorf("SavedVsCar = %v, want 0", got.SavedVsCar)
	}

	again, err := p.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if again.Best.Score != got.Score {
		t.Errorf("Score not reproducible: %v vs %v", again.Best.Score, got.Score)
	}
}

func mixedCandidates() []journey.Candidate {
	return []journey.Candidate{
		{
			ID: "drive",
			Legs: []journey.Leg{
				{Mode: journey.ModeDrive, Distance: 15, Duration: mins(50)},
			},
		},
		{
			ID: "tube",
			Legs: []journey.Leg{
				{Mode: journey.ModeWalk, Distance: 0.3, Duration: mins(5)},
				{Mode: journey.ModeTube, Distance: 15, Duration: mins(45), FromStation: "Bank", ToStation: "Uxbridge", Line: "Central"},
			},
		},
		{
			ID: "bus",
			Legs: []journey.Leg{
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(10)},
				{Mode: journey.ModeBus, Distance: 4, Duration: mins(20)},
			},
		},
		{
			ID: "cycle",
			Legs: []journey.Leg{
				{Mode: journey.ModeCycle, Distance: 6, Duration: mins(35)},
			},
		},
	}
}

func TestEvaluateMixedCandidates(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	plan, err := p.Evaluate(context.Background(), Request{
		Departure:  weekdayMorning(),
		Candidates: mixedCandidates(),
		Weather:    &journey.WeatherContext{TemperatureC: 18, WindSpeed: 5},
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(plan.Candidates) != 4 || len(plan.Breakdowns) != 4 {
		t.Fatalf("got %d candidates and %d breakdowns, want 4 each", len(plan.Candidates), len(plan.Breakdowns))
	}
	for i := 1; i < len(plan.Candidates); i++ {
		if plan.Candidates[i].Score > plan.Candidates[i-1].Score {
			t.Errorf("candidates not ranked: %v after %v", plan.Candidates[i].Score, plan.Candidates[i-1].Score)
		}
	}
	for i, b := range plan.Breakdowns {
		if b.Total != plan.Candidates[i].Score {
			t.Errorf("breakdown %d total %v != score %v", i, b.Total, plan.Candidates[i].Score)
		}
	}

	tests := []struct {
		id       string
		wantFare float64
		wantCO2  float64
	}{
		// Boards five minutes after departure, inside the morning peak.
		{"tube", 6.40, 0.45},
		// Second boarding ten minutes after the first, inside the hopper window.
		{"bus", 1.75, 0.56},
		{"cycle", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			c := findCandidate(t, plan, tt.id)
			if !c.FareKnown || !almostEqual(c.Fare, tt.wantFare) {
				t.Errorf("Fare = %v (known %v), want %v", c.Fare, c.FareKnown, tt.wantFare)
			}
			if !almostEqual(c.CO2, tt.wantCO2) {
				t.Errorf("CO2 = %v, want %v", c.CO2, tt.wantCO2)
			}
			if len(c.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", c.Warnings)
			}
		})
	}

	want, err := eco.NewConverter(eco.DefaultFactors())
	if err != nil {
		t.Fatalf("NewConverter() error: %v", err)
	}
	wantEq, _ := want.Equivalents(plan.Best.SavedVsCar)
	if plan.Equivalents != wantEq {
		t.Errorf("Equivalents = %+v, want %+v", plan.Equivalents, wantEq)
	}
	if plan.Best.ID != plan.Candidates[0].ID {
		t.Errorf("Best = %q, want first ranked %q", plan.Best.ID, plan.Candidates[0].ID)
	}
}

func TestEvaluateBusOutsideHopperWindow(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	plan, err := p.Evaluate(context.Background(), Request{
		Departure: weekdayMorning(),
		Candidates: []journey.Candidate{{
			ID: "bus",
			Legs: []journey.Leg{
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(20)},
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(20), Boarding: mins(90)},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !almostEqual(plan.Best.Fare, 3.50) {
		t.Errorf("Fare = %v, want 3.50 for two separately charged boardings", plan.Best.Fare)
	}
}

func TestEvaluateBusBoardingThenUnset(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	plan, err := p.Evaluate(context.Background(), Request{
		Departure: weekdayMorning(),
		Candidates: []journey.Candidate{{
			ID: "bus",
			Legs: []journey.Leg{
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(10), Boarding: mins(30)},
				// Boards when the first bus arrives, ten minutes later.
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(10)},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	c := plan.Best
	if !c.FareKnown || !almostEqual(c.Fare, 1.75) {
		t.Errorf("Fare = %v (known %v), want one hopper fare 1.75", c.Fare, c.FareKnown)
	}
	if len(c.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", c.Warnings)
	}
}

func TestEvaluateSharedDriveSavesNothing(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	plan, err := p.Evaluate(context.Background(), Request{
		Departure: weekdayMorning(),
		Candidates: []journey.Candidate{
			{ID: "drive", Legs: []journey.Leg{{Mode: journey.ModeDrive, Distance: 10, Duration: mins(35)}}},
			{ID: "park-and-walk", Legs: []journey.Leg{
				{Mode: journey.ModeDrive, Distance: 8, Duration: mins(30)},
				{Mode: journey.ModeWalk, Distance: 2, Duration: mins(40)},
			}},
		},
		Passengers: 2,
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if got := findCandidate(t, plan, "drive").SavedVsCar; got != 0 {
		t.Errorf("drive SavedVsCar = %v, want 0", got)
	}
	// Only the walking leg is credited against the car.
	if got := findCandidate(t, plan, "park-and-walk").SavedVsCar; !almostEqual(got, 0.17*2) {
		t.Errorf("park-and-walk SavedVsCar = %v, want %v", got, 0.17*2)
	}
}

func TestEvaluateFareUnavailable(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	candidates := []journey.Candidate{
		{
			ID: "unknown-station",
			Legs: []journey.Leg{
				{Mode: journey.ModeTube, Distance: 5, Duration: mins(20), FromStation: "Bank", ToStation: "Narnia"},
			},
		},
		{
			ID: "no-stations",
			Legs: []journey.Leg{
				{Mode: journey.ModeTube, Distance: 5, Duration: mins(20)},
			},
		},
	}
	plan, err := p.Evaluate(context.Background(), Request{Departure: weekdayMorning(), Candidates: candidates})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	for _, id := range []string{"unknown-station", "no-stations"} {
		c := findCandidate(t, plan, id)
		if c.FareKnown {
			t.Errorf("%s: FareKnown = true, want false", id)
		}
		if len(c.Warnings) == 0 || !strings.Contains(c.Warnings[0], "fare unavailable") {
			t.Errorf("%s: warnings = %v, want a fare unavailable warning", id, c.Warnings)
		}
	}
}

func TestEvaluateFallbackIsDegraded(t *testing.T) {
	p := newTestPlanner(t, testOptions{fallbackZone: 1})
	plan, err := p.Evaluate(context.Background(), Request{
		Departure: weekdayMorning(),
		Candidates: []journey.Candidate{{
			ID: "tube",
			Legs: []journey.Leg{
				{Mode: journey.ModeTube, Distance: 5, Duration: mins(20), FromStation: "Narnia", ToStation: "Bank"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	c := plan.Best
	if !c.Degraded || !c.FareKnown {
		t.Errorf("Degraded = %v, FareKnown = %v, want both true", c.Degraded, c.FareKnown)
	}
	if !almostEqual(c.Fare, 2.80) {
		t.Errorf("Fare = %v, want zone 1 peak fare 2.80", c.Fare)
	}
}

func TestEvaluateErrors(t *testing.T) {
	p := newTestPlanner(t, testOptions{})

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no candidates", Request{Departure: weekdayMorning()}, journey.ErrInvalidInput},
		{"no departure", Request{Candidates: mixedCandidates()}, journey.ErrInvalidInput},
		{"negative passengers", Request{Departure: weekdayMorning(), Candidates: mixedCandidates(), Passengers: -1}, journey.ErrInvalidInput},
		{"negative distance", Request{Departure: weekdayMorning(), Candidates: []journey.Candidate{{
			ID: "bad", Legs: []journey.Leg{{Mode: journey.ModeWalk, Distance: -2}},
		}}}, journey.ErrInvalidInput},
		{"unsupported mode", Request{Departure: weekdayMorning(), Candidates: []journey.Candidate{{
			ID: "bad", Legs: []journey.Leg{{Mode: "ferry", Distance: 2}},
		}}}, journey.ErrUnsupportedMode},
		{"negative weight", Request{Departure: weekdayMorning(), Candidates: mixedCandidates(),
			Weights: &journey.ScoreWeights{CO2: -1}}, journey.ErrInvalidInput},
		{"unknown precipitation", Request{Departure: weekdayMorning(), Candidates: mixedCandidates(),
			Weather: &journey.WeatherContext{TemperatureC: 18, Precipitation: "clear"}}, journey.ErrInvalidInput},
		{"negative wind", Request{Departure: weekdayMorning(), Candidates: mixedCandidates(),
			Weather: &journey.WeatherContext{TemperatureC: 18, WindSpeed: -4}}, journey.ErrInvalidInput},
		{"boarding goes backwards", Request{Departure: weekdayMorning(), Candidates: []journey.Candidate{{
			ID: "bus", Legs: []journey.Leg{
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(10), Boarding: mins(30)},
				{Mode: journey.ModeBus, Distance: 3, Duration: mins(10), Boarding: mins(5)},
			},
		}}}, journey.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Evaluate(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Evaluate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEvaluateCancelled(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Evaluate(ctx, Request{Departure: weekdayMorning(), Candidates: mixedCandidates()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	req := Request{
		Departure:   weekdayMorning(),
		Candidates:  mixedCandidates(),
		Weather:     &journey.WeatherContext{TemperatureC: 4, WindSpeed: 22, Precipitation: journey.PrecipitationRain},
		Preferences: &journey.Preferences{PreferredMode: journey.ModeCycle},
		Passengers:  2,
	}
	sequential, err := newTestPlanner(t, testOptions{workers: 1}).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	parallel, err := newTestPlanner(t, testOptions{workers: 8}).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	for i := range sequential.Candidates {
		s, q := sequential.Candidates[i], parallel.Candidates[i]
		if s.ID != q.ID || s.Score != q.Score || s.Fare != q.Fare || s.CO2 != q.CO2 {
			t.Errorf("rank %d differs: %s/%v/%v vs %s/%v/%v", i, s.ID, s.Score, s.Fare, q.ID, q.Score, q.Fare)
		}
	}
}

func TestEvaluateWeightsOverride(t *testing.T) {
	p := newTestPlanner(t, testOptions{})
	plan, err := p.Evaluate(context.Background(), Request{
		Departure:  weekdayMorning(),
		Candidates: mixedCandidates(),
		Weights:    &journey.ScoreWeights{Duration: 1},
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	// Only duration counts: the 30 minute bus beats everything else.
	if plan.Best.ID != "bus" {
		t.Errorf("Best = %q, want bus", plan.Best.ID)
	}
}

func TestNewRequiresCalculators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New(Config{}) error = nil, want error")
	}
}
