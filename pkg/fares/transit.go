package fares

import (
	"fmt"
	"math"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// BusFares holds the hopper bus fare constants.
type BusFares struct {
	SingleFare          float64 `json:"single_fare"`
	DailyCap            float64 `json:"daily_cap"`
	HopperWindowMinutes float64 `json:"hopper_window_minutes"`
}

// Validate checks that the cap is at least one single fare.
func (b BusFares) Validate() error {
	if !journey.IsFinite(b.SingleFare) || b.SingleFare < 0 {
		return journey.NewInvalidInput("single fare", "must be a non-negative number")
	}
	if !journey.IsFinite(b.DailyCap) || b.DailyCap < b.SingleFare {
		return journey.NewInvalidInput("daily cap", fmt.Sprintf("must be at least the single fare %v", b.SingleFare))
	}
	if !journey.IsFinite(b.HopperWindowMinutes) || b.HopperWindowMinutes < 0 {
		return journey.NewInvalidInput("hopper window", "must be a non-negative number of minutes")
	}
	return nil
}

// BusFareEstimate describes the fares a bus rider can expect.
type BusFareEstimate struct {
	SingleFare          float64 `json:"single_fare"`
	HopperWindowMinutes float64 `json:"hopper_window_minutes"`
	DailyCap            float64 `json:"daily_cap"`
	CapAfterJourneys    int     `json:"cap_after_journeys"`
}

// TransitCalculator prices bus journeys with a hopper window and a daily cap.
type TransitCalculator struct {
	fares BusFares
}

// NewTransitCalculator validates the fares and builds a calculator.
func NewTransitCalculator(fares BusFares) (*TransitCalculator, error) {
	if err := fares.Validate(); err != nil {
		return nil, fmt.Errorf("bus fares: %w", err)
	}
	return &TransitCalculator{fares: fares}, nil
}

// CalculateFare returns the total charge for journeyCount boardings, the last
// one elapsedMinutes after the first.
//
// Within the hopper window exactly one single fare is charged however many
// boardings there were. Past it, every boarding is charged and the total is
// capped. The two rules never combine.
func (c *TransitCalculator) CalculateFare(journeyCount int, elapsedMinutes float64) (float64, error) {
	if journeyCount < 1 {
		return 0, journey.NewInvalidInput("journey count", fmt.Sprintf("must be at least 1, got %d", journeyCount))
	}
	if !journey.IsFinite(elapsedMinutes) || elapsedMinutes < 0 {
		return 0, journey.NewInvalidInput("elapsed minutes", fmt.Sprintf("must be a non-negative number, got %v", elapsedMinutes))
	}
	if elapsedMinutes <= c.fares.HopperWindowMinutes {
		return c.fares.SingleFare, nil
	}
	total := float64(journeyCount) * c.fares.SingleFare
	return journey.RoundMoney(math.Min(total, c.fares.DailyCap)), nil
}

// Estimate summarizes the bus fares.
func (c *TransitCalculator) Estimate() BusFareEstimate {
	e := BusFareEstimate{
		SingleFare:          c.fares.SingleFare,
		HopperWindowMinutes: c.fares.HopperWindowMinutes,
		DailyCap:            c.fares.DailyCap,
	}
	if c.fares.SingleFare > 0 {
		e.CapAfterJourneys = int(math.Ceil(c.fares.DailyCap / c.fares.SingleFare))
	}
	return e
}
