package fares

import (
	"fmt"
	"math"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// TariffBand is a named metered tariff.
type TariffBand struct {
	Name    string  `json:"name"`
	Base    float64 `json:"base"`
	PerMile float64 `json:"per_mile"`
}

// TariffWindow assigns a band to a closed-open range of hours on either
// weekdays or weekends.
type TariffWindow struct {
	Weekend   bool   `json:"weekend"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Band      string `json:"band"`
}

func (w TariffWindow) matches(weekend bool, hour int) bool {
	return w.Weekend == weekend && hour >= w.StartHour && hour < w.EndHour
}

// TariffTable is the reference data behind a TariffCalculator.
type TariffTable struct {
	Bands   []TariffBand
	Windows []TariffWindow

	MinimumCharge    float64
	LongDistanceRate float64

	// BaseDistance is covered by the band base charge. Distance past
	// LongDistanceFrom is charged at LongDistanceRate regardless of band.
	BaseDistance     float64
	LongDistanceFrom float64

	Location *time.Location
}

// Validate checks the table invariants, including that the windows assign
// exactly one band to each of the 168 hours of the week.
func (t TariffTable) Validate() error {
	if len(t.Bands) == 0 {
		return journey.NewInvalidInput("tariff bands", "no bands defined")
	}
	names := make(map[string]bool, len(t.Bands))
	for _, b := range t.Bands {
		if b.Name == "" {
			return journey.NewInvalidInput("tariff bands", "band name is empty")
		}
		if names[b.Name] {
			return journey.NewInvalidInput("tariff bands", fmt.Sprintf("band %q defined twice", b.Name))
		}
		names[b.Name] = true
		if !journey.IsFinite(b.Base) || !journey.IsFinite(b.PerMile) || b.Base < 0 || b.PerMile < 0 {
			return journey.NewInvalidInput("tariff bands", fmt.Sprintf("band %q needs non-negative base and rate", b.Name))
		}
	}
	for _, w := range t.Windows {
		if !names[w.Band] {
			return journey.NewInvalidInput("tariff windows", fmt.Sprintf("window references unknown band %q", w.Band))
		}
		if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
			return journey.NewInvalidInput("tariff windows", fmt.Sprintf("window [%d, %d) is not within a day", w.StartHour, w.EndHour))
		}
	}
	for _, weekend := range []bool{false, true} {
		for hour := 0; hour < 24; hour++ {
			n := 0
			for _, w := range t.Windows {
				if w.matches(weekend, hour) {
					n++
				}
			}
			if n != 1 {
				return journey.NewInvalidInput("tariff windows", fmt.Sprintf("%s hour %02d matches %d windows, want 1", dayClass(weekend), hour, n))
			}
		}
	}
	if !journey.IsFinite(t.MinimumCharge) || t.MinimumCharge < 0 {
		return journey.NewInvalidInput("minimum charge", "must be a non-negative number")
	}
	if !journey.IsFinite(t.LongDistanceRate) || t.LongDistanceRate < 0 {
		return journey.NewInvalidInput("long distance rate", "must be a non-negative number")
	}
	if t.BaseDistance < 0 || t.LongDistanceFrom < t.BaseDistance {
		return journey.NewInvalidInput("tariff distances", "need 0 <= base distance <= long distance threshold")
	}
	return nil
}

// FareBreakdown itemizes a metered fare.
type FareBreakdown struct {
	MinimumCharge      float64 `json:"minimum_charge"`
	Distance           float64 `json:"distance"`
	BaseCharge         float64 `json:"base_charge"`
	AdditionalDistance float64 `json:"additional_distance"`
	AdditionalRate     float64 `json:"additional_rate"`
	AdditionalCharge   float64 `json:"additional_charge"`
	LongDistance       float64 `json:"long_distance"`
	LongDistanceRate   float64 `json:"long_distance_rate"`
	LongDistanceCharge float64 `json:"long_distance_charge"`
}

// TariffFareResult is a priced metered journey.
type TariffFareResult struct {
	Fare      float64       `json:"fare"`
	Band      string        `json:"band"`
	Breakdown FareBreakdown `json:"breakdown"`
}

// FareRange bounds a metered fare when the journey time is unknown.
type FareRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	MinBand string  `json:"min_band"`
	MaxBand string  `json:"max_band"`
}

// TariffCalculator prices metered taxi journeys.
type TariffCalculator struct {
	bands            map[string]TariffBand
	order            []string
	windows          []TariffWindow
	minimum          float64
	longRate         float64
	baseDistance     float64
	longDistanceFrom float64
	loc              *time.Location
}

// NewTariffCalculator validates the table and builds a calculator.
func NewTariffCalculator(table TariffTable) (*TariffCalculator, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("tariff table: %w", err)
	}
	c := &TariffCalculator{
		bands:            make(map[string]TariffBand, len(table.Bands)),
		windows:          append([]TariffWindow(nil), table.Windows...),
		minimum:          table.MinimumCharge,
		longRate:         table.LongDistanceRate,
		baseDistance:     table.BaseDistance,
		longDistanceFrom: table.LongDistanceFrom,
		loc:              table.Location,
	}
	for _, b := range table.Bands {
		c.bands[b.Name] = b
		c.order = append(c.order, b.Name)
	}
	return c, nil
}

// MinimumCharge returns the floor applied to every fare.
func (c *TariffCalculator) MinimumCharge() float64 {
	return c.minimum
}

// SelectBand returns the band in force at t.
func (c *TariffCalculator) SelectBand(t time.Time) TariffBand {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	weekend := !isWeekday(t.Weekday())
	for _, w := range c.windows {
		if w.matches(weekend, t.Hour()) {
			return c.bands[w.Band]
		}
	}
	// Unreachable for a validated table.
	return c.bands[c.order[0]]
}

// CalculateFare prices a journey of distance miles starting at t.
func (c *TariffCalculator) CalculateFare(distance float64, t time.Time) (TariffFareResult, error) {
	if err := journey.ValidateDistance(distance); err != nil {
		return TariffFareResult{}, err
	}
	return c.fareForBand(distance, c.SelectBand(t)), nil
}

// EstimateRange prices distance under the cheapest and the most expensive
// band.
func (c *TariffCalculator) EstimateRange(distance float64) (FareRange, error) {
	if err := journey.ValidateDistance(distance); err != nil {
		return FareRange{}, err
	}
	var r FareRange
	for i, name := range c.order {
		res := c.fareForBand(distance, c.bands[name])
		if i == 0 || res.Fare < r.Min {
			r.Min, r.MinBand = res.Fare, name
		}
		if i == 0 || res.Fare > r.Max {
			r.Max, r.MaxBand = res.Fare, name
		}
	}
	return r, nil
}

func (c *TariffCalculator) fareForBand(distance float64, band TariffBand) TariffFareResult {
	b := FareBreakdown{
		MinimumCharge: c.minimum,
		Distance:      distance,
	}
	if distance > 0 {
		b.BaseCharge = band.Base
		b.AdditionalRate = band.PerMile
		b.LongDistanceRate = c.longRate
	}
	if distance > c.baseDistance {
		b.AdditionalDistance = math.Min(distance, c.longDistanceFrom) - c.baseDistance
		b.AdditionalCharge = b.AdditionalDistance * band.PerMile
	}
	if distance > c.longDistanceFrom {
		b.LongDistance = distance - c.longDistanceFrom
		b.LongDistanceCharge = b.LongDistance * c.longRate
	}

	fare := b.BaseCharge + b.AdditionalCharge + b.LongDistanceCharge
	if fare < c.minimum {
		fare = c.minimum
	}

	b.AdditionalCharge = journey.RoundMoney(b.AdditionalCharge)
	b.LongDistanceCharge = journey.RoundMoney(b.LongDistanceCharge)
	return TariffFareResult{
		Fare:      journey.RoundMoney(fare),
		Band:      band.Name,
		Breakdown: b,
	}
}

func dayClass(weekend bool) string {
	if weekend {
		return "weekend"
	}
	return "weekday"
}
