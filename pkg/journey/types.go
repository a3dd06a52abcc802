// Package journey defines the shared data model for the journey decision core:
// legs, route candidates, weather, preferences and the error kinds every
// calculator reports.
package journey

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode is a transport mode for a single journey leg.
type Mode string

// Supported leg modes
const (
	ModeWalk  Mode = "walk"
	ModeCycle Mode = "cycle"
	ModeTube  Mode = "tube"
	ModeBus   Mode = "bus"
	ModeDrive Mode = "drive"

	// ModeTransit is never a leg mode. It is the aggregate mode of a
	// candidate that rides at least one tube or bus leg.
	ModeTransit Mode = "transit"
)

// ParseMode maps user-facing mode names onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "walk", "walking", "foot":
		return ModeWalk, nil
	case "cycle", "cycling", "bike", "bicycle":
		return ModeCycle, nil
	case "tube", "tubes", "underground", "rail":
		return ModeTube, nil
	case "bus":
		return ModeBus, nil
	case "drive", "driving", "car", "taxi":
		return ModeDrive, nil
	case "transit", "public_transport":
		return ModeTransit, nil
	}
	return "", &UnsupportedModeError{Mode: s}
}

// IsTransit reports whether the mode is public transport.
func (m Mode) IsTransit() bool {
	return m == ModeTube || m == ModeBus || m == ModeTransit
}

// Precipitation categorizes the precipitation in a WeatherContext.
type Precipitation string

// Precipitation categories
const (
	PrecipitationNone  Precipitation = ""
	PrecipitationRain  Precipitation = "rain"
	PrecipitationSnow  Precipitation = "snow"
	PrecipitationSleet Precipitation = "sleet"
)

// precipitationNoneName is accepted as an explicit spelling of PrecipitationNone.
const precipitationNoneName Precipitation = "none"

func (p Precipitation) normalized() Precipitation {
	if p == precipitationNoneName {
		return PrecipitationNone
	}
	return p
}

// WeatherContext is the weather at departure. Temperature is in Celsius and
// wind speed in miles per hour.
type WeatherContext struct {
	TemperatureC  float64       `json:"temperature_c"`
	WindSpeed     float64       `json:"wind_speed"`
	Precipitation Precipitation `json:"precipitation,omitempty"`
}

// Validate rejects non-finite readings, negative wind and unknown
// precipitation categories.
func (w WeatherContext) Validate() error {
	if !IsFinite(w.TemperatureC) {
		return NewInvalidInput("temperature_c", fmt.Sprintf("must be finite, got %v", w.TemperatureC))
	}
	if !IsFinite(w.WindSpeed) || w.WindSpeed < 0 {
		return NewInvalidInput("wind_speed", fmt.Sprintf("must be a finite non-negative number, got %v", w.WindSpeed))
	}
	switch w.Precipitation.normalized() {
	case PrecipitationNone, PrecipitationRain, PrecipitationSnow, PrecipitationSleet:
		return nil
	}
	return NewInvalidInput("precipitation", fmt.Sprintf("must be one of none, rain, snow or sleet, got %q", w.Precipitation))
}

// HasPrecipitation reports whether any precipitation is falling.
func (w WeatherContext) HasPrecipitation() bool {
	return w.Precipitation.normalized() != PrecipitationNone
}

// Preferences holds user preferences that influence convenience scoring.
type Preferences struct {
	PreferredMode Mode `json:"preferred_mode,omitempty"`
}

// Leg is one segment of a route candidate. Distances are in miles.
type Leg struct {
	Mode        Mode          `json:"mode"`
	Distance    float64       `json:"distance"`
	Duration    time.Duration `json:"duration"`
	FromStation string        `json:"from_station,omitempty"`
	ToStation   string        `json:"to_station,omitempty"`
	Line        string        `json:"line,omitempty"`

	// Boarding is the offset from the start of the candidate at which the
	// leg begins. Zero means the leg starts when the previous one ends.
	Boarding time.Duration `json:"boarding,omitempty"`
}

// Validate rejects malformed legs before any computation.
func (l Leg) Validate() error {
	switch l.Mode {
	case ModeWalk, ModeCycle, ModeTube, ModeBus, ModeDrive:
	case ModeTransit:
		return NewInvalidInput("mode", "transit is an aggregate mode, use tube or bus for a leg")
	default:
		return &UnsupportedModeError{Mode: string(l.Mode)}
	}
	if err := ValidateDistance(l.Distance); err != nil {
		return err
	}
	if l.Duration < 0 {
		return NewInvalidInput("duration", fmt.Sprintf("must not be negative, got %s", l.Duration))
	}
	if l.Boarding < 0 {
		return NewInvalidInput("boarding", fmt.Sprintf("must not be negative, got %s", l.Boarding))
	}
	return nil
}

// Candidate is one routing option: an ordered list of legs plus the fields
// attached while it is priced and scored.
type Candidate struct {
	ID   string `json:"id"`
	Legs []Leg  `json:"legs"`

	Fare       float64  `json:"fare"`
	FareKnown  bool     `json:"fare_known"`
	CO2        float64  `json:"co2_kg"`
	SavedVsCar float64  `json:"saved_vs_car_kg"`
	Score      float64  `json:"score"`
	Degraded   bool     `json:"degraded,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Validate checks the candidate and all of its legs. Legs must not start
// before the leg ahead of them.
func (c Candidate) Validate() error {
	if len(c.Legs) == 0 {
		return NewInvalidInput("legs", fmt.Sprintf("candidate %q has no legs", c.ID))
	}
	for i, leg := range c.Legs {
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("candidate %q leg %d: %w", c.ID, i, err)
		}
	}
	starts := c.LegStarts()
	for i := 1; i < len(starts); i++ {
		if starts[i] < starts[i-1] {
			return fmt.Errorf("candidate %q leg %d: %w", c.ID, i, NewInvalidInput("boarding",
				fmt.Sprintf("starts at %s, before leg %d at %s", starts[i], i-1, starts[i-1])))
		}
	}
	return nil
}

// LegStarts returns each leg's offset from departure: its Boarding when set,
// otherwise the moment the previous leg ends.
func (c Candidate) LegStarts() []time.Duration {
	starts := make([]time.Duration, len(c.Legs))
	for i, leg := range c.Legs {
		switch {
		case leg.Boarding > 0:
			starts[i] = leg.Boarding
		case i > 0:
			starts[i] = starts[i-1] + c.Legs[i-1].Duration
		}
	}
	return starts
}

// Distance returns the total distance over all legs.
func (c Candidate) Distance() float64 {
	var total float64
	for _, leg := range c.Legs {
		total += leg.Distance
	}
	return total
}

// Duration returns the total duration over all legs.
func (c Candidate) Duration() time.Duration {
	var total time.Duration
	for _, leg := range c.Legs {
		total += leg.Duration
	}
	return total
}

// Mode returns the aggregate mode: the shared mode when every leg uses the
// same one, transit when any leg is a tube or bus leg, otherwise the mode of
// the longest leg.
func (c Candidate) Mode() Mode {
	if len(c.Legs) == 0 {
		return ""
	}
	first := c.Legs[0].Mode
	uniform := true
	transit := false
	longest := c.Legs[0]
	for _, leg := range c.Legs {
		if leg.Mode != first {
			uniform = false
		}
		if leg.Mode.IsTransit() {
			transit = true
		}
		if leg.Distance > longest.Distance {
			longest = leg
		}
	}
	switch {
	case uniform && !transit:
		return first
	case transit:
		return ModeTransit
	default:
		return longest.Mode
	}
}

// Changes returns the number of changes between legs.
func (c Candidate) Changes() int {
	if len(c.Legs) == 0 {
		return 0
	}
	return len(c.Legs) - 1
}

// ScoreWeights weights the four scoring criteria. They are expected to sum
// to 1 but this is not enforced.
type ScoreWeights struct {
	CO2         float64 `json:"co2"`
	Duration    float64 `json:"duration"`
	Weather     float64 `json:"weather"`
	Convenience float64 `json:"convenience"`
}

// DefaultScoreWeights returns the reference weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{CO2: 0.4, Duration: 0.3, Weather: 0.2, Convenience: 0.1}
}

// Validate rejects negative or non-finite weights.
func (w ScoreWeights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"co2", w.CO2},
		{"duration", w.Duration},
		{"weather", w.Weather},
		{"convenience", w.Convenience},
	}
	for _, n := range named {
		if !IsFinite(n.value) || n.value < 0 {
			return NewInvalidInput("weights."+n.name, fmt.Sprintf("must be a finite non-negative number, got %v", n.value))
		}
	}
	return nil
}

// Sum returns the total of all weights.
func (w ScoreWeights) Sum() float64 {
	return w.CO2 + w.Duration + w.Weather + w.Convenience
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateDistance rejects negative and non-finite distances.
func ValidateDistance(d float64) error {
	if !IsFinite(d) {
		return NewInvalidInput("distance", fmt.Sprintf("must be finite, got %v", d))
	}
	if d < 0 {
		return NewInvalidInput("distance", fmt.Sprintf("must not be negative, got %v", d))
	}
	return nil
}

// RoundMoney rounds an amount to whole pence.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeStation lower-cases a station name and collapses whitespace.
func NormalizeStation(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
