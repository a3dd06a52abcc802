// Package scoring ranks route candidates by a weighted blend of emissions,
// duration, weather exposure and convenience.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// TemperatureBand penalizes temperatures outside [Min, Max].
type TemperatureBand struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Factor float64 `json:"factor"`
}

// WindRule penalizes wind speeds above a threshold.
type WindRule struct {
	Above  float64 `json:"above"`
	Factor float64 `json:"factor"`
}

// WeatherRules are the penalties for one weather-sensitive mode.
//
// Temperature bands are checked in order and only the first band the
// temperature falls outside applies, so list the widest band first. Wind
// rules work the same way with the highest threshold first. The temperature,
// wind and precipitation penalties then compound.
type WeatherRules struct {
	Temperature   []TemperatureBand `json:"temperature"`
	Wind          []WindRule        `json:"wind"`
	Precipitation float64           `json:"precipitation"`
}

// Apply returns the weather factor for w, starting from 1.
func (r WeatherRules) Apply(w journey.WeatherContext) float64 {
	score := 1.0
	for _, band := range r.Temperature {
		if w.TemperatureC < band.Min || w.TemperatureC > band.Max {
			score *= band.Factor
			break
		}
	}
	for _, rule := range r.Wind {
		if w.WindSpeed > rule.Above {
			score *= rule.Factor
			break
		}
	}
	if w.HasPrecipitation() {
		score *= r.Precipitation
	}
	return score
}

// Thresholds are the normalization ceilings and weather rules.
type Thresholds struct {
	// CO2Ceiling is the per-mile emission that scores zero.
	CO2Ceiling  float64       `json:"co2_ceiling"`
	// MaxDuration is the journey time that scores zero.
	MaxDuration time.Duration `json:"max_duration"`

	Walk  WeatherRules `json:"walk"`
	Cycle WeatherRules `json:"cycle"`

	PreferredModeBonus float64 `json:"preferred_mode_bonus"`
	ChangePenalty      float64 `json:"change_penalty"`
	MinTransferFactor  float64 `json:"min_transfer_factor"`
}

// DefaultThresholds returns the reference thresholds with the given CO2
// ceiling, normally the petrol car factor.
func DefaultThresholds(co2Ceiling float64) Thresholds {
	return Thresholds{
		CO2Ceiling:  co2Ceiling,
		MaxDuration: 2 * time.Hour,
		Walk: WeatherRules{
			Temperature: []TemperatureBand{
				{Min: 0, Max: 35, Factor: 0.5},
				{Min: 10, Max: 25, Factor: 0.8},
			},
			Precipitation: 0.3,
		},
		Cycle: WeatherRules{
			Temperature: []TemperatureBand{
				{Min: 5, Max: 30, Factor: 0.4},
				{Min: 10, Max: 25, Factor: 0.7},
			},
			Wind: []WindRule{
				{Above: 20, Factor: 0.3},
				{Above: 10, Factor: 0.7},
			},
			Precipitation: 0.2,
		},
		PreferredModeBonus: 1.2,
		ChangePenalty:      0.1,
		MinTransferFactor:  0.5,
	}
}

// Validate rejects non-positive ceilings and out of range factors.
func (t Thresholds) Validate() error {
	if !journey.IsFinite(t.CO2Ceiling) || t.CO2Ceiling <= 0 {
		return journey.NewInvalidInput("co2 ceiling", fmt.Sprintf("must be positive, got %v", t.CO2Ceiling))
	}
	if t.MaxDuration <= 0 {
		return journey.NewInvalidInput("max duration", fmt.Sprintf("must be positive, got %s", t.MaxDuration))
	}
	for name, rules := range map[string]WeatherRules{"walk": t.Walk, "cycle": t.Cycle} {
		factors := []float64{rules.Precipitation}
		for _, b := range rules.Temperature {
			factors = append(factors, b.Factor)
		}
		for _, w := range rules.Wind {
			factors = append(factors, w.Factor)
		}
		for _, f := range factors {
			if !journey.IsFinite(f) || f < 0 || f > 1 {
				return journey.NewInvalidInput("weather."+name, fmt.Sprintf("penalty factor %v is outside [0, 1]", f))
			}
		}
	}
	if t.PreferredModeBonus < 1 || t.ChangePenalty < 0 || t.MinTransferFactor < 0 || t.MinTransferFactor > 1 {
		return journey.NewInvalidInput("convenience", "bonus must be >= 1, penalty >= 0 and minimum transfer factor in [0, 1]")
	}
	return nil
}

// Breakdown is a scored candidate's four sub-scores and total.
type Breakdown struct {
	CO2         float64 `json:"co2"`
	Duration    float64 `json:"duration"`
	Weather     float64 `json:"weather"`
	Convenience float64 `json:"convenience"`
	Total       float64 `json:"total"`
}

// Scorer scores and ranks candidates.
type Scorer struct {
	weights    journey.ScoreWeights
	thresholds Thresholds
}

// NewScorer validates its configuration and builds a scorer.
func NewScorer(weights journey.ScoreWeights, thresholds Thresholds) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("scoring thresholds: %w", err)
	}
	return &Scorer{weights: weights, thresholds: thresholds}, nil
}

// Weights returns the configured weights.
func (s *Scorer) Weights() journey.ScoreWeights {
	return s.weights
}

// WithWeights returns a scorer sharing thresholds but using other weights.
func (s *Scorer) WithWeights(weights journey.ScoreWeights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights, thresholds: s.thresholds}, nil
}

// Score returns the weighted score of c in [0, 1]. The candidate's CO2 must
// already be attached. Weather and preferences are optional.
func (s *Scorer) Score(c journey.Candidate, weather *journey.WeatherContext, prefs *journey.Preferences) (float64, error) {
	b, err := s.Breakdown(c, weather, prefs)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Breakdown returns every sub-score along with the weighted total.
func (s *Scorer) Breakdown(c journey.Candidate, weather *journey.WeatherContext, prefs *journey.Preferences) (Breakdown, error) {
	if err := c.Validate(); err != nil {
		return Breakdown{}, err
	}
	if !journey.IsFinite(c.CO2) || c.CO2 < 0 {
		return Breakdown{}, journey.NewInvalidInput("co2", fmt.Sprintf("candidate %q has invalid CO2 %v", c.ID, c.CO2))
	}
	if weather != nil {
		if err := weather.Validate(); err != nil {
			return Breakdown{}, err
		}
	}

	b := Breakdown{
		CO2:         s.co2Score(c),
		Duration:    s.durationScore(c),
		Weather:     s.weatherScore(c, weather),
		Convenience: s.convenienceScore(c, prefs),
	}
	total := s.weights.CO2*b.CO2 +
		s.weights.Duration*b.Duration +
		s.weights.Weather*b.Weather +
		s.weights.Convenience*b.Convenience
	b.Total = clamp01(total)
	return b, nil
}

// Optimize scores every candidate and returns a new slice ordered by
// descending score. Equal scores keep their input order.
func (s *Scorer) Optimize(candidates []journey.Candidate, weather *journey.WeatherContext, prefs *journey.Preferences) ([]journey.Candidate, error) {
	ranked := make([]journey.Candidate, len(candidates))
	for i, c := range candidates {
		score, err := s.Score(c, weather, prefs)
		if err != nil {
			return nil, err
		}
		c.Score = score
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func (s *Scorer) co2Score(c journey.Candidate) float64 {
	distance := c.Distance()
	if distance == 0 {
		if c.CO2 == 0 {
			return 1
		}
		return 0
	}
	perMile := c.CO2 / distance
	return clamp01(1 - perMile/s.thresholds.CO2Ceiling)
}

func (s *Scorer) durationScore(c journey.Candidate) float64 {
	return clamp01(1 - float64(c.Duration())/float64(s.thresholds.MaxDuration))
}

func (s *Scorer) weatherScore(c journey.Candidate, weather *journey.WeatherContext) float64 {
	if weather == nil {
		return 1
	}
	switch c.Mode() {
	case journey.ModeWalk:
		return s.thresholds.Walk.Apply(*weather)
	case journey.ModeCycle:
		return s.thresholds.Cycle.Apply(*weather)
	}
	return 1
}

func (s *Scorer) convenienceScore(c journey.Candidate, prefs *journey.Preferences) float64 {
	score := 1.0
	mode := c.Mode()
	if prefs != nil && prefersMode(prefs.PreferredMode, mode) {
		score *= s.thresholds.PreferredModeBonus
	}
	if mode.IsTransit() {
		score *= math.Max(s.thresholds.MinTransferFactor, 1-float64(c.Changes())*s.thresholds.ChangePenalty)
	}
	return math.Min(score, 1)
}

// prefersMode matches a preferred mode against a candidate's aggregate mode.
// A preference for tube or bus also covers mixed transit candidates.
func prefersMode(preferred, mode journey.Mode) bool {
	if preferred == "" {
		return false
	}
	if preferred == mode {
		return true
	}
	return mode == journey.ModeTransit && preferred.IsTransit()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
