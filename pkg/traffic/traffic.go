// Package traffic adjusts journey durations for a reported road status.
//
// The status comes from the caller; nothing here polls a live feed.
package traffic

import (
	"fmt"
	"strings"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// Road statuses with a known duration multiplier.
const (
	StatusGood        = "Good"
	StatusNormal      = "Normal"
	StatusMinorDelays = "Minor Delays"
	StatusModerate    = "Moderate"
	StatusSerious     = "Serious"
	StatusSevere      = "Severe"
)

var multipliers = map[string]float64{
	"good":         1,
	"normal":       1.1,
	"minor delays": 1.3,
	"moderate":     1.5,
	"serious":      1.8,
	"severe":       2,
}

// Delay severities
const (
	DelayLow      = "Low"
	DelayModerate = "Moderate"
	DelayHigh     = "High"
)

// Multiplier returns the duration multiplier for a road status. Unknown and
// empty statuses get 1.
func Multiplier(status string) float64 {
	if m, ok := multipliers[strings.ToLower(strings.TrimSpace(status))]; ok {
		return m
	}
	return 1
}

// DelaySeverity classifies a delay in minutes.
func DelaySeverity(delayMinutes float64) string {
	switch {
	case delayMinutes <= 5:
		return DelayLow
	case delayMinutes <= 15:
		return DelayModerate
	default:
		return DelayHigh
	}
}

// Impact is a duration adjusted for traffic.
type Impact struct {
	Status          string        `json:"status"`
	Multiplier      float64       `json:"multiplier"`
	Baseline        time.Duration `json:"baseline"`
	Adjusted        time.Duration `json:"adjusted"`
	Delay           time.Duration `json:"delay"`
	DelayPercentage float64       `json:"delay_percentage"`
	Severity        string        `json:"severity"`
}

// Adjust scales a baseline duration by the multiplier for status.
func Adjust(baseline time.Duration, status string) (Impact, error) {
	if baseline < 0 {
		return Impact{}, journey.NewInvalidInput("duration", fmt.Sprintf("must not be negative, got %s", baseline))
	}
	m := Multiplier(status)
	adjusted := time.Duration(float64(baseline) * m).Round(time.Second)
	delay := adjusted - baseline

	impact := Impact{
		Status:     status,
		Multiplier: m,
		Baseline:   baseline,
		Adjusted:   adjusted,
		Delay:      delay,
		Severity:   DelaySeverity(delay.Minutes()),
	}
	if baseline > 0 {
		impact.DelayPercentage = float64(delay) / float64(baseline) * 100
	}
	return impact, nil
}
