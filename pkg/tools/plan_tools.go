package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/eco"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/monitoring"
	"github.com/NERVsystems/journeymcp/pkg/planner"
	"github.com/NERVsystems/journeymcp/pkg/scoring"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

// LegInput is one leg of a candidate as supplied by a client
type LegInput struct {
	Mode            string  `json:"mode"`
	Distance        float64 `json:"distance"`
	DurationMinutes float64 `json:"duration_minutes"`
	From            string  `json:"from,omitempty"`
	To              string  `json:"to,omitempty"`
	Line            string  `json:"line,omitempty"`
	BoardingMinutes float64 `json:"boarding_minutes,omitempty"`
}

// CandidateInput is one route option as supplied by a client. CO2Kg is
// only read by rank_routes; plan_journey computes it.
type CandidateInput struct {
	ID    string     `json:"id"`
	Legs  []LegInput `json:"legs"`
	CO2Kg float64    `json:"co2_kg,omitempty"`
}

// CandidateOutput is a ranked candidate
type CandidateOutput struct {
	ID              string            `json:"id"`
	Rank            int               `json:"rank"`
	Mode            journey.Mode      `json:"mode"`
	Distance        float64           `json:"distance"`
	DurationMinutes float64           `json:"duration_minutes"`
	Changes         int               `json:"changes"`
	Fare            *float64          `json:"fare,omitempty"`
	FareKnown       bool              `json:"fare_known"`
	CO2Kg           float64           `json:"co2_kg"`
	SavedVsCarKg    float64           `json:"saved_vs_car_kg"`
	Score           float64           `json:"score"`
	Breakdown       scoring.Breakdown `json:"breakdown"`
	Degraded        bool              `json:"degraded,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// RankInput is the input of the rank_routes tool
type RankInput struct {
	Candidates    []CandidateInput        `json:"candidates"`
	Weather       *journey.WeatherContext `json:"weather,omitempty"`
	PreferredMode string                  `json:"preferred_mode,omitempty"`
	Weights       *journey.ScoreWeights   `json:"weights,omitempty"`
}

// PlanInput is the input of the plan_journey tool
type PlanInput struct {
	RankInput
	Time       string `json:"time"`
	Passengers int    `json:"passengers,omitempty"`
}

// RankOutput is a ranked list of candidates
type RankOutput struct {
	Best       string            `json:"best"`
	Candidates []CandidateOutput `json:"candidates"`
}

// PlanOutput is a priced and ranked list of candidates
type PlanOutput struct {
	RankOutput
	Degraded    bool            `json:"degraded"`
	Equivalents eco.Equivalents `json:"best_saving_equivalents"`
}

func candidateParams(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		mcp.WithArray("candidates",
			mcp.Required(),
			mcp.Description("Route options, each {id, legs: [{mode, distance, duration_minutes, from, to, boarding_minutes}]}. "+
				"Distances in miles; tube legs need from and to stations for a fare."),
		),
		mcp.WithObject("weather",
			mcp.Description("Weather at departure: {temperature_c, wind_speed (mph), precipitation: none|rain|snow|sleet}"),
		),
		mcp.WithString("preferred_mode",
			mcp.Description("Mode the traveller prefers: walk, cycle, tube, bus or drive"),
		),
		mcp.WithObject("weights",
			mcp.Description("Score weights {co2, duration, weather, convenience}, each in [0, 1], summing to at most 1"),
		),
	}, opts...)
}

// RankRoutesTool returns a tool definition for scoring candidates with known CO2
func RankRoutesTool() mcp.Tool {
	return mcp.NewTool("rank_routes", candidateParams(
		mcp.WithDescription("Score and rank route options by CO2, duration, weather suitability and convenience. "+
			"Each candidate carries its own co2_kg; no fares are computed."),
	)...)
}

// HandleRankRoutes implements candidate ranking
func HandleRankRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("rank_routes", "scoring", func(ctx context.Context, input RankInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		candidates, err := toCandidates(input.Candidates)
		if err != nil {
			return nil, err
		}
		for i := range candidates {
			if err := candidates[i].Validate(); err != nil {
				return nil, err
			}
			co2 := input.Candidates[i].CO2Kg
			if !journey.IsFinite(co2) || co2 < 0 {
				return nil, journey.NewInvalidInput("co2_kg", fmt.Sprintf("candidate %q: must be a non-negative number", candidates[i].ID))
			}
			candidates[i].CO2 = co2
			candidates[i].SavedVsCar = calc.Emissions.SavedVsCar(candidates[i], co2)
		}
		prefs, err := toPreferences(input.PreferredMode)
		if err != nil {
			return nil, err
		}

		scorer := calc.Scorer
		if input.Weights != nil {
			if scorer, err = scorer.WithWeights(*input.Weights); err != nil {
				return nil, err
			}
		}
		ranked, err := scorer.Optimize(candidates, input.Weather, prefs)
		if err != nil {
			return nil, err
		}
		breakdowns := make([]scoring.Breakdown, len(ranked))
		for i, c := range ranked {
			if breakdowns[i], err = scorer.Breakdown(c, input.Weather, prefs); err != nil {
				return nil, err
			}
		}
		tracing.SetAttributes(ctx, attribute.Int(tracing.AttrCandidateCount, len(ranked)))
		return toRankOutput(ranked, breakdowns, false), nil
	})(ctx, req)
}

// PlanJourneyTool returns a tool definition for full journey planning
func PlanJourneyTool() mcp.Tool {
	return mcp.NewTool("plan_journey", candidateParams(
		mcp.WithDescription("Price, score and rank route options for a departure time. Fares, CO2 and savings "+
			"against driving are computed per candidate; a candidate whose fare cannot be found is kept with a warning."),
		mcp.WithString("time",
			mcp.Required(),
			mcp.Description("Departure time, RFC 3339 (2024-01-09T08:15:00Z) or local time (2024-01-09T08:15)"),
		),
		mcp.WithNumber("passengers",
			mcp.Description("People sharing drive legs, default 1"),
			mcp.DefaultNumber(1),
		),
	)...)
}

// HandlePlanJourney implements journey planning
func HandlePlanJourney(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("plan_journey", "planner", func(ctx context.Context, input PlanInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		if len(input.Candidates) > planner.MaxCandidates {
			return nil, journey.NewInvalidInput("candidates", fmt.Sprintf("at most %d candidates are allowed", planner.MaxCandidates))
		}
		departure, err := parseJourneyTime(input.Time)
		if err != nil {
			return nil, err
		}
		candidates, err := toCandidates(input.Candidates)
		if err != nil {
			return nil, err
		}
		prefs, err := toPreferences(input.PreferredMode)
		if err != nil {
			return nil, err
		}

		plan, err := calc.Planner.Evaluate(ctx, planner.Request{
			Candidates:  candidates,
			Departure:   departure,
			Weather:     input.Weather,
			Preferences: prefs,
			Weights:     input.Weights,
			Passengers:  input.Passengers,
		})
		if err != nil {
			return nil, err
		}

		monitoring.RecordPlan(len(plan.Candidates))
		out := PlanOutput{
			RankOutput:  toRankOutput(plan.Candidates, plan.Breakdowns, true),
			Equivalents: plan.Equivalents,
		}
		for _, c := range plan.Candidates {
			if c.Degraded {
				out.Degraded = true
				monitoring.RecordZoneFallback()
			}
		}
		tracing.SetAttributes(ctx,
			attribute.Int(tracing.AttrCandidateCount, len(plan.Candidates)),
			attribute.Bool(tracing.AttrJourneyDegraded, out.Degraded),
		)
		logger.Debug("journey planned", "candidates", len(plan.Candidates), "best", out.Best)
		return out, nil
	})(ctx, req)
}

func toCandidates(in []CandidateInput) ([]journey.Candidate, error) {
	if len(in) == 0 {
		return nil, core.NewValidationError(core.ErrMissingParameter, "At least one candidate is required")
	}
	out := make([]journey.Candidate, len(in))
	for i, c := range in {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = fmt.Sprintf("option-%d", i+1)
		}
		legs := make([]journey.Leg, len(c.Legs))
		for j, l := range c.Legs {
			mode, err := core.ParseMode(l.Mode)
			if err != nil {
				return nil, err
			}
			duration, err := minutes("duration_minutes", l.DurationMinutes)
			if err != nil {
				return nil, fmt.Errorf("candidate %q leg %d: %w", id, j, err)
			}
			boarding, err := minutes("boarding_minutes", l.BoardingMinutes)
			if err != nil {
				return nil, fmt.Errorf("candidate %q leg %d: %w", id, j, err)
			}
			legs[j] = journey.Leg{
				Mode:        mode,
				Distance:    l.Distance,
				Duration:    duration,
				FromStation: l.From,
				ToStation:   l.To,
				Line:        l.Line,
				Boarding:    boarding,
			}
		}
		out[i] = journey.Candidate{ID: id, Legs: legs}
	}
	return out, nil
}

func toPreferences(mode string) (*journey.Preferences, error) {
	if strings.TrimSpace(mode) == "" {
		return nil, nil
	}
	m, err := core.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return &journey.Preferences{PreferredMode: m}, nil
}

func toRankOutput(ranked []journey.Candidate, breakdowns []scoring.Breakdown, priced bool) RankOutput {
	out := RankOutput{Candidates: make([]CandidateOutput, len(ranked))}
	for i, c := range ranked {
		co := CandidateOutput{
			ID:              c.ID,
			Rank:            i + 1,
			Mode:            c.Mode(),
			Distance:        c.Distance(),
			DurationMinutes: c.Duration().Minutes(),
			Changes:         c.Changes(),
			FareKnown:       c.FareKnown,
			CO2Kg:           c.CO2,
			SavedVsCarKg:    c.SavedVsCar,
			Score:           c.Score,
			Breakdown:       breakdowns[i],
			Degraded:        c.Degraded,
			Warnings:        c.Warnings,
		}
		if priced && c.FareKnown {
			fare := c.Fare
			co.Fare = &fare
		}
		out.Candidates[i] = co
	}
	if len(ranked) > 0 {
		out.Best = ranked[0].ID
	}
	return out
}
