package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/fares"
	"github.com/NERVsystems/journeymcp/pkg/monitoring"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

// StationPairInput is the input of the zone fare tools
type StationPairInput struct {
	From string `json:"from"`
	To   string `json:"to"`
	Time string `json:"time"`
}

// ZoneFareOutput is a priced zone journey
type ZoneFareOutput struct {
	fares.ZoneFareResult
	Zones  string `json:"zones"`
	Cached bool   `json:"cached"`
}

// CalculateZoneFareTool returns a tool definition for zone fares
func CalculateZoneFareTool() mcp.Tool {
	return core.NewToolFactory().CreateStationPairTool("calculate_zone_fare",
		"Calculate the single pay-as-you-go fare between two stations at a given time. "+
			"Stations in more than one zone are priced with the cheapest zone pairing.")
}

// HandleCalculateZoneFare implements zone fare calculation
func HandleCalculateZoneFare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("calculate_zone_fare", "zones", calculateZoneFare)(ctx, req)
}

func calculateZoneFare(ctx context.Context, input StationPairInput, logger *slog.Logger) (any, error) {
	if err := validateStationPair(input); err != nil {
		return nil, err
	}
	calc, err := current()
	if err != nil {
		return nil, err
	}
	t, err := parseJourneyTime(input.Time)
	if err != nil {
		return nil, err
	}

	res, cached, err := calc.ZoneFare(input.From, input.To, t)
	if err != nil {
		return nil, err
	}
	recordZoneFare(ctx, logger, input, res, cached)

	return ZoneFareOutput{
		ZoneFareResult: res,
		Zones:          res.Key().String(),
		Cached:         cached,
	}, nil
}

// JourneyOptionsTool returns a tool definition for the fare plus daily cap view
func JourneyOptionsTool() mcp.Tool {
	return core.NewToolFactory().CreateStationPairTool("journey_options",
		"Show the fare between two stations together with the daily cap for the zones travelled.")
}

// HandleJourneyOptions implements the journey options view
func HandleJourneyOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("journey_options", "zones", journeyOptions)(ctx, req)
}

func journeyOptions(ctx context.Context, input StationPairInput, logger *slog.Logger) (any, error) {
	if err := validateStationPair(input); err != nil {
		return nil, err
	}
	calc, err := current()
	if err != nil {
		return nil, err
	}
	t, err := parseJourneyTime(input.Time)
	if err != nil {
		return nil, err
	}

	res, cached, err := calc.ZoneFare(input.From, input.To, t)
	if err != nil {
		return nil, err
	}
	recordZoneFare(ctx, logger, input, res, cached)

	dailyCap, err := calc.Zones.DailyCap(res.FromZone, res.ToZone)
	if err != nil {
		return nil, err
	}
	return fares.JourneyOptions{Fare: res, DailyCap: dailyCap}, nil
}

// DailyCapInput is the input of the daily_cap tool
type DailyCapInput struct {
	Zones []int `json:"zones"`
}

// DailyCapTool returns a tool definition for daily cap lookups
func DailyCapTool() mcp.Tool {
	return mcp.NewTool("daily_cap",
		mcp.WithDescription("Look up the daily fare cap for travel across the given zones. "+
			"Spans without a tabulated cap get the system-wide maximum and are flagged as default."),
		mcp.WithArray("zones",
			mcp.Required(),
			mcp.Description("Zone numbers travelled through, e.g. [1, 4]"),
		),
	)
}

// HandleDailyCap implements daily cap lookup
func HandleDailyCap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("daily_cap", "zones", func(ctx context.Context, input DailyCapInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		return calc.Zones.DailyCap(input.Zones...)
	})(ctx, req)
}

func validateStationPair(input StationPairInput) error {
	if err := core.RequireString("from", input.From); err != nil {
		return err
	}
	return core.RequireString("to", input.To)
}

// recordZoneFare annotates the span and reports fallback pricing
func recordZoneFare(ctx context.Context, logger *slog.Logger, input StationPairInput, res fares.ZoneFareResult, cached bool) {
	tracing.SetAttributes(ctx, tracing.StationPairAttributes(res.FromStation, res.ToStation, res.IsPeak, res.Degraded)...)
	tracing.SetAttributes(ctx, attribute.Bool(tracing.AttrCacheHit, cached))
	if !res.Degraded {
		return
	}
	monitoring.RecordZoneFallback()
	tracing.AddEvent(ctx, "fallback_zone", trace.WithAttributes(
		attribute.String(tracing.AttrJourneyFrom, input.From),
		attribute.String(tracing.AttrJourneyTo, input.To),
	))
	logger.Warn("station resolved through fallback zone",
		"from", input.From,
		"to", input.To,
		"zones", res.Key().String())
}
