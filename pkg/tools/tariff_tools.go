package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

// TaxiFareInput is the input of the taxi fare tools
type TaxiFareInput struct {
	Distance float64 `json:"distance"`
	Time     string  `json:"time,omitempty"`
}

// CalculateTaxiFareTool returns a tool definition for metered taxi fares
func CalculateTaxiFareTool() mcp.Tool {
	return core.NewToolFactory().CreateDistanceTool("calculate_taxi_fare",
		"Calculate a metered taxi fare for a distance at a given time, with the tariff band and an itemized breakdown",
		true)
}

// HandleCalculateTaxiFare implements metered fare calculation
func HandleCalculateTaxiFare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("calculate_taxi_fare", "tariff", func(ctx context.Context, input TaxiFareInput, logger *slog.Logger) (any, error) {
		if err := core.ValidateDistance("distance", input.Distance); err != nil {
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
		res, err := calc.Tariff.CalculateFare(input.Distance, t)
		if err != nil {
			return nil, err
		}
		tracing.SetAttributes(ctx, tracing.DistanceAttributes(string(journey.ModeDrive), input.Distance)...)
		tracing.SetAttributes(ctx, attribute.String(tracing.AttrTariffBand, res.Band))
		return res, nil
	})(ctx, req)
}

// EstimateTaxiFareRangeTool returns a tool definition for fare ranges
func EstimateTaxiFareRangeTool() mcp.Tool {
	return core.NewToolFactory().CreateDistanceTool("estimate_taxi_fare_range",
		"Estimate the cheapest and most expensive metered taxi fare for a distance when the journey time is not known",
		false)
}

// HandleEstimateTaxiFareRange implements fare range estimation
func HandleEstimateTaxiFareRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("estimate_taxi_fare_range", "tariff", func(ctx context.Context, input TaxiFareInput, logger *slog.Logger) (any, error) {
		if err := core.ValidateDistance("distance", input.Distance); err != nil {
			return nil, err
		}
		calc, err := current()
		if err != nil {
			return nil, err
		}
		return calc.Tariff.EstimateRange(input.Distance)
	})(ctx, req)
}
