package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/monitoring"
)

// InputParser is a generic function to parse request arguments into a strongly typed struct
func InputParser[T any](req mcp.CallToolRequest) (T, *mcp.CallToolResult, error) {
	var input T
	if err := core.ParseArgs(req, &input); err != nil {
		return input, core.FromError(err).ToMCPResult(), err
	}
	return input, nil, nil
}

// WithParsedInput is a higher-order function that handles request parsing
// and error handling. Errors returned by handler are mapped onto MCP error
// results and counted against calculator.
func WithParsedInput[T any](
	handlerName, calculator string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (any, error),
) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", handlerName)

		input, _, err := InputParser[T](req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return core.FromError(err).
				WithGuidance(fmt.Sprintf("Example: %s", GetToolUsageExample(handlerName))).
				ToMCPResult(), nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			return calculationError(logger, calculator, err), nil
		}

		resultBytes, err := json.Marshal(result)
		if err != nil {
			logger.Error("failed to marshal result", "error", err)
			return core.NewError(core.ErrInternalError, "Failed to generate result").ToMCPResult(), nil
		}

		return mcp.NewToolResultText(string(resultBytes)), nil
	}
}

// calculationError logs and counts a failed calculation and converts it to
// an MCP error result.
func calculationError(logger *slog.Logger, calculator string, err error) *mcp.CallToolResult {
	kind := core.Kind(err)
	monitoring.RecordCalculationError(calculator, kind)

	mcpErr := core.FromError(err)
	switch kind {
	case "internal":
		logger.Error("calculation failed", "error", err)
	default:
		logger.Info("calculation rejected", "kind", kind, "error", err)
	}
	if mcpErr.Code == string(core.ErrUnknownStation) && mcpErr.Query != "" {
		if calc, cerr := current(); cerr == nil {
			mcpErr.WithSuggestions(suggestStations(calc.Zones.Stations(), mcpErr.Query)...)
		}
	}
	return mcpErr.ToMCPResult()
}

// parseJourneyTime reads a journey time in the configured zone location
func parseJourneyTime(value string) (time.Time, error) {
	calc, err := current()
	if err != nil {
		return time.Time{}, err
	}
	return core.ParseTime(value, calc.Location)
}

// minutes converts a duration in minutes to a time.Duration
func minutes(field string, m float64) (time.Duration, error) {
	if !journey.IsFinite(m) || m < 0 {
		return 0, journey.NewInvalidInput(field, fmt.Sprintf("must be a non-negative number of minutes, got %v", m))
	}
	return time.Duration(math.Round(m * float64(time.Minute))), nil
}
