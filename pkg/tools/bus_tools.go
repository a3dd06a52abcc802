package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/core"
)

// BusFareInput is the input of the calculate_bus_fare tool
type BusFareInput struct {
	Journeys       int     `json:"journeys"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
}

// BusFareOutput is a priced set of bus journeys
type BusFareOutput struct {
	Fare     float64 `json:"fare"`
	Journeys int     `json:"journeys"`
	Hopper   bool    `json:"hopper"`
	Capped   bool    `json:"capped"`
}

// CalculateBusFareTool returns a tool definition for bus fares
func CalculateBusFareTool() mcp.Tool {
	return mcp.NewTool("calculate_bus_fare",
		mcp.WithDescription("Calculate the total bus fare for a number of journeys. Journeys within the hopper "+
			"window of the first boarding cost a single fare; otherwise each journey is charged up to the daily cap."),
		mcp.WithNumber("journeys",
			mcp.Required(),
			mcp.Description("Number of bus journeys, at least 1"),
		),
		mcp.WithNumber("elapsed_minutes",
			mcp.Required(),
			mcp.Description("Minutes between the first and the last boarding"),
		),
	)
}

// HandleCalculateBusFare implements bus fare calculation
func HandleCalculateBusFare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("calculate_bus_fare", "transit", func(ctx context.Context, input BusFareInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		fare, err := calc.Transit.CalculateFare(input.Journeys, input.ElapsedMinutes)
		if err != nil {
			return nil, err
		}
		est := calc.Transit.Estimate()
		hopper := input.ElapsedMinutes <= est.HopperWindowMinutes
		return BusFareOutput{
			Fare:     fare,
			Journeys: input.Journeys,
			Hopper:   hopper,
			Capped:   !hopper && fare == est.DailyCap,
		}, nil
	})(ctx, req)
}

// BusFareEstimateTool returns a tool definition for the bus fare summary
func BusFareEstimateTool() mcp.Tool {
	return core.NewToolFactory().CreateBasicTool("bus_fare_estimate",
		"Show the bus single fare, hopper window, daily cap and the number of journeys after which the cap applies")
}

// HandleBusFareEstimate implements the bus fare summary
func HandleBusFareEstimate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("bus_fare_estimate", "transit", func(ctx context.Context, _ struct{}, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		return calc.Transit.Estimate(), nil
	})(ctx, req)
}
