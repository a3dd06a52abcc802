package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/traffic"
)

// TrafficImpactInput is the input of the traffic_impact tool
type TrafficImpactInput struct {
	DurationMinutes float64 `json:"duration_minutes"`
	Status          string  `json:"status"`
}

// TrafficImpactOutput is a drive duration adjusted for road status
type TrafficImpactOutput struct {
	Status          string  `json:"status"`
	Multiplier      float64 `json:"multiplier"`
	BaselineMinutes float64 `json:"baseline_minutes"`
	AdjustedMinutes float64 `json:"adjusted_minutes"`
	DelayMinutes    float64 `json:"delay_minutes"`
	DelayPercentage float64 `json:"delay_percentage"`
	Severity        string  `json:"severity"`
}

// TrafficImpactTool returns a tool definition for traffic adjustment
func TrafficImpactTool() mcp.Tool {
	return mcp.NewTool("traffic_impact",
		mcp.WithDescription("Adjust a driving time for the reported road status and classify the delay as Low, Moderate or High"),
		mcp.WithNumber("duration_minutes",
			mcp.Required(),
			mcp.Description("Free-flow driving time in minutes"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Road status: Good, Normal, Minor Delays, Moderate, Serious or Severe. Unknown statuses apply no delay."),
		),
	)
}

// HandleTrafficImpact implements traffic adjustment
func HandleTrafficImpact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("traffic_impact", "traffic", func(ctx context.Context, input TrafficImpactInput, logger *slog.Logger) (any, error) {
		baseline, err := minutes("duration_minutes", input.DurationMinutes)
		if err != nil {
			return nil, err
		}
		impact, err := traffic.Adjust(baseline, input.Status)
		if err != nil {
			return nil, err
		}
		return TrafficImpactOutput{
			Status:          impact.Status,
			Multiplier:      impact.Multiplier,
			BaselineMinutes: impact.Baseline.Minutes(),
			AdjustedMinutes: impact.Adjusted.Minutes(),
			DelayMinutes:    impact.Delay.Minutes(),
			DelayPercentage: impact.DelayPercentage,
			Severity:        impact.Severity,
		}, nil
	})(ctx, req)
}
