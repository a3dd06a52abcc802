package core

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolFactory builds tool definitions that share the standard journey
// parameters.
type ToolFactory struct {
	timeDescription string
}

// NewToolFactory creates a new tool factory
func NewToolFactory() *ToolFactory {
	return &ToolFactory{
		timeDescription: "Journey time, RFC 3339 (2024-01-09T08:15:00Z) or local London time (2024-01-09T08:15)",
	}
}

// CreateBasicTool creates a new tool with the specified name and description
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

// CreateStationPairTool creates a tool priced between two stations at a time
func (f *ToolFactory) CreateStationPairTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Origin station name, e.g. Bank"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Destination station name, e.g. Uxbridge"),
		),
		mcp.WithString("time",
			mcp.Required(),
			mcp.Description(f.timeDescription),
		),
	)
}

// CreateDistanceTool creates a tool that takes a distance in miles and,
// when withTime is set, a journey time
func (f *ToolFactory) CreateDistanceTool(name, description string, withTime bool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithNumber("distance",
			mcp.Required(),
			mcp.Description("Distance in miles"),
		),
	}
	if withTime {
		opts = append(opts, mcp.WithString("time",
			mcp.Required(),
			mcp.Description(f.timeDescription),
		))
	}
	return mcp.NewTool(name, opts...)
}
