// Package tools provides the journey MCP tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/journeymcp/pkg/monitoring"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

// HandlerFunc is the signature of every tool handler
type HandlerFunc = func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger *slog.Logger
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// ToolDefinition represents a journey MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     HandlerFunc
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		// Version and capability tools
		{
			Name:        "get_version",
			Description: "Get the version information for this journey MCP and its fare tables",
			Tool:        GetVersionTool(),
			Handler:     HandleGetVersion,
		},

		// Zone fares
		{
			Name:        "calculate_zone_fare",
			Description: "Fare between two stations at a time. Parameters: from (string), to (string), time (string)",
			Tool:        CalculateZoneFareTool(),
			Handler:     HandleCalculateZoneFare,
		},
		{
			Name:        "journey_options",
			Description: "Fare plus daily cap between two stations. Parameters: from (string), to (string), time (string)",
			Tool:        JourneyOptionsTool(),
			Handler:     HandleJourneyOptions,
		},
		{
			Name:        "daily_cap",
			Description: "Daily cap for a set of zones. Parameters: zones (array of numbers)",
			Tool:        DailyCapTool(),
			Handler:     HandleDailyCap,
		},
		{
			Name:        "resolve_station",
			Description: "Zones of a station. Parameters: station (string)",
			Tool:        ResolveStationTool(),
			Handler:     HandleResolveStation,
		},
		{
			Name:        "list_stations",
			Description: "Stations known to the fare tables. Parameters: prefix (string, optional)",
			Tool:        ListStationsTool(),
			Handler:     HandleListStations,
		},

		// Taxi and bus fares
		{
			Name:        "calculate_taxi_fare",
			Description: "Metered taxi fare. Parameters: distance (number, miles), time (string)",
			Tool:        CalculateTaxiFareTool(),
			Handler:     HandleCalculateTaxiFare,
		},
		{
			Name:        "estimate_taxi_fare_range",
			Description: "Cheapest and dearest taxi fare for a distance. Parameters: distance (number, miles)",
			Tool:        EstimateTaxiFareRangeTool(),
			Handler:     HandleEstimateTaxiFareRange,
		},
		{
			Name:        "calculate_bus_fare",
			Description: "Bus fare with hopper window and daily cap. Parameters: journeys (number), elapsed_minutes (number)",
			Tool:        CalculateBusFareTool(),
			Handler:     HandleCalculateBusFare,
		},
		{
			Name:        "bus_fare_estimate",
			Description: "Bus single fare, hopper window and daily cap",
			Tool:        BusFareEstimateTool(),
			Handler:     HandleBusFareEstimate,
		},

		// Emissions
		{
			Name:        "calculate_emissions",
			Description: "CO2 of a trip. Parameters: mode (string), distance (number, miles), vehicle (string), passengers (number)",
			Tool:        CalculateEmissionsTool(),
			Handler:     HandleCalculateEmissions,
		},
		{
			Name:        "enrich_emissions",
			Description: "CO2, savings and calories for several options. Parameters: options (array of {mode, distance})",
			Tool:        EnrichEmissionsTool(),
			Handler:     HandleEnrichEmissions,
		},
		{
			Name:        "yearly_impact",
			Description: "Yearly projection of a regular trip. Parameters: mode (string), distance (number), weekly_trips (number)",
			Tool:        YearlyImpactTool(),
			Handler:     HandleYearlyImpact,
		},
		{
			Name:        "eco_equivalents",
			Description: "CO2 in everyday equivalents. Parameters: co2_kg (number)",
			Tool:        EcoEquivalentsTool(),
			Handler:     HandleEcoEquivalents,
		},
		{
			Name:        "traffic_impact",
			Description: "Driving time adjusted for road status. Parameters: duration_minutes (number), status (string)",
			Tool:        TrafficImpactTool(),
			Handler:     HandleTrafficImpact,
		},

		// Ranking and planning
		{
			Name:        "rank_routes",
			Description: "Score and rank candidates with known CO2. Parameters: candidates (array), weather (object), preferred_mode (string), weights (object)",
			Tool:        RankRoutesTool(),
			Handler:     HandleRankRoutes,
		},
		{
			Name:        "plan_journey",
			Description: "Price, score and rank candidates. Parameters: candidates (array), time (string), weather (object), preferred_mode (string), weights (object), passengers (number)",
			Tool:        PlanJourneyTool(),
			Handler:     HandlePlanJourney,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.Wrap(def))
	}
}

// Wrap returns the handler of def with required-parameter validation,
// metrics and an OpenTelemetry span around it.
func (r *Registry) Wrap(def ToolDefinition) HandlerFunc {
	validated := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if result := ValidateRequired(def.Tool, req, r.logger.With("tool", def.Name)); result != nil {
			return result, nil
		}
		return def.Handler(ctx, req)
	}
	return r.wrapWithTracing(def.Name, validated)
}

// wrapWithTracing wraps a tool handler with OpenTelemetry tracing
func (r *Registry) wrapWithTracing(toolName string, handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)
		durationMs := duration.Milliseconds()

		// Tool failures come back as error results, not Go errors.
		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(
			attribute.String(tracing.AttrMCPToolStatus, status),
			attribute.Int64(tracing.AttrMCPToolDuration, durationMs),
			attribute.Int(tracing.AttrMCPResultSize, resultSize),
		)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", durationMs,
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
