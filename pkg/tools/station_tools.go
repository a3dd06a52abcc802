package tools

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/fares"
	"github.com/NERVsystems/journeymcp/pkg/journey"
)

const maxSuggestions = 5

// ResolveStationInput is the input of the resolve_station tool
type ResolveStationInput struct {
	Station string `json:"station"`
}

// ResolveStationTool returns a tool definition for station zone lookups
func ResolveStationTool() mcp.Tool {
	return mcp.NewTool("resolve_station",
		mcp.WithDescription("Look up the fare zones of a station. Unknown stations either fail with "+
			"suggestions or resolve to the configured fallback zone, flagged as fallback."),
		mcp.WithString("station",
			mcp.Required(),
			mcp.Description("Station name, e.g. Stratford"),
		),
	)
}

// HandleResolveStation implements station zone lookup
func HandleResolveStation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("resolve_station", "zones", func(ctx context.Context, input ResolveStationInput, logger *slog.Logger) (any, error) {
		if err := core.RequireString("station", input.Station); err != nil {
			return nil, err
		}
		calc, err := current()
		if err != nil {
			return nil, err
		}
		res, err := calc.Zones.ResolveZones(input.Station)
		if err != nil {
			return nil, err
		}
		if res.Fallback {
			logger.Warn("station resolved through fallback zone", "station", input.Station)
		}
		return res, nil
	})(ctx, req)
}

// ListStationsInput is the input of the list_stations tool
type ListStationsInput struct {
	Prefix string `json:"prefix,omitempty"`
}

// ListStationsOutput lists registered stations and their zones
type ListStationsOutput struct {
	Tables   string                 `json:"tables"`
	Count    int                    `json:"count"`
	Stations []fares.ZoneResolution `json:"stations"`
}

// ListStationsTool returns a tool definition for listing stations
func ListStationsTool() mcp.Tool {
	return mcp.NewTool("list_stations",
		mcp.WithDescription("List the stations known to the fare tables with their zones"),
		mcp.WithString("prefix",
			mcp.Description("Only list stations whose name starts with this text"),
		),
	)
}

// HandleListStations implements station listing
func HandleListStations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("list_stations", "zones", func(ctx context.Context, input ListStationsInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		prefix := journey.NormalizeStation(input.Prefix)
		out := ListStationsOutput{Tables: calc.Name, Stations: []fares.ZoneResolution{}}
		for _, name := range calc.Zones.Stations() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			res, err := calc.Zones.ResolveZones(name)
			if err != nil {
				return nil, err
			}
			out.Stations = append(out.Stations, res)
		}
		out.Count = len(out.Stations)
		return out, nil
	})(ctx, req)
}

// suggestStations proposes registered names close to query: names sharing
// a word with it first, then names sharing its first three letters.
func suggestStations(stations []string, query string) []string {
	q := journey.NormalizeStation(query)
	if q == "" {
		return nil
	}
	words := strings.Fields(q)
	stem := q
	if len(stem) > 3 {
		stem = stem[:3]
	}

	type match struct {
		name string
		rank int
	}
	var matches []match
	for _, name := range stations {
		rank := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(name, w) {
				rank += 2
			}
		}
		if strings.HasPrefix(name, stem) {
			rank++
		}
		if rank > 0 {
			matches = append(matches, match{name, rank})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank > matches[j].rank })

	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.name)
	}
	return out
}
