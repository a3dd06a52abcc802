package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/eco"
	"github.com/NERVsystems/journeymcp/pkg/emissions"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

// EmissionsInput is the input of the calculate_emissions tool
type EmissionsInput struct {
	Mode       string  `json:"mode"`
	Distance   float64 `json:"distance"`
	Vehicle    string  `json:"vehicle,omitempty"`
	Passengers int     `json:"passengers,omitempty"`
}

// EmissionsOutput is a trip footprint with the saving expressed in
// everyday equivalents
type EmissionsOutput struct {
	emissions.Result
	SavingEquivalents *eco.Equivalents `json:"saving_equivalents,omitempty"`
}

// CalculateEmissionsTool returns a tool definition for trip emissions
func CalculateEmissionsTool() mcp.Tool {
	return mcp.NewTool("calculate_emissions",
		mcp.WithDescription("Calculate the CO2 emitted by a trip, the saving against driving alone in a petrol car, "+
			"and calories burned for walking and cycling"),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Transport mode: walk, cycle, tube, bus or drive"),
		),
		mcp.WithNumber("distance",
			mcp.Required(),
			mcp.Description("Distance in miles"),
		),
		mcp.WithString("vehicle",
			mcp.Description("Bus or car powertrain: petrol, diesel, hybrid or electric"),
		),
		mcp.WithNumber("passengers",
			mcp.Description("People sharing a car, default 1"),
			mcp.DefaultNumber(1),
		),
	)
}

// HandleCalculateEmissions implements trip emissions calculation
func HandleCalculateEmissions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("calculate_emissions", "emissions", func(ctx context.Context, input EmissionsInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		res, err := emissionsFor(calc, input)
		if err != nil {
			return nil, err
		}
		tracing.SetAttributes(ctx, tracing.DistanceAttributes(string(res.Mode), res.Distance)...)

		out := EmissionsOutput{Result: res}
		if res.SavedVsCar > 0 {
			eq, err := calc.Eco.Equivalents(res.SavedVsCar)
			if err != nil {
				return nil, err
			}
			out.SavingEquivalents = &eq
		}
		return out, nil
	})(ctx, req)
}

func emissionsFor(calc *Calculators, input EmissionsInput) (emissions.Result, error) {
	mode, err := core.ParseMode(input.Mode)
	if err != nil {
		return emissions.Result{}, err
	}
	passengers := input.Passengers
	if passengers == 0 {
		passengers = 1
	}
	return calc.Emissions.EmissionsFor(mode, emissions.Vehicle(input.Vehicle), input.Distance, passengers)
}

// EnrichEmissionsInput defines the input parameters for enriching route options with emissions data
type EnrichEmissionsInput struct {
	Options []EmissionsInput `json:"options"`
}

// EnrichEmissionsOutput defines the output for enriched route options
type EnrichEmissionsOutput struct {
	Options []emissions.Result `json:"options"`
	// Lowest is the index of the option with the least CO2
	Lowest int `json:"lowest"`
}

// EnrichEmissionsTool returns a tool definition for enriching route options with emissions data
func EnrichEmissionsTool() mcp.Tool {
	return mcp.NewTool("enrich_emissions",
		mcp.WithDescription("Enrich several route options with CO2 emissions, savings against driving and calorie burn"),
		mcp.WithArray("options",
			mcp.Required(),
			mcp.Description("Array of route options, each {mode, distance} with optional vehicle and passengers"),
		),
	)
}

// HandleEnrichEmissions implements emissions enrichment functionality
func HandleEnrichEmissions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("enrich_emissions", "emissions", func(ctx context.Context, input EnrichEmissionsInput, logger *slog.Logger) (any, error) {
		if len(input.Options) == 0 {
			return nil, core.NewValidationError(core.ErrMissingParameter, "At least one route option is required")
		}
		calc, err := current()
		if err != nil {
			return nil, err
		}

		out := EnrichEmissionsOutput{Options: make([]emissions.Result, len(input.Options))}
		for i, option := range input.Options {
			res, err := emissionsFor(calc, option)
			if err != nil {
				return nil, fmt.Errorf("option %d: %w", i, err)
			}
			out.Options[i] = res
			if res.CO2 < out.Options[out.Lowest].CO2 {
				out.Lowest = i
			}
		}
		return out, nil
	})(ctx, req)
}

// YearlyImpactInput is the input of the yearly_impact tool
type YearlyImpactInput struct {
	Mode        string  `json:"mode"`
	Distance    float64 `json:"distance"`
	WeeklyTrips int     `json:"weekly_trips"`
}

// YearlyImpactTool returns a tool definition for yearly projections
func YearlyImpactTool() mcp.Tool {
	return mcp.NewTool("yearly_impact",
		mcp.WithDescription("Project a regular trip over a year: trips, distance, CO2, saving against driving and "+
			"the number of trees needed to absorb the CO2"),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Transport mode: walk, cycle, tube, bus or drive"),
		),
		mcp.WithNumber("distance",
			mcp.Required(),
			mcp.Description("One-way trip distance in miles"),
		),
		mcp.WithNumber("weekly_trips",
			mcp.Required(),
			mcp.Description("Trips per week, e.g. 10 for a weekday commute both ways"),
		),
	)
}

// HandleYearlyImpact implements the yearly projection
func HandleYearlyImpact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("yearly_impact", "emissions", func(ctx context.Context, input YearlyImpactInput, logger *slog.Logger) (any, error) {
		mode, err := core.ParseMode(input.Mode)
		if err != nil {
			return nil, err
		}
		calc, err := current()
		if err != nil {
			return nil, err
		}
		return calc.Emissions.YearlyImpact(mode, input.Distance, input.WeeklyTrips)
	})(ctx, req)
}

// EcoEquivalentsInput is the input of the eco_equivalents tool
type EcoEquivalentsInput struct {
	CO2Kg float64 `json:"co2_kg"`
}

// EcoEquivalentsTool returns a tool definition for CO2 equivalents
func EcoEquivalentsTool() mcp.Tool {
	return mcp.NewTool("eco_equivalents",
		mcp.WithDescription("Express a mass of CO2 as tree-months of absorption, car miles, phone charges and light bulb hours"),
		mcp.WithNumber("co2_kg",
			mcp.Required(),
			mcp.Description("CO2 mass in kilograms"),
		),
	)
}

// HandleEcoEquivalents implements CO2 equivalence conversion
func HandleEcoEquivalents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("eco_equivalents", "eco", func(ctx context.Context, input EcoEquivalentsInput, logger *slog.Logger) (any, error) {
		calc, err := current()
		if err != nil {
			return nil, err
		}
		return calc.Eco.Equivalents(input.CO2Kg)
	})(ctx, req)
}
