// Package emissions converts journey legs into CO2 mass and the saving
// against making the same trip alone in a petrol car.
package emissions

import (
	"fmt"
	"math"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// Vehicle is a powertrain variant for buses and cars.
type Vehicle string

// Powertrain variants
const (
	Petrol   Vehicle = "petrol"
	Diesel   Vehicle = "diesel"
	Hybrid   Vehicle = "hybrid"
	Electric Vehicle = "electric"
)

// CO2 absorbed by one tree in a year, in kg.
const TreeKgPerYear = 21.0

// Coefficients are emission factors in kg CO2 per mile.
type Coefficients struct {
	Walk  float64             `json:"walk"`
	Cycle float64             `json:"cycle"`
	Tube  float64             `json:"tube"`
	Bus   map[Vehicle]float64 `json:"bus"`
	Car   map[Vehicle]float64 `json:"car"`

	// Default variants used when no vehicle is named. The car default is
	// also the baseline that savings are measured against.
	DefaultBus Vehicle `json:"default_bus"`
	DefaultCar Vehicle `json:"default_car"`

	// Calories burned per mile for the active modes.
	WalkCalories  float64 `json:"walk_calories"`
	CycleCalories float64 `json:"cycle_calories"`
}

// DefaultCoefficients returns the reference factors.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Walk:  0,
		Cycle: 0,
		Tube:  0.03,
		Bus: map[Vehicle]float64{
			Diesel:   0.08,
			Hybrid:   0.05,
			Electric: 0.03,
		},
		Car: map[Vehicle]float64{
			Petrol:   0.17,
			Diesel:   0.15,
			Hybrid:   0.10,
			Electric: 0.05,
		},
		DefaultBus:    Diesel,
		DefaultCar:    Petrol,
		WalkCalories:  60,
		CycleCalories: 40,
	}
}

// Validate rejects negative factors and missing default variants.
func (c Coefficients) Validate() error {
	for name, v := range map[string]float64{
		"walk": c.Walk, "cycle": c.Cycle, "tube": c.Tube,
		"walk calories": c.WalkCalories, "cycle calories": c.CycleCalories,
	} {
		if !journey.IsFinite(v) || v < 0 {
			return journey.NewInvalidInput("coefficients."+name, fmt.Sprintf("must be a non-negative number, got %v", v))
		}
	}
	for _, set := range []struct {
		name  string
		table map[Vehicle]float64
		def   Vehicle
	}{
		{"bus", c.Bus, c.DefaultBus},
		{"car", c.Car, c.DefaultCar},
	} {
		for v, f := range set.table {
			if !journey.IsFinite(f) || f < 0 {
				return journey.NewInvalidInput("coefficients."+set.name, fmt.Sprintf("%s must be non-negative, got %v", v, f))
			}
		}
		if _, ok := set.table[set.def]; !ok {
			return journey.NewInvalidInput("coefficients."+set.name, fmt.Sprintf("default variant %q has no factor", set.def))
		}
	}
	return nil
}

// Result is the CO2 footprint of one trip.
type Result struct {
	Mode       journey.Mode `json:"mode"`
	Vehicle    Vehicle      `json:"vehicle,omitempty"`
	Distance   float64      `json:"distance"`
	CO2        float64      `json:"co2_kg"`
	SavedVsCar float64      `json:"saved_vs_car_kg"`
	Calories   float64      `json:"calories,omitempty"`
}

// YearlyImpact projects a regular trip over a year.
type YearlyImpact struct {
	Result
	YearlyTrips    int     `json:"yearly_trips"`
	YearlyDistance float64 `json:"yearly_distance"`
	TreesNeeded    int     `json:"trees_needed"`
}

// Model computes emissions from a fixed set of coefficients.
type Model struct {
	coeff Coefficients
}

// NewModel validates the coefficients and builds a model.
func NewModel(coeff Coefficients) (*Model, error) {
	if err := coeff.Validate(); err != nil {
		return nil, fmt.Errorf("emission coefficients: %w", err)
	}
	m := &Model{coeff: coeff}
	m.coeff.Bus = copyFactors(coeff.Bus)
	m.coeff.Car = copyFactors(coeff.Car)
	return m, nil
}

// CarBaseline returns the per-mile factor of the default car.
func (m *Model) CarBaseline() float64 {
	return m.coeff.Car[m.coeff.DefaultCar]
}

// SavedVsCar returns what a candidate with a known total CO2 saves against
// the default car. Drive legs save nothing, so only the distance of the
// other legs is credited.
func (m *Model) SavedVsCar(c journey.Candidate, co2 float64) float64 {
	var credited float64
	for _, leg := range c.Legs {
		if leg.Mode != journey.ModeDrive {
			credited += leg.Distance
		}
	}
	return max(0, m.CarBaseline()*credited-co2)
}

// Coefficient returns the per-mile factor for a mode and optional vehicle.
func (m *Model) Coefficient(mode journey.Mode, vehicle Vehicle) (float64, error) {
	switch mode {
	case journey.ModeWalk:
		return m.coeff.Walk, nil
	case journey.ModeCycle:
		return m.coeff.Cycle, nil
	case journey.ModeTube:
		return m.coeff.Tube, nil
	case journey.ModeBus:
		return variant(m.coeff.Bus, vehicle, m.coeff.DefaultBus, "bus")
	case journey.ModeDrive:
		return variant(m.coeff.Car, vehicle, m.coeff.DefaultCar, "car")
	}
	return 0, &journey.UnsupportedModeError{Mode: string(mode)}
}

// Emissions returns the footprint of a trip using the default vehicles.
func (m *Model) Emissions(mode journey.Mode, distance float64, passengers int) (Result, error) {
	return m.EmissionsFor(mode, "", distance, passengers)
}

// EmissionsFor returns the footprint of a trip in a specific vehicle. Car
// emissions are shared between passengers and a car trip saves nothing.
func (m *Model) EmissionsFor(mode journey.Mode, vehicle Vehicle, distance float64, passengers int) (Result, error) {
	if err := journey.ValidateDistance(distance); err != nil {
		return Result{}, err
	}
	if passengers < 1 {
		return Result{}, journey.NewInvalidInput("passengers", fmt.Sprintf("must be at least 1, got %d", passengers))
	}
	coeff, err := m.Coefficient(mode, vehicle)
	if err != nil {
		return Result{}, err
	}

	r := Result{Mode: mode, Distance: distance}
	if mode == journey.ModeBus || mode == journey.ModeDrive {
		r.Vehicle = vehicle
		if r.Vehicle == "" {
			r.Vehicle = m.defaultVehicle(mode)
		}
	}
	if mode == journey.ModeDrive {
		r.CO2 = coeff * distance / float64(passengers)
		return r, nil
	}
	r.CO2 = coeff * distance
	r.SavedVsCar = m.CarBaseline()*distance - r.CO2
	r.Calories, _ = m.Calories(mode, distance)
	return r, nil
}

// Calories returns the calories burned over distance. Only walking and
// cycling burn any.
func (m *Model) Calories(mode journey.Mode, distance float64) (float64, error) {
	if err := journey.ValidateDistance(distance); err != nil {
		return 0, err
	}
	switch mode {
	case journey.ModeWalk:
		return m.coeff.WalkCalories * distance, nil
	case journey.ModeCycle:
		return m.coeff.CycleCalories * distance, nil
	case journey.ModeTube, journey.ModeBus, journey.ModeDrive:
		return 0, nil
	}
	return 0, &journey.UnsupportedModeError{Mode: string(mode)}
}

// YearlyImpact projects weeklyTrips trips of distance miles over 52 weeks.
func (m *Model) YearlyImpact(mode journey.Mode, distance float64, weeklyTrips int) (YearlyImpact, error) {
	if weeklyTrips < 0 {
		return YearlyImpact{}, journey.NewInvalidInput("weekly trips", fmt.Sprintf("must not be negative, got %d", weeklyTrips))
	}
	if err := journey.ValidateDistance(distance); err != nil {
		return YearlyImpact{}, err
	}
	trips := weeklyTrips * 52
	yearly := distance * float64(trips)
	r, err := m.Emissions(mode, yearly, 1)
	if err != nil {
		return YearlyImpact{}, err
	}
	return YearlyImpact{
		Result:         r,
		YearlyTrips:    trips,
		YearlyDistance: yearly,
		TreesNeeded:    int(math.Ceil(r.CO2 / TreeKgPerYear)),
	}, nil
}

func (m *Model) defaultVehicle(mode journey.Mode) Vehicle {
	if mode == journey.ModeBus {
		return m.coeff.DefaultBus
	}
	return m.coeff.DefaultCar
}

func variant(table map[Vehicle]float64, vehicle, def Vehicle, kind string) (float64, error) {
	if vehicle == "" {
		vehicle = def
	}
	f, ok := table[vehicle]
	if !ok {
		return 0, &journey.UnsupportedModeError{Mode: kind + "/" + string(vehicle)}
	}
	return f, nil
}

func copyFactors(in map[Vehicle]float64) map[Vehicle]float64 {
	out := make(map[Vehicle]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
