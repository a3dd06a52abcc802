// Package eco turns a CO2 saving into everyday equivalents.
package eco

import (
	"fmt"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// Factors are the linear conversion factors applied to a CO2 mass in kg.
type Factors struct {
	// TreeKgPerYear is the CO2 one tree absorbs in a year.
	TreeKgPerYear       float64 `json:"tree_kg_per_year"`
	// CarKgPerMile is the petrol car emission factor.
	CarKgPerMile        float64 `json:"car_kg_per_mile"`
	PhoneChargesPerKg   float64 `json:"phone_charges_per_kg"`
	LightBulbHoursPerKg float64 `json:"light_bulb_hours_per_kg"`
}

// DefaultFactors returns the reference factors.
func DefaultFactors() Factors {
	return Factors{
		TreeKgPerYear:       21,
		CarKgPerMile:        0.17,
		PhoneChargesPerKg:   1000,
		LightBulbHoursPerKg: 500,
	}
}

// Validate requires every factor to be positive.
func (f Factors) Validate() error {
	for name, v := range map[string]float64{
		"tree kg per year":        f.TreeKgPerYear,
		"car kg per mile":         f.CarKgPerMile,
		"phone charges per kg":    f.PhoneChargesPerKg,
		"light bulb hours per kg": f.LightBulbHoursPerKg,
	} {
		if !journey.IsFinite(v) || v <= 0 {
			return journey.NewInvalidInput("eco."+name, fmt.Sprintf("must be positive, got %v", v))
		}
	}
	return nil
}

// Equivalents expresses a CO2 mass in relatable units. Values are not
// rounded.
type Equivalents struct {
	CO2Kg          float64 `json:"co2_kg"`
	TreeMonths     float64 `json:"tree_months"`
	CarMiles       float64 `json:"car_miles"`
	PhoneCharges   float64 `json:"phone_charges"`
	LightBulbHours float64 `json:"light_bulb_hours"`
}

// Converter applies a fixed set of factors.
type Converter struct {
	factors Factors
}

// NewConverter validates the factors and builds a converter.
func NewConverter(factors Factors) (*Converter, error) {
	if err := factors.Validate(); err != nil {
		return nil, err
	}
	return &Converter{factors: factors}, nil
}

// Equivalents converts kg of CO2. Negative and non-finite masses are
// rejected.
func (c *Converter) Equivalents(kg float64) (Equivalents, error) {
	if !journey.IsFinite(kg) || kg < 0 {
		return Equivalents{}, journey.NewInvalidInput("co2", fmt.Sprintf("must be a finite non-negative mass, got %v", kg))
	}
	return Equivalents{
		CO2Kg:          kg,
		TreeMonths:     kg * 12 / c.factors.TreeKgPerYear,
		CarMiles:       kg / c.factors.CarKgPerMile,
		PhoneCharges:   kg * c.factors.PhoneChargesPerKg,
		LightBulbHours: kg * c.factors.LightBulbHoursPerKg,
	}, nil
}
