package eco

import (
	"errors"
	"math"
	"testing"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

func TestEquivalents(t *testing.T) {
	c, err := NewConverter(DefaultFactors())
	if err != nil {
		t.Fatalf("NewConverter() error: %v", err)
	}

	tests := []struct {
		kg   float64
		want Equivalents
	}{
		{0, Equivalents{}},
		{2.1, Equivalents{CO2Kg: 2.1, TreeMonths: 1.2, CarMiles: 2.1 / 0.17, PhoneCharges: 2100, LightBulbHours: 1050}},
		{21, Equivalents{CO2Kg: 21, TreeMonths: 12, CarMiles: 21 / 0.17, PhoneCharges: 21000, LightBulbHours: 10500}},
	}
	for _, tt := range tests {
		got, err := c.Equivalents(tt.kg)
		if err != nil {
			t.Fatalf("Equivalents(%v) error: %v", tt.kg, err)
		}
		for name, pair := range map[string][2]float64{
			"tree months":      {got.TreeMonths, tt.want.TreeMonths},
			"car miles":        {got.CarMiles, tt.want.CarMiles},
			"phone charges":    {got.PhoneCharges, tt.want.PhoneCharges},
			"light bulb hours": {got.LightBulbHours, tt.want.LightBulbHours},
		} {
			if math.Abs(pair[0]-pair[1]) > 1e-9 {
				t.Errorf("Equivalents(%v) %s = %v, want %v", tt.kg, name, pair[0], pair[1])
			}
		}
	}
}

func TestEquivalentsRejectsBadInput(t *testing.T) {
	c, err := NewConverter(DefaultFactors())
	if err != nil {
		t.Fatalf("NewConverter() error: %v", err)
	}
	for _, kg := range []float64{-0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := c.Equivalents(kg); !errors.Is(err, journey.ErrInvalidInput) {
			t.Errorf("Equivalents(%v) error = %v, want invalid input", kg, err)
		}
	}
}

func TestNewConverterValidation(t *testing.T) {
	f := DefaultFactors()
	f.CarKgPerMile = 0
	if _, err := NewConverter(f); !errors.Is(err, journey.ErrInvalidInput) {
		t.Errorf("NewConverter() with zero car factor error = %v, want invalid input", err)
	}
}
