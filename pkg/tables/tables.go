// Package tables loads the reference data behind every calculator from a
// JSON document and builds the calculators from it. Sections left out of a
// document fall back to the built-in London 2024 data.
package tables

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/eco"
	"github.com/NERVsystems/journeymcp/pkg/emissions"
	"github.com/NERVsystems/journeymcp/pkg/fares"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/scoring"
)

// DefaultName names the built-in table set.
const DefaultName = "london-2024"

// File is the on-disk table document.
type File struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`

	Zones     *ZonesSection           `json:"zones,omitempty"`
	Tariff    *TariffSection          `json:"tariff,omitempty"`
	Bus       *fares.BusFares         `json:"bus,omitempty"`
	Emissions *emissions.Coefficients `json:"emissions,omitempty"`
	Scoring   *ScoringSection         `json:"scoring,omitempty"`
	Eco       *eco.Factors            `json:"eco,omitempty"`
}

// ZonesSection holds zone fares keyed "z<lo>-<hi>".
type ZonesSection struct {
	Fares        map[string]fares.FareEntry `json:"fares"`
	DailyCaps    map[string]float64         `json:"daily_caps"`
	MaxDailyCap  float64                    `json:"max_daily_cap"`
	Stations     map[string][]int           `json:"stations"`
	FallbackZone int                        `json:"fallback_zone"`

	// PeakWindows are "HH:MM" pairs, start inclusive and end exclusive.
	// Omitted means the standard London windows.
	PeakWindows []ClockWindow `json:"peak_windows,omitempty"`
}

// ClockWindow is a time-of-day window in "HH:MM" form.
type ClockWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TariffSection holds the metered taxi tariffs.
type TariffSection struct {
	Bands            []fares.TariffBand   `json:"bands"`
	Windows          []fares.TariffWindow `json:"windows"`
	MinimumCharge    float64              `json:"minimum_charge"`
	LongDistanceRate float64              `json:"long_distance_rate"`
	BaseDistance     float64              `json:"base_distance"`
	LongDistanceFrom float64              `json:"long_distance_from"`
}

// ScoringSection holds the scoring weights and thresholds. Zero values take
// the defaults.
type ScoringSection struct {
	Weights            *journey.ScoreWeights `json:"weights,omitempty"`
	CO2Ceiling         float64               `json:"co2_ceiling,omitempty"`
	MaxDurationMinutes float64               `json:"max_duration_minutes,omitempty"`
	Walk               *scoring.WeatherRules `json:"walk,omitempty"`
	Cycle              *scoring.WeatherRules `json:"cycle,omitempty"`
	PreferredModeBonus float64               `json:"preferred_mode_bonus,omitempty"`
	ChangePenalty      float64               `json:"change_penalty,omitempty"`
	MinTransferFactor  float64               `json:"min_transfer_factor,omitempty"`
}

// Set is a validated, built set of calculators.
type Set struct {
	Name      string
	Location  *time.Location
	Zones     *fares.ZoneCalculator
	Tariff    *fares.TariffCalculator
	Transit   *fares.TransitCalculator
	Emissions *emissions.Model
	Scorer    *scoring.Scorer
	Eco       *eco.Converter
}

// Decode parses a table document. Unknown fields are rejected.
func Decode(r io.Reader) (File, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f File
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode tables: %w", err)
	}
	return f, nil
}

// Load decodes a document and builds its calculators.
func Load(r io.Reader) (*Set, error) {
	f, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return Build(f)
}

// LoadFile loads a table document from path.
func LoadFile(path string) (*Set, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tables: %w", err)
	}
	defer fh.Close()

	set, err := Load(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Default builds the London 2024 tables.
func Default() (*Set, error) {
	return Build(File{Name: DefaultName})
}

// Build validates a document and constructs every calculator.
func Build(f File) (*Set, error) {
	loc := fares.LondonLocation()
	if f.Location != "" {
		var err error
		if loc, err = time.LoadLocation(f.Location); err != nil {
			return nil, journey.NewInvalidInput("location", err.Error())
		}
	}
	name := f.Name
	if name == "" {
		name = DefaultName
	}

	zoneTable, err := buildZoneTable(f.Zones, loc)
	if err != nil {
		return nil, err
	}
	zones, err := fares.NewZoneCalculator(zoneTable)
	if err != nil {
		return nil, err
	}

	tariffTable := fares.LondonTariffTable()
	if s := f.Tariff; s != nil {
		tariffTable = fares.TariffTable{
			Bands:            s.Bands,
			Windows:          s.Windows,
			MinimumCharge:    s.MinimumCharge,
			LongDistanceRate: s.LongDistanceRate,
			BaseDistance:     s.BaseDistance,
			LongDistanceFrom: s.LongDistanceFrom,
		}
	}
	tariffTable.Location = loc
	tariff, err := fares.NewTariffCalculator(tariffTable)
	if err != nil {
		return nil, err
	}

	busFares := fares.LondonBusFares()
	if f.Bus != nil {
		busFares = *f.Bus
	}
	transit, err := fares.NewTransitCalculator(busFares)
	if err != nil {
		return nil, err
	}

	coeff := emissions.DefaultCoefficients()
	if f.Emissions != nil {
		coeff = *f.Emissions
	}
	model, err := emissions.NewModel(coeff)
	if err != nil {
		return nil, err
	}

	weights, thresholds := buildScoring(f.Scoring, model.CarBaseline())
	scorer, err := scoring.NewScorer(weights, thresholds)
	if err != nil {
		return nil, err
	}

	factors := eco.DefaultFactors()
	factors.CarKgPerMile = model.CarBaseline()
	if f.Eco != nil {
		factors = *f.Eco
	}
	converter, err := eco.NewConverter(factors)
	if err != nil {
		return nil, err
	}

	return &Set{
		Name:      name,
		Location:  loc,
		Zones:     zones,
		Tariff:    tariff,
		Transit:   transit,
		Emissions: model,
		Scorer:    scorer,
		Eco:       converter,
	}, nil
}

func buildZoneTable(s *ZonesSection, loc *time.Location) (fares.ZoneTable, error) {
	if s == nil {
		t := fares.LondonZoneTable()
		t.Location = loc
		return t, nil
	}

	t := fares.ZoneTable{
		Fares:        make(map[fares.ZoneFareKey]fares.FareEntry, len(s.Fares)),
		DailyCaps:    make(map[fares.ZoneFareKey]float64, len(s.DailyCaps)),
		MaxDailyCap:  s.MaxDailyCap,
		Stations:     s.Stations,
		FallbackZone: s.FallbackZone,
		PeakWindows:  []fares.TimeWindow{fares.MorningPeak, fares.EveningPeak},
		Location:     loc,
	}
	for raw, entry := range s.Fares {
		key, err := fares.ParseZoneFareKey(raw)
		if err != nil {
			return fares.ZoneTable{}, err
		}
		if _, dup := t.Fares[key]; dup {
			return fares.ZoneTable{}, journey.NewInvalidInput("fares", fmt.Sprintf("%s is listed twice", key))
		}
		t.Fares[key] = entry
	}
	for raw, limit := range s.DailyCaps {
		key, err := fares.ParseZoneFareKey(raw)
		if err != nil {
			return fares.ZoneTable{}, err
		}
		t.DailyCaps[key] = limit
	}
	if len(s.PeakWindows) > 0 {
		t.PeakWindows = t.PeakWindows[:0]
		for _, w := range s.PeakWindows {
			start, err := parseClock(w.Start)
			if err != nil {
				return fares.ZoneTable{}, err
			}
			end, err := parseClock(w.End)
			if err != nil {
				return fares.ZoneTable{}, err
			}
			t.PeakWindows = append(t.PeakWindows, fares.TimeWindow{Start: start, End: end})
		}
	}
	return t, nil
}

func buildScoring(s *ScoringSection, carBaseline float64) (journey.ScoreWeights, scoring.Thresholds) {
	weights := journey.DefaultScoreWeights()
	th := scoring.DefaultThresholds(carBaseline)
	if s == nil {
		return weights, th
	}
	if s.Weights != nil {
		weights = *s.Weights
	}
	if s.CO2Ceiling != 0 {
		th.CO2Ceiling = s.CO2Ceiling
	}
	if s.MaxDurationMinutes != 0 {
		th.MaxDuration = time.Duration(s.MaxDurationMinutes * float64(time.Minute))
	}
	if s.Walk != nil {
		th.Walk = *s.Walk
	}
	if s.Cycle != nil {
		th.Cycle = *s.Cycle
	}
	if s.PreferredModeBonus != 0 {
		th.PreferredModeBonus = s.PreferredModeBonus
	}
	if s.ChangePenalty != 0 {
		th.ChangePenalty = s.ChangePenalty
	}
	if s.MinTransferFactor != 0 {
		th.MinTransferFactor = s.MinTransferFactor
	}
	return weights, th
}

// parseClock converts "HH:MM" into minutes after midnight. "24:00" is
// accepted as the end of the day.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if ok {
		h, errH := strconv.Atoi(hh)
		m, errM := strconv.Atoi(mm)
		if errH == nil && errM == nil && h >= 0 && m >= 0 && m < 60 && h*60+m <= 24*60 {
			return h*60 + m, nil
		}
	}
	return 0, journey.NewInvalidInput("peak windows", fmt.Sprintf("%q is not an HH:MM time", s))
}
