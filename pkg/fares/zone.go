// Package fares implements the three fare calculators of the journey core:
// zone-matrix rail fares, metered taxi tariffs and hopper bus fares. Every
// calculator is built from an explicit table value, is immutable after
// construction and takes the journey time as a parameter.
package fares

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// ZoneFareKey is an unordered pair of zones, stored lowest first.
type ZoneFareKey struct {
	Lo int
	Hi int
}

// Key returns the canonical key for a zone pair, so Key(a, b) == Key(b, a).
func Key(a, b int) ZoneFareKey {
	if a > b {
		a, b = b, a
	}
	return ZoneFareKey{Lo: a, Hi: b}
}

// String renders the key in the z<lo>-<hi> form used by fare data files.
func (k ZoneFareKey) String() string {
	return fmt.Sprintf("z%d-%d", k.Lo, k.Hi)
}

// Contains reports whether other lies within this span.
func (k ZoneFareKey) Contains(other ZoneFareKey) bool {
	return other.Lo >= k.Lo && other.Hi <= k.Hi
}

// ParseZoneFareKey parses "z1-3" (or "1-3") into a canonical key.
func ParseZoneFareKey(s string) (ZoneFareKey, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "z")
	lo, hi, ok := strings.Cut(trimmed, "-")
	if !ok {
		return ZoneFareKey{}, journey.NewInvalidInput("zone key", fmt.Sprintf("%q is not of the form z<a>-<b>", s))
	}
	a, errA := strconv.Atoi(lo)
	b, errB := strconv.Atoi(hi)
	if errA != nil || errB != nil || a < 1 || b < 1 {
		return ZoneFareKey{}, journey.NewInvalidInput("zone key", fmt.Sprintf("%q does not name two positive zones", s))
	}
	return Key(a, b), nil
}

// FareEntry holds the peak and off-peak fare for one zone pair.
type FareEntry struct {
	Peak    float64 `json:"peak"`
	OffPeak float64 `json:"off_peak"`
}

// TimeWindow is a closed-open range of minutes after midnight.
type TimeWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether minute falls in [Start, End).
func (w TimeWindow) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// ZoneTable is the reference data behind a ZoneCalculator.
type ZoneTable struct {
	Fares     map[ZoneFareKey]FareEntry
	DailyCaps map[ZoneFareKey]float64

	// MaxDailyCap is charged for spans missing from DailyCaps. When zero the
	// largest tabulated cap is used.
	MaxDailyCap float64

	// Stations maps station names to the zones they belong to.
	Stations map[string][]int

	// FallbackZone, when positive, is assumed for unknown stations and the
	// result is flagged as degraded. Zero disables the fallback.
	FallbackZone int

	// PeakWindows apply Monday to Friday only.
	PeakWindows []TimeWindow

	// Location is the fare authority's local time zone. Nil means the
	// timestamp's own location is used.
	Location *time.Location
}

// Validate checks the table invariants.
func (t ZoneTable) Validate() error {
	if len(t.Fares) == 0 {
		return journey.NewInvalidInput("fares", "zone fare table is empty")
	}
	for k, f := range t.Fares {
		if k.Lo > k.Hi || k.Lo < 1 {
			return journey.NewInvalidInput("fares", fmt.Sprintf("key %s is not canonical", k))
		}
		if !journey.IsFinite(f.Peak) || !journey.IsFinite(f.OffPeak) || f.OffPeak < 0 || f.Peak < f.OffPeak {
			return journey.NewInvalidInput("fares", fmt.Sprintf("%s must satisfy peak >= off-peak >= 0, got %v/%v", k, f.Peak, f.OffPeak))
		}
	}
	for span, limit := range t.DailyCaps {
		for k, f := range t.Fares {
			if span.Contains(k) && limit < f.Peak {
				return journey.NewInvalidInput("daily caps", fmt.Sprintf("cap %s (%v) is below the %s peak fare (%v)", span, limit, k, f.Peak))
			}
		}
	}
	if t.MaxDailyCap < 0 {
		return journey.NewInvalidInput("daily caps", "maximum daily cap must not be negative")
	}
	for name, zones := range t.Stations {
		if len(zones) == 0 {
			return journey.NewInvalidInput("stations", fmt.Sprintf("station %q has no zones", name))
		}
		for _, z := range zones {
			if z < 1 {
				return journey.NewInvalidInput("stations", fmt.Sprintf("station %q has invalid zone %d", name, z))
			}
		}
	}
	for _, w := range t.PeakWindows {
		if w.Start < 0 || w.End > 24*60 || w.Start >= w.End {
			return journey.NewInvalidInput("peak windows", fmt.Sprintf("window [%d, %d) is not within a day", w.Start, w.End))
		}
	}
	if t.FallbackZone < 0 {
		return journey.NewInvalidInput("fallback zone", "must not be negative")
	}
	return nil
}

// ZoneResolution is the outcome of resolving a station to its zones.
type ZoneResolution struct {
	Station  string `json:"station"`
	Zones    []int  `json:"zones"`
	Fallback bool   `json:"fallback"`
}

// ZoneFareResult is a priced zone journey.
type ZoneFareResult struct {
	Fare        float64 `json:"fare"`
	IsPeak      bool    `json:"is_peak"`
	FromZone    int     `json:"from_zone"`
	ToZone      int     `json:"to_zone"`
	PeakFare    float64 `json:"peak_fare"`
	OffPeakFare float64 `json:"off_peak_fare"`
	FromStation string  `json:"from_station"`
	ToStation   string  `json:"to_station"`

	// Degraded is set when either station was resolved through the
	// fallback zone rather than the registry.
	Degraded bool `json:"degraded"`
}

// Key returns the fare key the result was priced with.
func (r ZoneFareResult) Key() ZoneFareKey {
	return Key(r.FromZone, r.ToZone)
}

// DailyCap is a daily cap lookup result.
type DailyCap struct {
	Amount float64     `json:"amount"`
	Span   ZoneFareKey `json:"-"`
	Key    string      `json:"span"`

	// Default is set when the span was not tabulated and the system-wide
	// maximum cap applied.
	Default bool `json:"default"`
}

// JourneyOptions combines a zone fare with the daily cap for its zones.
type JourneyOptions struct {
	Fare     ZoneFareResult `json:"fare"`
	DailyCap DailyCap       `json:"daily_cap"`
}

// ZoneCalculator prices rail-style journeys from a zone fare matrix.
type ZoneCalculator struct {
	fares       map[ZoneFareKey]FareEntry
	caps        map[ZoneFareKey]float64
	maxCap      float64
	stations    map[string][]int
	fallback    int
	peakWindows []TimeWindow
	loc         *time.Location
}

// NewZoneCalculator validates the table and builds a calculator from a
// private copy of it.
func NewZoneCalculator(table ZoneTable) (*ZoneCalculator, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("zone table: %w", err)
	}

	c := &ZoneCalculator{
		fares:       make(map[ZoneFareKey]FareEntry, len(table.Fares)),
		caps:        make(map[ZoneFareKey]float64, len(table.DailyCaps)),
		stations:    make(map[string][]int, len(table.Stations)),
		fallback:    table.FallbackZone,
		peakWindows: append([]TimeWindow(nil), table.PeakWindows...),
		loc:         table.Location,
	}
	for k, f := range table.Fares {
		c.fares[k] = f
	}
	for k, v := range table.DailyCaps {
		c.caps[k] = v
		if v > c.maxCap {
			c.maxCap = v
		}
	}
	if table.MaxDailyCap > 0 {
		c.maxCap = table.MaxDailyCap
	}
	for name, zones := range table.Stations {
		sorted := dedupeZones(zones)
		c.stations[journey.NormalizeStation(name)] = sorted
	}
	return c, nil
}

// ResolveZones returns the zones a station belongs to. Unknown stations fail
// with UnknownStationError unless a fallback zone is configured.
func (c *ZoneCalculator) ResolveZones(station string) (ZoneResolution, error) {
	name := journey.NormalizeStation(station)
	if name == "" {
		return ZoneResolution{}, journey.NewInvalidInput("station", "station name is empty")
	}
	if zones, ok := c.stations[name]; ok {
		return ZoneResolution{
			Station: name,
			Zones:   append([]int(nil), zones...),
		}, nil
	}
	if c.fallback > 0 {
		return ZoneResolution{
			Station:  name,
			Zones:    []int{c.fallback},
			Fallback: true,
		}, nil
	}
	return ZoneResolution{}, &journey.UnknownStationError{Station: station}
}

// KnownStation reports whether a station is in the registry.
func (c *ZoneCalculator) KnownStation(station string) bool {
	_, ok := c.stations[journey.NormalizeStation(station)]
	return ok
}

// Stations lists the registered station names in sorted order.
func (c *ZoneCalculator) Stations() []string {
	names := make([]string, 0, len(c.stations))
	for name := range c.stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsPeak reports whether t falls inside a weekday peak window.
func (c *ZoneCalculator) IsPeak(t time.Time) bool {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	if !isWeekday(t.Weekday()) {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	for _, w := range c.peakWindows {
		if w.Contains(minute) {
			return true
		}
	}
	return false
}

// CalculateFare prices a journey between two stations at time t. Every
// combination of the stations' zones is considered and the cheapest
// tabulated fare applies.
func (c *ZoneCalculator) CalculateFare(from, to string, t time.Time) (ZoneFareResult, error) {
	fromRes, err := c.ResolveZones(from)
	if err != nil {
		return ZoneFareResult{}, err
	}
	toRes, err := c.ResolveZones(to)
	if err != nil {
		return ZoneFareResult{}, err
	}

	peak := c.IsPeak(t)
	var (
		best  ZoneFareResult
		found bool
	)
	for _, fz := range fromRes.Zones {
		for _, tz := range toRes.Zones {
			entry, ok := c.fares[Key(fz, tz)]
			if !ok {
				continue
			}
			fare := entry.OffPeak
			if peak {
				fare = entry.Peak
			}
			if found && fare >= best.Fare {
				continue
			}
			found = true
			best = ZoneFareResult{
				Fare:        fare,
				IsPeak:      peak,
				FromZone:    fz,
				ToZone:      tz,
				PeakFare:    entry.Peak,
				OffPeakFare: entry.OffPeak,
			}
		}
	}
	if !found {
		return ZoneFareResult{}, &journey.NoFareRouteError{
			From:      fromRes.Station,
			To:        toRes.Station,
			FromZones: fromRes.Zones,
			ToZones:   toRes.Zones,
		}
	}

	best.FromStation = fromRes.Station
	best.ToStation = toRes.Station
	best.Degraded = fromRes.Fallback || toRes.Fallback
	return best, nil
}

// DailyCap returns the daily cap for the span covering the given zones.
// Spans that are not tabulated get the system-wide maximum cap.
func (c *ZoneCalculator) DailyCap(zones ...int) (DailyCap, error) {
	if len(zones) == 0 {
		return DailyCap{}, journey.NewInvalidInput("zones", "at least one zone is required")
	}
	lo, hi := zones[0], zones[0]
	for _, z := range zones {
		if z < 1 {
			return DailyCap{}, journey.NewInvalidInput("zones", fmt.Sprintf("zone %d is not positive", z))
		}
		if z < lo {
			lo = z
		}
		if z > hi {
			hi = z
		}
	}
	span := Key(lo, hi)
	if amount, ok := c.caps[span]; ok {
		return DailyCap{Amount: amount, Span: span, Key: span.String()}, nil
	}
	return DailyCap{Amount: c.maxCap, Span: span, Key: span.String(), Default: true}, nil
}

// JourneyOptions prices a journey and attaches the daily cap for the zones
// the fare was computed with.
func (c *ZoneCalculator) JourneyOptions(from, to string, t time.Time) (JourneyOptions, error) {
	fare, err := c.CalculateFare(from, to, t)
	if err != nil {
		return JourneyOptions{}, err
	}
	dailyCap, err := c.DailyCap(fare.FromZone, fare.ToZone)
	if err != nil {
		return JourneyOptions{}, err
	}
	return JourneyOptions{Fare: fare, DailyCap: dailyCap}, nil
}

func isWeekday(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}

func dedupeZones(zones []int) []int {
	seen := make(map[int]bool, len(zones))
	out := make([]int, 0, len(zones))
	for _, z := range zones {
		if !seen[z] {
			seen[z] = true
			out = append(out, z)
		}
	}
	sort.Ints(out)
	return out
}
