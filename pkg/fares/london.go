package fares

import (
	"time"
	_ "time/tzdata" // peak and tariff windows are evaluated in Europe/London
)

// LondonLocation returns the Europe/London time zone, or UTC if the zone
// database cannot be read.
func LondonLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Standard peak windows: 06:30 to 09:30 inclusive and 16:00 to 19:00.
var (
	MorningPeak = TimeWindow{Start: 6*60 + 30, End: 9*60 + 31}
	EveningPeak = TimeWindow{Start: 16 * 60, End: 19 * 60}
)

// DefaultMaxDailyCap is charged for zone spans without a tabulated cap.
const DefaultMaxDailyCap = 14.90

// LondonZoneTable returns the 2024 London zone fares, daily caps and station
// registry. The fallback zone is disabled.
func LondonZoneTable() ZoneTable {
	return ZoneTable{
		Fares: map[ZoneFareKey]FareEntry{
			Key(1, 1): {Peak: 2.80, OffPeak: 2.70},
			Key(1, 2): {Peak: 3.50, OffPeak: 3.00},
			Key(1, 3): {Peak: 4.30, OffPeak: 3.50},
			Key(1, 4): {Peak: 5.20, OffPeak: 3.90},
			Key(1, 5): {Peak: 6.00, OffPeak: 4.50},
			Key(1, 6): {Peak: 6.40, OffPeak: 4.90},
			Key(2, 2): {Peak: 2.80, OffPeak: 2.50},
			Key(2, 3): {Peak: 2.80, OffPeak: 2.50},
			Key(2, 4): {Peak: 3.50, OffPeak: 2.90},
			Key(2, 5): {Peak: 4.30, OffPeak: 3.30},
			Key(2, 6): {Peak: 4.70, OffPeak: 3.70},
			Key(3, 3): {Peak: 2.80, OffPeak: 2.50},
			Key(3, 4): {Peak: 2.80, OffPeak: 2.50},
			Key(3, 5): {Peak: 3.50, OffPeak: 2.90},
			Key(3, 6): {Peak: 3.90, OffPeak: 3.30},
			Key(4, 4): {Peak: 2.80, OffPeak: 2.50},
			Key(4, 5): {Peak: 2.80, OffPeak: 2.50},
			Key(4, 6): {Peak: 3.50, OffPeak: 2.90},
			Key(5, 5): {Peak: 2.80, OffPeak: 2.50},
			Key(5, 6): {Peak: 2.80, OffPeak: 2.50},
			Key(6, 6): {Peak: 2.80, OffPeak: 2.50},
		},
		DailyCaps: map[ZoneFareKey]float64{
			Key(1, 1): 7.90,
			Key(1, 2): 7.90,
			Key(1, 3): 9.50,
			Key(1, 4): 11.60,
			Key(1, 5): 13.90,
			Key(1, 6): 14.90,
			Key(2, 2): 7.90,
			Key(2, 3): 7.90,
			Key(2, 4): 7.90,
			Key(2, 5): 9.50,
			Key(2, 6): 11.60,
		},
		MaxDailyCap: DefaultMaxDailyCap,
		Stations: map[string][]int{
			"london bridge":            {1},
			"liverpool street":         {1},
			"kings cross":              {1},
			"waterloo":                 {1},
			"oxford circus":            {1},
			"bank":                     {1},
			"stratford":                {2, 3},
			"canary wharf":             {2},
			"brixton":                  {2},
			"hammersmith":              {2},
			"wimbledon":                {3},
			"finsbury park":            {2, 3, 4},
			"lewisham":                 {2, 3},
			"wembley central":          {4},
			"barking":                  {4},
			"richmond":                 {4},
			"heathrow terminals 2 & 3": {5},
			"stanmore":                 {5},
			"uxbridge":                 {6},
			"upminster":                {6},
		},
		PeakWindows: []TimeWindow{MorningPeak, EveningPeak},
		Location:    LondonLocation(),
	}
}

// London taxi band names.
const (
	BandWeekdayDay = "weekday-day"
	BandWeekendDay = "weekend-day"
	BandNight      = "night"
)

// LondonTariffTable returns the London metered taxi tariffs. Weekend days
// are charged at 1.2 times and nights at 1.4 times the weekday day band.
func LondonTariffTable() TariffTable {
	return TariffTable{
		Bands: []TariffBand{
			{Name: BandWeekdayDay, Base: 11.60, PerMile: 3.40},
			{Name: BandWeekendDay, Base: 13.92, PerMile: 4.08},
			{Name: BandNight, Base: 16.24, PerMile: 4.76},
		},
		Windows: []TariffWindow{
			{Weekend: false, StartHour: 0, EndHour: 5, Band: BandNight},
			{Weekend: false, StartHour: 5, EndHour: 20, Band: BandWeekdayDay},
			{Weekend: false, StartHour: 20, EndHour: 24, Band: BandNight},
			{Weekend: true, StartHour: 0, EndHour: 5, Band: BandNight},
			{Weekend: true, StartHour: 5, EndHour: 20, Band: BandWeekendDay},
			{Weekend: true, StartHour: 20, EndHour: 24, Band: BandNight},
		},
		MinimumCharge:    3.80,
		LongDistanceRate: 4.00,
		BaseDistance:     2,
		LongDistanceFrom: 6,
		Location:         LondonLocation(),
	}
}

// LondonBusFares returns the London bus fares.
func LondonBusFares() BusFares {
	return BusFares{
		SingleFare:          1.75,
		DailyCap:            5.25,
		HopperWindowMinutes: 60,
	}
}
