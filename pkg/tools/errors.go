package tools

// GetToolUsageExample returns an example JSON snippet for using a specific tool.
// It is attached as guidance when parameter validation fails.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"calculate_zone_fare": `{
  "from": "Bank",
  "to": "Uxbridge",
  "time": "2024-01-09T08:15"
}`,
		"journey_options": `{
  "from": "Finsbury Park",
  "to": "Wembley Central",
  "time": "2024-01-13T12:00"
}`,
		"daily_cap": `{
  "zones": [1, 4]
}`,
		"resolve_station": `{
  "station": "Stratford"
}`,
		"calculate_taxi_fare": `{
  "distance": 4.5,
  "time": "2024-01-09T23:30"
}`,
		"estimate_taxi_fare_range": `{
  "distance": 4.5
}`,
		"calculate_bus_fare": `{
  "journeys": 3,
  "elapsed_minutes": 95
}`,
		"calculate_emissions": `{
  "mode": "bus",
  "distance": 7,
  "vehicle": "hybrid"
}`,
		"enrich_emissions": `{
  "options": [
    {"mode": "drive", "distance": 10},
    {"mode": "tube", "distance": 11}
  ]
}`,
		"yearly_impact": `{
  "mode": "cycle",
  "distance": 4,
  "weekly_trips": 10
}`,
		"eco_equivalents": `{
  "co2_kg": 1.2
}`,
		"traffic_impact": `{
  "duration_minutes": 25,
  "status": "Minor Delays"
}`,
		"rank_routes": `{
  "candidates": [
    {"id": "cycle", "co2_kg": 0, "legs": [{"mode": "cycle", "distance": 4, "duration_minutes": 22}]},
    {"id": "drive", "co2_kg": 0.68, "legs": [{"mode": "drive", "distance": 4, "duration_minutes": 15}]}
  ],
  "weather": {"temperature_c": 14, "wind_speed": 8}
}`,
		"plan_journey": `{
  "time": "2024-01-09T08:15",
  "candidates": [
    {"id": "tube", "legs": [
      {"mode": "walk", "distance": 0.3, "duration_minutes": 6},
      {"mode": "tube", "distance": 9, "duration_minutes": 31, "from": "Bank", "to": "Wembley Central"}
    ]},
    {"id": "taxi", "legs": [{"mode": "drive", "distance": 10, "duration_minutes": 40}]}
  ],
  "preferred_mode": "tube"
}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}
	return "{}"
}
