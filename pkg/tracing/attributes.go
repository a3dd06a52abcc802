package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for MCP operations
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Journey attributes
	AttrJourneyFrom     = "journey.from"
	AttrJourneyTo       = "journey.to"
	AttrJourneyMode     = "journey.mode"
	AttrJourneyDistance = "journey.distance_miles"
	AttrJourneyPeak     = "journey.peak"
	AttrJourneyDegraded = "journey.degraded"
	AttrTariffBand      = "journey.tariff_band"
	AttrCandidateCount  = "journey.candidates"

	// Cache attributes
	AttrCacheType = "journey.cache.type"
	AttrCacheHit  = "journey.cache.hit"
	AttrCacheKey  = "journey.cache.key"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)

// Cache types
const (
	CacheTypeZoneQuote = "zone_quote"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// StationPairAttributes returns attributes for a priced station pair
func StationPairAttributes(from, to string, peak, degraded bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrJourneyFrom, from),
		attribute.String(AttrJourneyTo, to),
		attribute.Bool(AttrJourneyPeak, peak),
		attribute.Bool(AttrJourneyDegraded, degraded),
	}
}

// DistanceAttributes returns attributes for a distance-priced calculation
func DistanceAttributes(mode string, miles float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrJourneyMode, mode),
		attribute.Float64(AttrJourneyDistance, miles),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors. kind is a short label such
// as "unknown_station"; empty means "error".
func ErrorAttributes(err error, kind string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	if kind == "" {
		kind = "error"
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, kind),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
