// Package core provides the error and argument handling shared by the
// journey MCP tools.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrInvalidTime      ErrorCode = "INVALID_TIME"

	// Domain errors
	ErrUnknownStation  ErrorCode = "UNKNOWN_STATION"
	ErrNoFareRoute     ErrorCode = "NO_FARE_ROUTE"
	ErrUnsupportedMode ErrorCode = "UNSUPPORTED_MODE"

	// Service errors
	ErrRateLimit ErrorCode = "RATE_LIMIT"
	ErrCancelled ErrorCode = "CANCELLED"

	// Data errors
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// MCPError represents a detailed error structure for MCP tool responses
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *MCPError) WithQuery(query string) *MCPError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// Guidance for the domain error codes
const (
	GuidanceUnknownStation  = "Check the station spelling or use list_stations to see the supported stations."
	GuidanceNoFareRoute     = "The fare table has no entry for these zones. Show the fare as unavailable."
	GuidanceUnsupportedMode = "Use one of: walk, cycle, tube, bus, drive."
	GuidanceInvalidInput    = "Please correct the parameters and try again."
)

// FromError maps a calculator error onto an MCPError. Errors that are
// already MCPErrors pass through unchanged.
func FromError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var (
		unknown     *journey.UnknownStationError
		noRoute     *journey.NoFareRouteError
		unsupported *journey.UnsupportedModeError
		invalid     *journey.InvalidInputError
	)
	switch {
	case errors.As(err, &unknown):
		return NewError(ErrUnknownStation, err.Error()).
			WithQuery(unknown.Station).
			WithGuidance(GuidanceUnknownStation)
	case errors.As(err, &noRoute):
		return NewError(ErrNoFareRoute, err.Error()).
			WithGuidance(GuidanceNoFareRoute)
	case errors.As(err, &unsupported):
		return NewError(ErrUnsupportedMode, err.Error()).
			WithQuery(unsupported.Mode).
			WithGuidance(GuidanceUnsupportedMode)
	case errors.As(err, &invalid):
		return NewError(ErrInvalidInput, err.Error()).
			WithGuidance(GuidanceInvalidInput)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrCancelled, "The request was cancelled before it completed")
	}
	return NewError(ErrInternalError, err.Error())
}

// Kind returns a short label for err suitable for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, journey.ErrUnknownStation):
		return "unknown_station"
	case errors.Is(err, journey.ErrNoFareRoute):
		return "no_fare_route"
	case errors.Is(err, journey.ErrUnsupportedMode):
		return "unsupported_mode"
	case errors.Is(err, journey.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal"
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance(GuidanceInvalidInput)
}
