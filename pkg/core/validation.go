package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/journey"
)

// Accepted layouts for journey times. Layouts without an offset are read in
// the caller-supplied location.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseArgs decodes the tool arguments into out.
func ParseArgs(req mcp.CallToolRequest, out any) error {
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return NewError(ErrParseError, "Invalid input format")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(ErrParseError, fmt.Sprintf("Invalid input format: %v", err)).
			WithGuidance(GuidanceInvalidInput)
	}
	return nil
}

// ParseArgsWithLog decodes the tool arguments and logs any failure
func ParseArgsWithLog(req mcp.CallToolRequest, logger *slog.Logger, out any) error {
	err := ParseArgs(req, out)
	if err != nil {
		logger.Error("failed to parse input", "error", err)
	}
	return err
}

// ParseTime parses a journey time. Empty input is an error: the caller must
// always say when the journey happens.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewError(ErrMissingParameter, "time is required").
			WithGuidance("Pass the journey time as RFC 3339, for example 2024-01-09T08:15:00Z")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewError(ErrInvalidTime, fmt.Sprintf("cannot parse time %q", value)).
		WithQuery(value).
		WithGuidance("Use RFC 3339 (2024-01-09T08:15:00Z) or local 2024-01-09T08:15")
}

// ParseMode parses a transport mode name.
func ParseMode(value string) (journey.Mode, error) {
	if strings.TrimSpace(value) == "" {
		return "", NewError(ErrMissingParameter, "mode is required").
			WithGuidance(GuidanceUnsupportedMode)
	}
	mode, err := journey.ParseMode(value)
	if err != nil {
		return "", FromError(err)
	}
	return mode, nil
}

// RequireString rejects an empty string parameter.
func RequireString(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewError(ErrMissingParameter, fmt.Sprintf("%s is required", name)).
			WithGuidance(GuidanceInvalidInput)
	}
	return nil
}

// ValidateDistance checks a distance parameter in miles.
func ValidateDistance(name string, miles float64) error {
	if err := journey.ValidateDistance(miles); err != nil {
		return NewValidationError(ErrInvalidParameter, fmt.Sprintf("%s: %v", name, err))
	}
	return nil
}
