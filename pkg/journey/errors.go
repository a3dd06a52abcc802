package journey

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is matching. Every typed error below unwraps to
// one of these.
var (
	ErrUnknownStation  = errors.New("unknown station")
	ErrNoFareRoute     = errors.New("no fare route")
	ErrUnsupportedMode = errors.New("unsupported mode")
	ErrInvalidInput    = errors.New("invalid input")
)

// UnknownStationError is returned when a station is not in the zone registry
// and no fallback zone is configured.
type UnknownStationError struct {
	Station string
}

func (e *UnknownStationError) Error() string {
	return fmt.Sprintf("unknown station %q", e.Station)
}

func (e *UnknownStationError) Unwrap() error { return ErrUnknownStation }

// NoFareRouteError is returned when no zone pair for the resolved zones
// exists in the fare table.
type NoFareRouteError struct {
	From      string
	To        string
	FromZones []int
	ToZones   []int
}

func (e *NoFareRouteError) Error() string {
	return fmt.Sprintf("no fare between %q (zones %s) and %q (zones %s)",
		e.From, joinZones(e.FromZones), e.To, joinZones(e.ToZones))
}

func (e *NoFareRouteError) Unwrap() error { return ErrNoFareRoute }

// UnsupportedModeError is returned for a transport mode a calculator does not model.
type UnsupportedModeError struct {
	Mode string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("unsupported transport mode %q", e.Mode)
}

func (e *UnsupportedModeError) Unwrap() error { return ErrUnsupportedMode }

// InvalidInputError reports a rejected input field.
type InvalidInputError struct {
	Field   string
	Message string
}

// NewInvalidInput creates an InvalidInputError.
func NewInvalidInput(field, message string) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: message}
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

func joinZones(zones []int) string {
	parts := make([]string, len(zones))
	for i, z := range zones {
		parts[i] = fmt.Sprint(z)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
