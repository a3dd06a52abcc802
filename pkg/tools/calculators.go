package tools

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/NERVsystems/journeymcp/pkg/fares"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/monitoring"
	"github.com/NERVsystems/journeymcp/pkg/planner"
	"github.com/NERVsystems/journeymcp/pkg/tables"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

const defaultQuoteCacheSize = 1024

// Calculators is the table set the tool handlers price against, plus the
// planner built over it and a cache of zone fare quotes.
type Calculators struct {
	*tables.Set
	Planner *planner.Planner

	quotes *lru.Cache[string, fares.ZoneFareResult]
}

// NewCalculators wires a planner and quote cache around set
func NewCalculators(set *tables.Set, logger *slog.Logger) (*Calculators, error) {
	if set == nil {
		return nil, fmt.Errorf("tools: table set is required")
	}
	p, err := planner.New(planner.Config{
		Zones:     set.Zones,
		Tariff:    set.Tariff,
		Transit:   set.Transit,
		Emissions: set.Emissions,
		Scorer:    set.Scorer,
		Eco:       set.Eco,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	quotes, err := lru.New[string, fares.ZoneFareResult](defaultQuoteCacheSize)
	if err != nil {
		return nil, fmt.Errorf("tools: quote cache: %w", err)
	}
	return &Calculators{Set: set, Planner: p, quotes: quotes}, nil
}

var (
	active      atomic.Pointer[Calculators]
	defaultOnce sync.Once
	defaultErr  error
)

// Configure replaces the calculators used by every handler
func Configure(c *Calculators) {
	active.Store(c)
	monitoring.UpdateCacheSize(tracing.CacheTypeZoneQuote, 0)
}

// current returns the configured calculators, building the London defaults
// on first use when none were configured.
func current() (*Calculators, error) {
	if c := active.Load(); c != nil {
		return c, nil
	}
	defaultOnce.Do(func() {
		set, err := tables.Default()
		if err != nil {
			defaultErr = err
			return
		}
		c, err := NewCalculators(set, slog.Default())
		if err != nil {
			defaultErr = err
			return
		}
		active.CompareAndSwap(nil, c)
	})
	if c := active.Load(); c != nil {
		return c, nil
	}
	return nil, defaultErr
}

// ZoneFare prices a station pair through the quote cache. A fare depends
// only on the stations and the peak flag, so the key ignores the clock time.
func (c *Calculators) ZoneFare(from, to string, t time.Time) (fares.ZoneFareResult, bool, error) {
	key := journey.NormalizeStation(from) + "|" + journey.NormalizeStation(to) + "|" + strconv.FormatBool(c.Zones.IsPeak(t))
	if res, ok := c.quotes.Get(key); ok {
		monitoring.RecordCacheHit(tracing.CacheTypeZoneQuote)
		return res, true, nil
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeZoneQuote)

	res, err := c.Zones.CalculateFare(from, to, t)
	if err != nil {
		return fares.ZoneFareResult{}, false, err
	}
	// Fallback quotes are re-resolved every time so each one is logged and counted.
	if !res.Degraded {
		c.quotes.Add(key, res)
		monitoring.UpdateCacheSize(tracing.CacheTypeZoneQuote, c.quotes.Len())
	}
	return res, false, nil
}
