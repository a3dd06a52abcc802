// Package planner runs the full decision flow over a set of route
// candidates: emissions, fares, scoring, ranking and the eco equivalents of
// the winner.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/journeymcp/pkg/eco"
	"github.com/NERVsystems/journeymcp/pkg/emissions"
	"github.com/NERVsystems/journeymcp/pkg/fares"
	"github.com/NERVsystems/journeymcp/pkg/journey"
	"github.com/NERVsystems/journeymcp/pkg/scoring"
)

// MaxCandidates bounds a single plan request.
const MaxCandidates = 50

// Config holds the calculators a Planner composes. All are required.
type Config struct {
	Zones     *fares.ZoneCalculator
	Tariff    *fares.TariffCalculator
	Transit   *fares.TransitCalculator
	Emissions *emissions.Model
	Scorer    *scoring.Scorer
	Eco       *eco.Converter

	// Workers caps concurrent candidate pricing. Zero means 4.
	Workers int
	Logger  *slog.Logger
}

// Planner prices, scores and ranks route candidates.
type Planner struct {
	cfg    Config
	logger *slog.Logger
}

// New checks the configuration and returns a Planner.
func New(cfg Config) (*Planner, error) {
	switch {
	case cfg.Zones == nil:
		return nil, errors.New("planner: zone calculator is required")
	case cfg.Tariff == nil:
		return nil, errors.New("planner: tariff calculator is required")
	case cfg.Transit == nil:
		return nil, errors.New("planner: transit calculator is required")
	case cfg.Emissions == nil:
		return nil, errors.New("planner: emissions model is required")
	case cfg.Scorer == nil:
		return nil, errors.New("planner: scorer is required")
	case cfg.Eco == nil:
		return nil, errors.New("planner: eco converter is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, logger: logger.With("component", "planner")}, nil
}

// Request is one planning request.
type Request struct {
	Candidates []journey.Candidate
	Departure  time.Time

	Weather     *journey.WeatherContext
	Preferences *journey.Preferences

	// Weights overrides the scorer's weights when set.
	Weights *journey.ScoreWeights

	// Passengers share drive legs. Zero means 1.
	Passengers int
}

// Plan is the ranked outcome of a request.
type Plan struct {
	Candidates  []journey.Candidate `json:"candidates"`
	Breakdowns  []scoring.Breakdown `json:"breakdowns"`
	Best        journey.Candidate   `json:"best"`
	Equivalents eco.Equivalents     `json:"equivalents"`
}

// Evaluate prices and scores every candidate and ranks them best first.
//
// A candidate whose fare cannot be computed keeps FareKnown false and gets a
// warning; invalid candidates and emission failures fail the whole plan.
func (p *Planner) Evaluate(ctx context.Context, req Request) (Plan, error) {
	if len(req.Candidates) == 0 {
		return Plan{}, journey.NewInvalidInput("candidates", "at least one candidate is required")
	}
	if len(req.Candidates) > MaxCandidates {
		return Plan{}, journey.NewInvalidInput("candidates", fmt.Sprintf("at most %d candidates are allowed, got %d", MaxCandidates, len(req.Candidates)))
	}
	if req.Departure.IsZero() {
		return Plan{}, journey.NewInvalidInput("departure", "departure time is required")
	}
	passengers := req.Passengers
	if passengers == 0 {
		passengers = 1
	}
	if passengers < 1 {
		return Plan{}, journey.NewInvalidInput("passengers", fmt.Sprintf("must be at least 1, got %d", passengers))
	}
	if req.Weather != nil {
		if err := req.Weather.Validate(); err != nil {
			return Plan{}, err
		}
	}
	for _, c := range req.Candidates {
		if err := c.Validate(); err != nil {
			return Plan{}, err
		}
	}

	scorer := p.cfg.Scorer
	if req.Weights != nil {
		var err error
		if scorer, err = scorer.WithWeights(*req.Weights); err != nil {
			return Plan{}, err
		}
	}

	priced := make([]journey.Candidate, len(req.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range req.Candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := p.price(req.Candidates[i], req.Departure, passengers)
			if err != nil {
				return err
			}
			priced[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Plan{}, err
	}

	ranked, err := scorer.Optimize(priced, req.Weather, req.Preferences)
	if err != nil {
		return Plan{}, err
	}
	breakdowns := make([]scoring.Breakdown, len(ranked))
	for i, c := range ranked {
		if breakdowns[i], err = scorer.Breakdown(c, req.Weather, req.Preferences); err != nil {
			return Plan{}, err
		}
	}

	best := ranked[0]
	equivalents, err := p.cfg.Eco.Equivalents(best.SavedVsCar)
	if err != nil {
		return Plan{}, fmt.Errorf("equivalents for %q: %w", best.ID, err)
	}

	p.logger.Debug("plan evaluated",
		"candidates", len(ranked),
		"best", best.ID,
		"score", best.Score)

	return Plan{
		Candidates:  ranked,
		Breakdowns:  breakdowns,
		Best:        best,
		Equivalents: equivalents,
	}, nil
}

// price attaches CO2, savings and fare to a copy of c. The saving is summed
// per leg, so drive legs contribute nothing however many passengers share them.
func (p *Planner) price(c journey.Candidate, departure time.Time, passengers int) (journey.Candidate, error) {
	c.Legs = append([]journey.Leg(nil), c.Legs...)
	c.Warnings = nil

	var co2, saved float64
	for i, leg := range c.Legs {
		n := 1
		if leg.Mode == journey.ModeDrive {
			n = passengers
		}
		r, err := p.cfg.Emissions.Emissions(leg.Mode, leg.Distance, n)
		if err != nil {
			return journey.Candidate{}, fmt.Errorf("candidate %q leg %d: %w", c.ID, i, err)
		}
		co2 += r.CO2
		saved += r.SavedVsCar
	}
	c.CO2 = co2
	c.SavedVsCar = max(0, saved)

	q := p.fare(c, departure)
	c.Warnings = q.warnings
	c.Degraded = q.degraded
	c.FareKnown = !q.failed
	if c.FareKnown {
		c.Fare = journey.RoundMoney(q.total)
	}
	return c, nil
}

type quote struct {
	total    float64
	warnings []string
	degraded bool
	failed   bool
}

func (q *quote) fail(format string, args ...any) {
	q.failed = true
	q.warnings = append(q.warnings, fmt.Sprintf(format, args...))
}

// fare sums the fares of every leg. Bus legs share one hopper fare measured
// from the first bus boarding. Validate guarantees leg starts never go
// backwards, so the bus window is never negative.
func (p *Planner) fare(c journey.Candidate, departure time.Time) quote {
	var (
		q                 quote
		busCount          int
		firstBus, lastBus time.Duration
	)
	starts := c.LegStarts()
	for i, leg := range c.Legs {
		start := starts[i]
		switch leg.Mode {
		case journey.ModeTube:
			if leg.FromStation == "" || leg.ToStation == "" {
				q.fail("leg %d: fare unavailable: tube leg has no stations", i)
				continue
			}
			res, err := p.cfg.Zones.CalculateFare(leg.FromStation, leg.ToStation, departure.Add(start))
			if err != nil {
				q.fail("leg %d: fare unavailable: %v", i, err)
				continue
			}
			if res.Degraded {
				q.degraded = true
				q.warnings = append(q.warnings, fmt.Sprintf("leg %d: %s to %s priced with fallback zone", i, leg.FromStation, leg.ToStation))
				p.logger.Warn("station resolved through fallback zone",
					"candidate", c.ID,
					"from", leg.FromStation,
					"to", leg.ToStation)
			}
			q.total += res.Fare
		case journey.ModeBus:
			if busCount == 0 {
				firstBus = start
			}
			lastBus = start
			busCount++
		case journey.ModeDrive:
			res, err := p.cfg.Tariff.CalculateFare(leg.Distance, departure.Add(start))
			if err != nil {
				q.fail("leg %d: fare unavailable: %v", i, err)
				continue
			}
			q.total += res.Fare
		}
	}
	if busCount > 0 {
		bus, err := p.cfg.Transit.CalculateFare(busCount, (lastBus - firstBus).Minutes())
		if err != nil {
			q.fail("bus fare unavailable: %v", err)
		} else {
			q.total += bus
		}
	}
	return q
}
