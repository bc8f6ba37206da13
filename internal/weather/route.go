package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Gate decides whether a route is flyable. Any leg it cannot verify makes
// the whole route unverified; it never reports a route safe on missing data.
type Gate struct {
	source     Source
	rules      *RulesBook
	legTimeout time.Duration
	logger     *slog.Logger
}

func NewGate(source Source, rules *RulesBook, legTimeout time.Duration, logger *slog.Logger) *Gate {
	if rules == nil {
		rules = NewRulesBook(DefaultSafetyRules())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{source: source, rules: rules, legTimeout: legTimeout, logger: logger}
}

// CheckAirport evaluates a single airport against its own rules.
func (g *Gate) CheckAirport(ctx context.Context, airport string) (*domain.Determination, error) {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	if airport == "" {
		return nil, errors.New("airport code is required")
	}
	return g.checkLeg(ctx, airport, g.rules.ForAirport(airport))
}

// CheckRoute evaluates both ends of a route concurrently. Both legs always
// run to completion so the error names every failing airport.
func (g *Gate) CheckRoute(ctx context.Context, from, to string) (*domain.RouteCheck, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return nil, errors.New("departure and arrival airports are required")
	}

	var (
		dep, arr       *domain.Determination
		depErr, arrErr error
		eg             errgroup.Group
	)
	eg.Go(func() error {
		dep, depErr = g.checkLeg(ctx, from, g.rules.ForLeg(from, to, from))
		return depErr
	})
	eg.Go(func() error {
		arr, arrErr = g.checkLeg(ctx, to, g.rules.ForLeg(from, to, to))
		return arrErr
	})
	if err := eg.Wait(); err != nil {
		metrics.RouteChecks.WithLabelValues("unverified").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrWeatherUnverified, errors.Join(depErr, arrErr))
	}

	check := &domain.RouteCheck{
		Departure: *dep,
		Arrival:   *arr,
		Safe:      dep.IsSafe && arr.IsSafe,
	}
	if check.Safe {
		metrics.RouteChecks.WithLabelValues("safe").Inc()
	} else {
		metrics.RouteChecks.WithLabelValues("unsafe").Inc()
		g.logger.Info("route blocked by weather", "from", from, "to", to, "reason", check.BlockedReason())
	}
	return check, nil
}

func (g *Gate) checkLeg(ctx context.Context, airport string, rules SafetyRules) (*domain.Determination, error) {
	legCtx := ctx
	if g.legTimeout > 0 {
		var cancel context.CancelFunc
		legCtx, cancel = context.WithTimeout(ctx, g.legTimeout)
		defer cancel()
	}

	report, err := g.source.Fetch(legCtx, airport)
	if err != nil {
		g.logger.Warn("weather unavailable", "airport", airport, "error", err)
		return nil, fmt.Errorf("%s: %w", airport, err)
	}
	if report == nil || strings.TrimSpace(report.METAR) == "" {
		return nil, fmt.Errorf("%s: empty weather report", airport)
	}

	det := Evaluate(ParseMETAR(report.METAR), rules)
	det.Airport = airport
	det.METAR = report.METAR
	det.TAF = report.TAF
	return &det, nil
}
