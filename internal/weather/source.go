package weather

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/metrics"
)

type ReportCache interface {
	GetWeather(ctx context.Context, airport string) (*domain.WeatherReport, error)
	SetWeather(ctx context.Context, report *domain.WeatherReport) error
}

// CachedSource serves reports younger than maxAge from the cache and falls
// through to the upstream source otherwise. Cache failures are logged and
// never fail the fetch.
type CachedSource struct {
	upstream Source
	cache    ReportCache
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewCachedSource(upstream Source, cache ReportCache, maxAge time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{upstream: upstream, cache: cache, maxAge: maxAge, logger: logger, now: time.Now}
}

func (s *CachedSource) Fetch(ctx context.Context, airport string) (*domain.WeatherReport, error) {
	airport = strings.ToUpper(strings.TrimSpace(airport))

	cached, err := s.cache.GetWeather(ctx, airport)
	if err != nil {
		s.logger.Warn("weather cache read failed", "airport", airport, "error", err)
	}
	if cached != nil && s.now().Sub(cached.FetchedAt) < s.maxAge {
		metrics.WeatherFetches.WithLabelValues("cache", "hit").Inc()
		return cached, nil
	}

	return s.Refresh(ctx, airport)
}

// Refresh bypasses the cache and stores whatever the upstream returns.
func (s *CachedSource) Refresh(ctx context.Context, airport string) (*domain.WeatherReport, error) {
	report, err := s.upstream.Fetch(ctx, airport)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetWeather(ctx, report); err != nil {
		s.logger.Warn("weather cache write failed", "airport", airport, "error", err)
	}
	return report, nil
}

var _ Source = (*CachedSource)(nil)
