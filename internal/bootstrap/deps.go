package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/config"
	"github.com/Domenick1991/bushcharter/internal/cache"
	"github.com/Domenick1991/bushcharter/internal/evidence"
	"github.com/Domenick1991/bushcharter/internal/kafka"
	"github.com/Domenick1991/bushcharter/internal/payments"
	"github.com/Domenick1991/bushcharter/internal/repository"
	"github.com/Domenick1991/bushcharter/internal/service/booking"
	"github.com/Domenick1991/bushcharter/internal/service/escrow"
	"github.com/Domenick1991/bushcharter/internal/service/flights"
	"github.com/Domenick1991/bushcharter/internal/weather"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PingFunc adapts a plain check to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps holds the clients and services shared by the API and the worker.
type Deps struct {
	Pool     *pgxpool.Pool
	Cache    *cache.RedisCache
	Producer *kafka.Producer
	Weather  *weather.CachedSource
	Gate     *weather.Gate
	Escrow   *escrow.Coordinator
	Bookings *booking.BookingService
	Flights  *flights.FlightService
	Credits  repository.CreditRepository

	// LocalLedger is set when payments run on the in-memory ledger.
	LocalLedger bool
}

func NewLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Weather.CacheTTL)
	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)

	safety := weather.SafetyRules{
		MinCeilingFt:    cfg.Weather.Safety.MinCeilingFt,
		MinVisibilitySM: cfg.Weather.Safety.MinVisibilitySM,
		MaxWindKts:      cfg.Weather.Safety.MaxWindKts,
	}
	rules, err := weather.LoadRulesBook(cfg.Weather.RulesPath, safety)
	if err != nil {
		pool.Close()
		return nil, err
	}
	upstream := weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.RequestTimeout, cfg.Weather.MaxRetries, logger)
	source := weather.NewCachedSource(upstream, redisCache, cfg.Weather.CacheTTL, logger)
	gate := weather.NewGate(source, rules, cfg.Weather.LegTimeout, logger)

	bookingRepo := repository.NewBookingRepository(pool)
	directory := repository.NewDirectoryRepository(pool)

	processor, localLedger := newProcessor(cfg.Payments, logger)
	coordinator := escrow.NewCoordinator(
		repository.NewEscrowRepository(pool),
		processor,
		directory,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		escrow.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		escrow.WithMaxAttempts(cfg.Worker.MaxSettlementAttempts),
		escrow.WithBatchSize(cfg.Worker.BatchSize),
		escrow.WithLogger(logger),
	)

	bookingService := booking.NewBookingService(
		bookingRepo,
		gate,
		coordinator,
		producer,
		cfg.Kafka.BookingTopic,
		cfg.Booking.BasePriceCents,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithCreditValidity(time.Duration(cfg.Booking.CreditValidityDays)*24*time.Hour),
		booking.WithSweepBatch(cfg.Worker.BatchSize),
		booking.WithLogger(logger),
	)

	var store flights.EvidenceStore
	if cfg.Evidence.CloudinaryURL != "" {
		cld, err := evidence.NewCloudinaryStore(cfg.Evidence.CloudinaryURL, cfg.Evidence.Folder)
		if err != nil {
			pool.Close()
			return nil, err
		}
		store = cld
	} else {
		logger.Warn("no evidence store configured, landings must carry a photo_ref")
	}

	flightService := flights.NewFlightService(
		bookingRepo,
		repository.NewFlightEventRepository(pool),
		directory,
		store,
		coordinator,
		producer,
		cfg.Kafka.BookingTopic,
		flights.WithFixMaxAge(cfg.Flight.FixMaxAge),
		flights.WithTelemetryLimit(cfg.Flight.TelemetryPerSecond, cfg.Flight.TelemetryBurst),
		flights.WithLandingProximity(cfg.Flight.LandingProximityM, cfg.Flight.EnforceLandingProximity),
		flights.WithLogger(logger),
	)

	return &Deps{
		Pool:     pool,
		Cache:    redisCache,
		Producer: producer,
		Weather:  source,
		Gate:     gate,
		Escrow:   coordinator,
		Bookings: bookingService,
		Flights:  flightService,
		Credits:  repository.NewCreditRepository(pool),

		LocalLedger: localLedger,
	}, nil
}

func (d *Deps) HealthChecks() map[string]Pinger {
	return map[string]Pinger{
		"postgres": d.Pool,
		"redis":    d.Cache,
		"kafka":    PingFunc(d.Producer.CheckConnection),
	}
}

func (d *Deps) Close() {
	_ = d.Producer.Close()
	_ = d.Cache.Close()
	d.Pool.Close()
}

// newProcessor reports whether it fell back to the in-memory ledger, which
// lives and dies with this process.
func newProcessor(cfg config.PaymentsConfig, logger *slog.Logger) (payments.Processor, bool) {
	if cfg.StripeKey == "" {
		logger.Warn("no stripe key configured, using the in-memory payment ledger; settlement jobs run in the API process")
		return payments.NewMemoryProcessor(), true
	}
	return payments.NewStripeProcessor(cfg.StripeKey, cfg.Currency, logger), false
}
