package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/bushcharter/config"
	"github.com/Domenick1991/bushcharter/internal/bootstrap"
	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/email"
	"github.com/Domenick1991/bushcharter/internal/kafka"
	"github.com/Domenick1991/bushcharter/internal/service/flights"
	kafkaGo "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// telemetryMessage is one position report on the telemetry topic.
type telemetryMessage struct {
	BookingID string `json:"booking_id"`
	PilotID   string `json:"pilot_id"`
	domain.Fix
}

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	if deps.LocalLedger {
		logger.Warn("in-memory payment ledger active, reconcile and weather sweep run in the API process")
	}
	scheduler, err := bootstrap.StartScheduler(ctx, bootstrap.Owned(bootstrap.Jobs(cfg, deps, logger), false, deps.LocalLedger), logger)
	if err != nil {
		logger.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	notifications := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
	defer notifications.Close()
	telemetry := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-telemetry", cfg.Kafka.TelemetryTopic, logger)
	defer telemetry.Close()

	sender := email.NewSender(logger)
	tracks := flights.NewTracks(ctx, deps.Flights)

	var g errgroup.Group
	g.Go(func() error {
		return notifications.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Warn("decode notification", "error", err)
				return nil
			}
			return sender.Send(ctx, event)
		})
	})
	g.Go(func() error {
		return telemetry.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var m telemetryMessage
			if err := json.Unmarshal(msg.Value, &m); err != nil || m.BookingID == "" {
				logger.Warn("decode telemetry", "error", err)
				return nil
			}
			tracks.Push(m.BookingID, m.PilotID, m.Fix)
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		logger.Error("consumer stopped", "error", err)
	}
	stop()

	<-scheduler.Stop().Done()
	tracks.Wait()
	logger.Info("worker stopped")
}
