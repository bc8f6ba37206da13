package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/bushcharter/config"
	"github.com/Domenick1991/bushcharter/internal/bootstrap"
)

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

	if jobs := bootstrap.Owned(bootstrap.Jobs(cfg, deps, logger), true, deps.LocalLedger); len(jobs) > 0 {
		scheduler, err := bootstrap.StartScheduler(ctx, jobs, logger)
		if err != nil {
			logger.Error("start scheduler", "error", err)
			os.Exit(1)
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	err = bootstrap.Run(ctx, cfg, bootstrap.Services{
		Bookings: deps.Bookings,
		Flights:  deps.Flights,
		Weather:  deps.Gate,
		Credits:  deps.Credits,
		Health:   deps.HealthChecks(),
	}, logger)
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
