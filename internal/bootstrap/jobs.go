package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/config"
	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

// Job is a scheduled maintenance task.
type Job struct {
	Name     string
	Schedule string
	// Settles marks jobs that move money through the payment processor.
	Settles bool
	Run     func(ctx context.Context)
}

func Jobs(cfg *config.Config, deps *Deps, logger *slog.Logger) []Job {
	return []Job{
		{
			Name:     "reconcile",
			Schedule: cfg.Worker.ReconcileSchedule,
			Settles:  true,
			Run: func(ctx context.Context) {
				n, err := deps.Escrow.Reconcile(ctx)
				if err != nil {
					logger.Error("reconcile failed", "error", err)
					return
				}
				if n > 0 {
					logger.Info("reconciled escrow operations", "count", n)
				}
			},
		},
		{
			Name:     "weather-refresh",
			Schedule: cfg.Worker.WeatherRefreshSchedule,
			Run: func(ctx context.Context) {
				for _, airport := range cfg.Weather.Airports {
					if _, err := deps.Weather.Refresh(ctx, strings.ToUpper(airport)); err != nil {
						logger.Warn("weather refresh failed", "airport", airport, "error", err)
					}
				}
			},
		},
		{
			Name:     "weather-sweep",
			Schedule: cfg.Worker.WeatherSweepSchedule,
			Settles:  true,
			Run: func(ctx context.Context) {
				n, err := deps.Bookings.WeatherSweep(ctx, cfg.Worker.WeatherSweepLookahead)
				if err != nil {
					logger.Error("weather sweep failed", "error", err)
					return
				}
				if n > 0 {
					logger.Info("weather sweep cancelled bookings", "count", n)
				}
			},
		},
	}
}

// Owned returns the jobs one process runs. The in-memory ledger only knows
// the holds placed by the API process, so while it is active the settling
// jobs run in the API and the worker skips them.
func Owned(jobs []Job, api, localLedger bool) []Job {
	var owned []Job
	for _, job := range jobs {
		if (job.Settles && localLedger) == api {
			owned = append(owned, job)
		}
	}
	return owned
}

// StartScheduler registers jobs on a cron that skips a run while the
// previous one is still going. Each run is bounded by jobTimeout.
func StartScheduler(ctx context.Context, jobs []Job, logger *slog.Logger) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, job := range jobs {
		if _, err := scheduler.AddFunc(job.Schedule, func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			job.Run(jobCtx)
		}); err != nil {
			return nil, fmt.Errorf("schedule job %s (%q): %w", job.Name, job.Schedule, err)
		}
	}
	scheduler.Start()
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name)
	}
	logger.Info("scheduler started", "jobs", names)
	return scheduler, nil
}
