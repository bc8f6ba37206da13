package bootstrap

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobNames(jobs []Job) []string {
	var names []string
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	return names
}

func TestOwned(t *testing.T) {
	jobs := []Job{
		{Name: "reconcile", Settles: true},
		{Name: "weather-refresh"},
		{Name: "weather-sweep", Settles: true},
	}

	tests := []struct {
		name        string
		api         bool
		localLedger bool
		want        []string
	}{
		{name: "worker with stripe", api: false, localLedger: false, want: []string{"reconcile", "weather-refresh", "weather-sweep"}},
		{name: "api with stripe", api: true, localLedger: false, want: nil},
		{name: "worker with memory ledger", api: false, localLedger: true, want: []string{"weather-refresh"}},
		{name: "api with memory ledger", api: true, localLedger: true, want: []string{"reconcile", "weather-sweep"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jobNames(Owned(jobs, tt.api, tt.localLedger)))
		})
	}
}

func TestStartScheduler(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	scheduler, err := StartScheduler(context.Background(), []Job{
		{Name: "reconcile", Schedule: "@every 1m", Run: func(context.Context) {}},
	}, logger)
	require.NoError(t, err)
	assert.Len(t, scheduler.Entries(), 1)
	<-scheduler.Stop().Done()

	_, err = StartScheduler(context.Background(), []Job{
		{Name: "broken", Schedule: "every now and then", Run: func(context.Context) {}},
	}, logger)
	assert.ErrorContains(t, err, "broken")
}
