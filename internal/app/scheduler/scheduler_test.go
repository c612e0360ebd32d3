package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func memoryConfig() *config.Config {
	cfg := &config.Config{StorageDriver: config.StorageMemory}
	cfg.JWTSecretKey = "secret"
	cfg.TokenTTL = time.Hour
	cfg.UTCOffset = "+03:00"
	cfg.LifecycleSpec = "@daily"
	cfg.SubscriptionSpec = "@daily"
	cfg.InboxPruneSpec = "0 3 * * *"
	cfg.GraceDays = 5
	cfg.InboxRetention = 24 * time.Hour
	cfg.JobTimeout = time.Minute
	cfg.SweepConcurrency = 2
	cfg.LockTTL = time.Minute
	return cfg
}

func TestNew(t *testing.T) {
	app, err := New(t.Context(), memoryConfig(), newNoopLogger())
	require.NoError(t, err)
	assert.Len(t, app.cron.Entries(), 3)

	cfg := memoryConfig()
	cfg.LifecycleSpec = "every day"
	_, err = New(t.Context(), cfg, newNoopLogger())
	assert.ErrorContains(t, err, "bad spec")
}

func TestJobsRunOnEmptyStore(t *testing.T) {
	app, err := New(t.Context(), memoryConfig(), newNoopLogger())
	require.NoError(t, err)

	assert.NoError(t, app.runLifecycle(t.Context()))
	assert.NoError(t, app.runSubscription(t.Context()))
	assert.NoError(t, app.runPrune(t.Context()))
}

func TestJobWrapperAppliesTimeout(t *testing.T) {
	app, err := New(t.Context(), memoryConfig(), newNoopLogger())
	require.NoError(t, err)
	app.cfg.JobTimeout = 10 * time.Millisecond

	var deadline bool
	app.job(t.Context(), "probe", func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return apperr.ErrSweepInProgress
	})()
	assert.True(t, deadline)

	called := false
	app.job(t.Context(), "failing", func(context.Context) error {
		called = true
		return errors.New("boom")
	})()
	assert.True(t, called)
}

func TestRunStopsOnCancel(t *testing.T) {
	app, err := New(t.Context(), memoryConfig(), newNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
