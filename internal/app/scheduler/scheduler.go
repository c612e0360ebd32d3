// Package scheduler содержит фоновые задачи планировщика: ежедневную проверку
// пропусков, понижение истёкших подписок, очистку входящих и рассылку напоминаний.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/coin-planner/internal/app/bootstrap"
	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/guard"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/services/inbox"
	"github.com/magabrotheeeer/coin-planner/internal/services/lifecycle"
	"github.com/magabrotheeeer/coin-planner/internal/services/reminder"
	"github.com/magabrotheeeer/coin-planner/internal/services/subscription"
)

const pruneName = "inbox-prune"

// App представляет приложение планировщика.
type App struct {
	cfg          config.Scheduler
	deps         *bootstrap.Deps
	cron         *cron.Cron
	monitor      *lifecycle.Monitor
	subscription *subscription.Sweep
	inbox        *inbox.Service
	pruneGuard   *guard.Guard
	reminders    *reminder.Dispatcher
	logger       *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{Cache: true, Broker: true})
	if err != nil {
		return nil, err
	}
	if err := deps.WaitReady(ctx, 10, 3*time.Second); err != nil {
		deps.Close()
		return nil, err
	}
	svc := bootstrap.NewServices(deps, cfg)
	sc := cfg.Scheduler

	a := &App{
		cfg:  sc,
		deps: deps,
		cron: cron.New(
			cron.WithLocation(deps.Location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
			cron.WithLogger(cronLogger{logger}),
		),
		monitor: lifecycle.New(deps.Store, svc.Rules, svc.Notifier, deps.Clock,
			guard.New(lifecycle.SweepName, deps.Locker(), sc.LockTTL), sc.GraceDays, sc.SweepConcurrency, logger),
		subscription: subscription.New(deps.Store, svc.Settings, deps.Clock,
			guard.New(subscription.SweepName, deps.Locker(), sc.LockTTL), logger),
		inbox:      svc.Inbox,
		pruneGuard: guard.New(pruneName, deps.Locker(), sc.LockTTL),
		reminders:  reminder.New(deps.Store, svc.Notifier, deps.Clock, sc.ReminderMaxIdle, sc.ReminderLookback, logger),
		logger:     logger,
	}

	jobs := []struct {
		name string
		spec string
		fn   func(ctx context.Context) error
	}{
		{lifecycle.SweepName, sc.LifecycleSpec, a.runLifecycle},
		{subscription.SweepName, sc.SubscriptionSpec, a.runSubscription},
		{pruneName, sc.InboxPruneSpec, a.runPrune},
	}
	for _, j := range jobs {
		if _, err := a.cron.AddFunc(j.spec, a.job(ctx, j.name, j.fn)); err != nil {
			deps.Close()
			return nil, fmt.Errorf("scheduler: bad spec %q for %s: %w", j.spec, j.name, err)
		}
	}
	return a, nil
}

// job оборачивает задачу таймаутом и логированием.
func (a *App) job(ctx context.Context, name string, fn func(ctx context.Context) error) func() {
	return func() {
		jobCtx, cancel := context.WithTimeout(ctx, a.cfg.JobTimeout)
		defer cancel()
		log := a.logger.With(slog.String("job", name))
		log.Info("job started")
		err := fn(jobCtx)
		switch {
		case errors.Is(err, apperr.ErrSweepInProgress):
			log.Warn("job skipped, previous run is still in progress")
		case err != nil:
			log.Error("job failed", sl.Err(err))
		default:
			log.Info("job finished")
		}
	}
}

func (a *App) runLifecycle(ctx context.Context) error {
	_, err := a.monitor.Run(ctx)
	return err
}

func (a *App) runSubscription(ctx context.Context) error {
	_, err := a.subscription.Run(ctx)
	return err
}

func (a *App) runPrune(ctx context.Context) error {
	release, err := a.pruneGuard.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	_, err = a.inbox.Prune(ctx, a.cfg.InboxRetention)
	return err
}

// Run запускает планировщик и диспетчер напоминаний до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.deps.Close()

	a.cron.Start()
	a.logger.Info("scheduler started", slog.Int("jobs", len(a.cron.Entries())))

	err := a.reminders.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	<-a.cron.Stop().Done()
	return err
}

// cronLogger передаёт сообщения cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
