// Package subscription — ежедневный перевод истёкших платных тарифов на базовый.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/metrics"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// SweepName — имя задачи в метриках и блокировках.
const SweepName = "subscription"

// Repository понижает истёкшие подписки.
type Repository interface {
	DowngradeExpiredSubscriptions(ctx context.Context, now time.Time, baseTier string) (int64, error)
}

// SettingsProvider возвращает активные настройки.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Guard не даёт запускам задачи пересекаться.
type Guard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Sweep понижает тарифы с истёкшей подпиской.
type Sweep struct {
	repo     Repository
	settings SettingsProvider
	clock    clock.Clock
	guard    Guard
	log      *slog.Logger
}

// New создаёт задачу понижения тарифов.
func New(repo Repository, settings SettingsProvider, clk clock.Clock, g Guard, log *slog.Logger) *Sweep {
	return &Sweep{repo: repo, settings: settings, clock: clk, guard: g, log: log}
}

// Run переводит всех пользователей с subscriptionEndDate <= now и небазовым тарифом
// на базовый тариф и возвращает их число.
func (s *Sweep) Run(ctx context.Context) (n int64, err error) {
	const op = "subscription.Run"

	release, err := s.guard.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	started := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.RecordSweep(SweepName, result, started)
	}()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err = s.repo.DowngradeExpiredSubscriptions(ctx, s.clock.Now(), settings.Tiers.Base)
	if err != nil {
		s.log.Error("failed to downgrade subscriptions", sl.Op(op), sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordDowngraded(n)
	s.log.Info("expired subscriptions downgraded", slog.Int64("count", n))
	return n, nil
}
