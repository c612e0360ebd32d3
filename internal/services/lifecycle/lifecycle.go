// Package lifecycle — монитор жизненного цикла планов. Периодически ищет активные
// планы, в которых задачи старше окна ожидания остались без отметки, и
// приостанавливает их с уведомлением владельца.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/coin-planner/internal/lib/calendar"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/metrics"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/remark"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

// SweepName — имя задачи в метриках и блокировках.
const SweepName = "lifecycle"

// DefaultGraceDays — сколько дней задача может оставаться без отметки.
const DefaultGraceDays = 5

// Guard не даёт запускам монитора пересекаться.
type Guard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// RuleProvider возвращает активное правило начисления монет или nil.
type RuleProvider interface {
	Get(ctx context.Context) (*models.CoinRule, error)
}

// Notifier доставляет сообщение пользователю во внешний канал.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, message string)
}

// Report — итог одного запуска.
type Report struct {
	Users  int
	Paused int
	Failed int
}

// Monitor проверяет планы на просроченные задачи.
type Monitor struct {
	store       storage.Store
	rules       RuleProvider
	notifier    Notifier
	clock       clock.Clock
	guard       Guard
	graceDays   int
	concurrency int
	log         *slog.Logger
}

// New создаёт монитор. graceDays <= 0 заменяется на DefaultGraceDays,
// concurrency <= 0 — на 1.
func New(store storage.Store, rules RuleProvider, notifier Notifier, clk clock.Clock, g Guard,
	graceDays, concurrency int, log *slog.Logger) *Monitor {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Monitor{
		store:       store,
		rules:       rules,
		notifier:    notifier,
		clock:       clk,
		guard:       g,
		graceDays:   graceDays,
		concurrency: concurrency,
		log:         log,
	}
}

// Run выполняет один проход по всем активным пользователям. Ошибка по отдельному
// пользователю логируется и не прерывает проход.
func (m *Monitor) Run(ctx context.Context) (rep Report, err error) {
	const op = "lifecycle.Run"
	log := m.log.With(sl.Op(op))

	release, err := m.guard.Acquire(ctx)
	if err != nil {
		return rep, err
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

	cutoff, err := calendar.AddDays(clock.Today(m.clock), -m.graceDays)
	if err != nil {
		return rep, fmt.Errorf("%s: %w", op, err)
	}
	fee := 0
	rule, err := m.rules.Get(ctx)
	if err != nil {
		return rep, fmt.Errorf("%s: %w", op, err)
	}
	if rule != nil {
		fee = rule.AddPastRemarkCoins
	}
	users, err := m.store.ListActiveUsers(ctx)
	if err != nil {
		return rep, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("lifecycle sweep started", slog.Int("users", len(users)), slog.String("cutoff", cutoff))

	var paused, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for _, u := range users {
		g.Go(func() error {
			n, err := m.checkUser(ctx, u, cutoff, fee)
			paused.Add(int64(n))
			if err != nil {
				failed.Add(1)
				log.Error("failed to check user plans", sl.User(u.UID), sl.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	rep = Report{Users: len(users), Paused: int(paused.Load()), Failed: int(failed.Load())}
	metrics.RecordPlansPaused(rep.Paused)
	log.Info("lifecycle sweep finished",
		slog.Int("paused", rep.Paused),
		slog.Int("failed", rep.Failed),
		slog.Duration("took", time.Since(started)),
	)
	return rep, ctx.Err()
}

// checkUser приостанавливает просроченные планы пользователя и возвращает их число.
func (m *Monitor) checkUser(ctx context.Context, u *models.User, cutoff string, fee int) (int, error) {
	plans, err := m.store.ListActivePlansByOwner(ctx, u.UID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		remarks, err := m.store.RemarksByUserAndPlan(ctx, u.UID, p.ID)
		if err != nil {
			return n, err
		}
		if !Overdue(p, remark.Covered(remarks), cutoff) {
			continue
		}
		ok, err := m.pause(ctx, u, p, cutoff, fee)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Overdue сообщает, есть ли в плане запись расписания не позже cutoff и не раньше
// CheckFrom, на которую нет отметки.
func Overdue(p *models.Plan, covered map[remark.Key]struct{}, cutoff string) bool {
	for _, t := range p.Tasks {
		for _, e := range t.Schedule {
			if e.Date > cutoff || (p.CheckFrom != "" && e.Date < p.CheckFrom) {
				continue
			}
			if _, ok := covered[remark.Key{TaskID: t.ID, Date: e.Date}]; !ok {
				return true
			}
		}
	}
	return false
}

// pause приостанавливает план в отдельной транзакции. Строка пользователя блокируется,
// как при отметке, и просрочка проверяется заново: план, который уже не активен
// или успел получить недостающие отметки, пропускается.
func (m *Monitor) pause(ctx context.Context, u *models.User, p *models.Plan, cutoff string, fee int) (bool, error) {
	msg := fmt.Sprintf("Your plan %q was paused: some tasks have had no remark for more than %d days.", p.Name, m.graceDays)
	if fee > 0 {
		msg += fmt.Sprintf(" Restarting it costs %d coins.", fee)
	}

	paused := false
	err := m.store.InTx(ctx, func(tx storage.Queries) error {
		if _, err := tx.LockUser(ctx, u.UID); err != nil {
			return err
		}
		cur, err := tx.GetPlan(ctx, p.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Status != models.PlanActive {
			return nil
		}
		remarks, err := tx.RemarksByUserAndPlan(ctx, u.UID, cur.ID)
		if err != nil {
			return err
		}
		if !Overdue(cur, remark.Covered(remarks), cutoff) {
			return nil
		}
		cur.Status = models.PlanPaused
		cur.PausedReason = models.PausedByOverdue
		if err := tx.UpdatePlanStatus(ctx, cur); err != nil {
			return err
		}
		paused = true
		return tx.AppendNotifications(ctx, u.UID, []string{msg}, m.clock.Now())
	})
	if err != nil {
		return false, err
	}
	if paused {
		m.log.Info("plan paused", sl.User(u.UID), slog.Int64("plan_id", p.ID))
		if m.notifier != nil {
			m.notifier.Notify(ctx, u, msg)
		}
	}
	return paused, nil
}
