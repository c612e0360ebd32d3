// Package reminder рассылает напоминания о задачах в момент, на который они запланированы.
//
// Вместо поминутного опроса диспетчер спрашивает у хранилища ближайший момент
// неотправленного напоминания и спит до него. Сон ограничен maxIdle, чтобы
// подхватывать планы, созданные после засыпания. Каждое напоминание
// отмечается отправленным в той же транзакции, что и запись во входящие,
// поэтому оно доставляется один раз.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/metrics"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

const batchSize = 500

// Notifier доставляет сообщение пользователю во внешний канал.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, message string)
}

// Dispatcher отправляет напоминания.
type Dispatcher struct {
	store    storage.Store
	notifier Notifier
	clock    clock.Clock
	maxIdle  time.Duration
	lookback time.Duration
	log      *slog.Logger
}

// New создаёт диспетчер. Напоминания старше lookback считаются пропущенными и не отправляются.
func New(store storage.Store, notifier Notifier, clk clock.Clock, maxIdle, lookback time.Duration, log *slog.Logger) *Dispatcher {
	if maxIdle <= 0 {
		maxIdle = time.Minute
	}
	if lookback <= 0 {
		lookback = time.Hour
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		clock:    clk,
		maxIdle:  maxIdle,
		lookback: lookback,
		log:      log,
	}
}

// Run рассылает напоминания до отмены ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("reminder dispatcher started", slog.Duration("max_idle", d.maxIdle))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("reminder dispatcher stopped")
			return nil
		case <-timer.C:
		}

		if _, err := d.DispatchDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("failed to dispatch reminders", sl.Err(err))
		}
		timer.Reset(d.NextDelay(ctx))
	}
}

// NextDelay возвращает, сколько спать до ближайшего напоминания, но не больше maxIdle.
func (d *Dispatcher) NextDelay(ctx context.Context) time.Duration {
	now := d.clock.Now()
	next, err := d.store.NextReminderAt(ctx, now)
	if err != nil {
		d.log.Warn("failed to read next reminder time", sl.Err(err))
		return d.maxIdle
	}
	if next == nil {
		return d.maxIdle
	}
	delay := next.Sub(now)
	if delay > d.maxIdle {
		return d.maxIdle
	}
	if delay < 0 {
		return 0
	}
	return delay
}

// DispatchDue отправляет напоминания с моментом в (now-lookback, now] и возвращает их число.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	const op = "reminder.DispatchDue"
	now := d.clock.Now()
	total := 0
	for {
		due, err := d.store.DueReminders(ctx, now.Add(-d.lookback), now, batchSize)
		if err != nil {
			return total, fmt.Errorf("%s: %w", op, err)
		}
		if len(due) == 0 {
			break
		}

		byUser := make(map[string][]*models.DueReminder)
		var order []string
		for _, r := range due {
			if _, ok := byUser[r.UserUID]; !ok {
				order = append(order, r.UserUID)
			}
			byUser[r.UserUID] = append(byUser[r.UserUID], r)
		}
		sent := 0
		for _, uid := range order {
			n, err := d.deliver(ctx, uid, byUser[uid], now)
			if err != nil {
				// Напоминания пользователя остаются неотправленными и попадут в следующий запуск.
				d.log.Error("failed to deliver reminders", sl.User(uid), slog.Int("count", len(byUser[uid])), sl.Err(err))
				continue
			}
			sent += n
		}
		total += sent
		if len(due) < batchSize || sent == 0 {
			break
		}
	}
	metrics.RecordReminders(total)
	if total > 0 {
		d.log.Info("reminders dispatched", slog.Int("count", total))
	}
	return total, nil
}

func (d *Dispatcher) deliver(ctx context.Context, uid string, due []*models.DueReminder, now time.Time) (int, error) {
	ids := make([]int64, len(due))
	messages := make([]string, len(due))
	for i, r := range due {
		ids[i] = r.EntryID
		messages[i] = Message(r)
	}

	var user *models.User
	err := d.store.InTx(ctx, func(tx storage.Queries) error {
		u, err := tx.GetUser(ctx, uid)
		if err != nil {
			return err
		}
		user = u
		if err := tx.MarkReminded(ctx, ids, now); err != nil {
			return err
		}
		return tx.AppendNotifications(ctx, uid, messages, now)
	})
	if err != nil {
		return 0, err
	}
	if d.notifier != nil {
		for _, m := range messages {
			d.notifier.Notify(ctx, user, m)
		}
	}
	return len(due), nil
}

// Message возвращает текст напоминания.
func Message(r *models.DueReminder) string {
	return fmt.Sprintf("Reminder: %q from your plan %q is scheduled for %s at %s", r.TaskName, r.PlanName, r.Date, r.Time)
}
