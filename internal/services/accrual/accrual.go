// Package accrual — механизм начисления монет за отметки.
//
// Submit выполняет всю цепочку в одной транзакции хранилища: строка пользователя
// блокируется, отметка записывается, бонус за день считается с учётом только что
// записанной отметки, плата за отметку задним числом списывается, излишек монет
// обменивается на месяцы подписки, и баланс сохраняется один раз. Уведомления
// пишутся во входящие одной пачкой, а во внешний канал уходят после фиксации.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/calendar"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/metrics"
	"github.com/magabrotheeeer/coin-planner/internal/lib/month"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/remark"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

// RuleProvider возвращает активное правило начисления монет или nil.
type RuleProvider interface {
	Get(ctx context.Context) (*models.CoinRule, error)
}

// SettingsProvider возвращает активные настройки.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Notifier доставляет сообщение пользователю во внешний канал.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, message string)
}

// SubmitRequest — отметка о выполнении задачи.
type SubmitRequest struct {
	PlanID              int64  `json:"plan_id" validate:"required,min=1"`
	TaskID              int64  `json:"task_id" validate:"required,min=1"`
	TaskName            string `json:"task_name,omitempty"`
	Date                string `json:"date" validate:"required"`
	Review              int    `json:"review" validate:"min=0"`
	Summary             string `json:"summary,omitempty" validate:"max=2000"`
	IsPaidForPastRemark bool   `json:"is_paid_for_past_remark"`
}

// Result — итог начисления.
type Result struct {
	CoinsEarned         int            `json:"coins_earned"`
	BonusCoins          int            `json:"bonus_coins"`
	FeeCoins            int            `json:"fee_coins"`
	Balance             int            `json:"balance"`
	MonthsEarned        int            `json:"months_earned,omitempty"`
	SubscriptionMessage string         `json:"subscription_message,omitempty"`
	Remark              *models.Remark `json:"remark"`

	converted int
}

// Engine начисляет монеты.
type Engine struct {
	store    storage.Store
	rules    RuleProvider
	settings SettingsProvider
	notifier Notifier
	clock    clock.Clock
	log      *slog.Logger
}

// New создаёт механизм начисления. notifier может быть nil.
func New(store storage.Store, rules RuleProvider, settings SettingsProvider, notifier Notifier,
	clk clock.Clock, log *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		rules:    rules,
		settings: settings,
		notifier: notifier,
		clock:    clk,
		log:      log,
	}
}

// Submit принимает отметку пользователя uid. Ошибки проверки возвращаются до
// каких-либо изменений; любая другая ошибка откатывает всю операцию.
func (e *Engine) Submit(ctx context.Context, uid string, req SubmitRequest) (*Result, error) {
	const op = "accrual.Submit"
	log := e.log.With(sl.Op(op), sl.User(uid), slog.Int64("plan_id", req.PlanID), slog.Int64("task_id", req.TaskID))

	res, user, messages, err := e.submit(ctx, uid, req)
	if err != nil {
		metrics.RecordRemark(apperr.CodeOf(err))
		if apperr.KindOf(err) == apperr.KindDependency {
			log.Error("remark submission failed", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Debug("remark rejected", sl.Err(err))
		return nil, err
	}

	if e.notifier != nil {
		for _, m := range messages {
			e.notifier.Notify(ctx, user, m)
		}
	}
	metrics.RecordRemark("ok")
	metrics.RecordCoins(metrics.CoinsTask, res.CoinsEarned)
	metrics.RecordCoins(metrics.CoinsBonus, res.BonusCoins)
	metrics.RecordCoins(metrics.CoinsPastFee, res.FeeCoins)
	metrics.RecordCoins(metrics.CoinsSubscription, res.converted)
	log.Info("remark accepted",
		slog.Int("coins_earned", res.CoinsEarned),
		slog.Int("bonus", res.BonusCoins),
		slog.Int("fee", res.FeeCoins),
		slog.Int("balance", res.Balance),
	)
	return res, nil
}

func (e *Engine) submit(ctx context.Context, uid string, req SubmitRequest) (*Result, *models.User, []string, error) {
	if !calendar.ValidDate(req.Date) {
		return nil, nil, nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	if req.Review < 0 {
		return nil, nil, nil, apperr.Validation("review must not be negative")
	}
	r, err := e.rules.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	rule := models.CoinRule{}
	if r != nil {
		rule = *r
	}
	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	now := e.clock.Now()
	today := now.Format(calendar.DateLayout)

	var (
		res      Result
		user     *models.User
		messages []string
	)
	err = e.store.InTx(ctx, func(tx storage.Queries) error {
		res, messages = Result{}, nil

		u, err := tx.LockUser(ctx, uid)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		user = u

		p, err := tx.GetPlan(ctx, req.PlanID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrTaskNotInPlan
		}
		if err != nil {
			return err
		}
		task := p.Task(req.TaskID)
		if !p.IsOwnedBy(uid) || task == nil {
			return apperr.ErrTaskNotInPlan
		}
		if p.Status != models.PlanActive {
			return apperr.ErrPlanNotActive
		}
		if task.EntryOn(req.Date) == nil {
			return apperr.ErrScheduleNotFound
		}
		if today < req.Date {
			return apperr.ErrRemarkTooEarly
		}
		exists, err := tx.RemarkExists(ctx, uid, task.ID, req.Date)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ErrDuplicateRemark
		}

		coins := user.Coins
		res.CoinsEarned = task.CoinsEarned
		rec, err := remark.Record(ctx, tx, &models.Remark{
			UserUID:             uid,
			PlanID:              p.ID,
			TaskID:              task.ID,
			TaskName:            task.Name,
			Date:                req.Date,
			Review:              req.Review,
			Summary:             req.Summary,
			CoinsEarned:         res.CoinsEarned,
			IsPaidForPastRemark: req.IsPaidForPastRemark,
			CreatedAt:           now,
		})
		if err != nil {
			return err
		}
		res.Remark = rec
		coins += res.CoinsEarned
		messages = append(messages, fmt.Sprintf("You earned %d coins for %q", res.CoinsEarned, task.Name))

		dayDone, err := allRemarked(ctx, tx, uid, p, req.Date)
		if err != nil {
			return err
		}
		if dayDone && rule.ExtraCoins > 0 {
			res.BonusCoins = rule.ExtraCoins
			coins += res.BonusCoins
			messages = append(messages, fmt.Sprintf("Bonus %d coins: every task of %q is done for %s",
				res.BonusCoins, p.Name, req.Date))
		}

		if req.IsPaidForPastRemark && rule.AddPastRemarkCoins > 0 {
			fee := rule.AddPastRemarkCoins
			if coins < fee {
				return apperr.ErrInsufficientCoins.WithMessage(
					fmt.Sprintf("past remark costs %d coins, balance would be %d", fee, coins))
			}
			res.FeeCoins = fee
			coins -= fee
			messages = append(messages, fmt.Sprintf("%d coins were charged for a past remark on %s", fee, req.Date))
		}

		months, remainder := month.Split(coins, rule.FreeSubsCoins)
		if months > 0 {
			res.converted = coins - remainder
			coins = remainder
			if !settings.Tiers.IsPaid(user.Tier) {
				user.PreviousTier = user.Tier
				user.Tier = settings.Tiers.Mid
			}
			end := month.Extend(now, user.SubscriptionEndDate, months)
			user.SubscriptionEndDate = &end
			res.MonthsEarned = months
			res.SubscriptionMessage = fmt.Sprintf("Congratulations! You got %d month(s) of the %s subscription, active until %s",
				months, user.Tier, end.Format(calendar.DateLayout))
			messages = append(messages, res.SubscriptionMessage)
		}

		user.Coins = coins
		res.Balance = coins
		if err := tx.UpdateUserBalance(ctx, user); err != nil {
			return err
		}
		return tx.AppendNotifications(ctx, uid, messages, now)
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return &res, user, messages, nil
}

// allRemarked сообщает, отмечены ли все задачи плана на дату и есть ли среди
// этих отметок хотя бы одна с непустым отзывом. Читает отметки той же транзакции.
func allRemarked(ctx context.Context, tx storage.Remarks, uid string, p *models.Plan, date string) (bool, error) {
	tasks := p.TasksOn(date)
	if len(tasks) == 0 {
		return false, nil
	}
	remarks, err := tx.RemarksByPlanAndDate(ctx, uid, p.ID, date)
	if err != nil {
		return false, err
	}
	byTask := make(map[int64]*models.Remark, len(remarks))
	for _, r := range remarks {
		byTask[r.TaskID] = r
	}
	summary := false
	for _, t := range tasks {
		r, ok := byTask[t.ID]
		if !ok {
			return false, nil
		}
		if r.Summary != "" {
			summary = true
		}
	}
	return summary, nil
}
