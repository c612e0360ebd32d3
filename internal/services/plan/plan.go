// Package plan — хранилище планов: создание, подключение к шаблону, смена статуса
// и правка задач. Все изменения, затрагивающие баланс пользователя, выполняются
// в одной транзакции с заблокированной строкой пользователя.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/calendar"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/metrics"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
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

// TaskInput — задача в запросе на создание плана.
type TaskInput struct {
	SrNo        int    `json:"sr_no,omitempty" validate:"omitempty,min=1"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Link        string `json:"link,omitempty" validate:"omitempty,url"`
	DayOffsets  []int  `json:"day_offsets" validate:"required,min=1,dive,min=0,max=3650"`
	Time        string `json:"time,omitempty"`
	CoinsEarned *int   `json:"coins_earned,omitempty" validate:"omitempty,min=0"`
}

// CreateRequest — запрос на создание плана.
type CreateRequest struct {
	Name  string      `json:"name" validate:"required,max=200"`
	Tasks []TaskInput `json:"tasks" validate:"required,min=1,dive"`
}

// EditTaskRequest — изменение задачи. Незаданные поля не меняются.
type EditTaskRequest struct {
	SrNo        *int    `json:"sr_no,omitempty" validate:"omitempty,min=1"`
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty"`
	Link        *string `json:"link,omitempty"`
	DayOffsets  []int   `json:"day_offsets,omitempty" validate:"omitempty,min=1,dive,min=0,max=3650"`
	Time        *string `json:"time,omitempty"`
	CoinsEarned *int    `json:"coins_earned,omitempty" validate:"omitempty,min=0"`
}

// Service управляет планами.
type Service struct {
	store    storage.Store
	rules    RuleProvider
	settings SettingsProvider
	notifier Notifier
	clock    clock.Clock
	skipDay  time.Weekday
	log      *slog.Logger
}

// New создаёт сервис планов. notifier может быть nil.
func New(store storage.Store, rules RuleProvider, settings SettingsProvider, notifier Notifier,
	clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		rules:    rules,
		settings: settings,
		notifier: notifier,
		clock:    clk,
		skipDay:  calendar.DefaultSkipDay,
		log:      log,
	}
}

// queued — уведомление, которое отправляется во внешний канал после фиксации транзакции.
type queued struct {
	user    *models.User
	message string
}

func (s *Service) deliver(ctx context.Context, q []queued) {
	if s.notifier == nil {
		return
	}
	for _, n := range q {
		s.notifier.Notify(ctx, n.user, n.message)
	}
}

func (s *Service) rule(ctx context.Context) (models.CoinRule, error) {
	r, err := s.rules.Get(ctx)
	if err != nil || r == nil {
		return models.CoinRule{}, err
	}
	return *r, nil
}

// Create создаёт план. План администратора становится шаблоном без владельца,
// план пользователя учитывается в лимите активных планов и приносит бонус за новый план.
func (s *Service) Create(ctx context.Context, caller models.Caller, req CreateRequest) (*models.Plan, error) {
	const op = "plan.Create"
	log := s.log.With(sl.Op(op), sl.User(caller.UID))

	if req.Name == "" {
		return nil, apperr.Validation("plan name is required")
	}
	if len(req.Tasks) == 0 {
		return nil, apperr.Validation("plan must have at least one task")
	}
	rule, err := s.rule(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.clock.Now()
	tasks, err := s.buildTasks(req.Tasks, now, rule.TaskCoins)
	if err != nil {
		return nil, err
	}

	p := &models.Plan{
		OwnerRole: caller.Role,
		Name:      req.Name,
		Status:    models.PlanActive,
		CreatedAt: now,
		Tasks:     tasks,
	}
	if caller.IsAdmin() {
		if _, err := s.store.CreatePlan(ctx, p); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return nil, apperr.ErrDuplicatePlan
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("template created", slog.Int64("plan_id", p.ID))
		return p, nil
	}

	uid := caller.UID
	p.OwnerUID = &uid
	p.OwnerRole = models.RoleUser
	p.CheckFrom = clock.Today(s.clock)
	out, err := s.createOwned(ctx, p, rule, apperr.ErrDuplicatePlan)
	if err != nil {
		return nil, err
	}
	log.Info("plan created", slog.Int64("plan_id", out.ID))
	return out, nil
}

// OptIn копирует задачи плана sourceID в новый план пользователя. Расписание
// разворачивается заново от даты подключения.
func (s *Service) OptIn(ctx context.Context, caller models.Caller, sourceID int64) (*models.Plan, error) {
	const op = "plan.OptIn"

	src, err := s.store.GetPlan(ctx, sourceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if src.IsOwnedBy(caller.UID) {
		return nil, apperr.ErrAlreadyOpted
	}
	rule, err := s.rule(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inputs := make([]TaskInput, len(src.Tasks))
	for i, t := range src.Tasks {
		coins := t.CoinsEarned
		inputs[i] = TaskInput{
			SrNo:        t.SrNo,
			Name:        t.Name,
			Description: t.Description,
			Link:        t.Link,
			DayOffsets:  t.DayOffsets,
			Time:        t.Time,
			CoinsEarned: &coins,
		}
	}
	now := s.clock.Now()
	tasks, err := s.buildTasks(inputs, now, rule.TaskCoins)
	if err != nil {
		return nil, err
	}

	uid := caller.UID
	srcID := src.ID
	p := &models.Plan{
		OwnerUID:     &uid,
		OwnerRole:    models.RoleUser,
		Name:         src.Name,
		Status:       models.PlanActive,
		CheckFrom:    clock.Today(s.clock),
		SourcePlanID: &srcID,
		CreatedAt:    now,
		Tasks:        tasks,
	}
	out, err := s.createOwned(ctx, p, rule, apperr.ErrAlreadyOpted)
	if err != nil {
		return nil, err
	}
	s.log.Info("opted in", sl.User(caller.UID), slog.Int64("source_id", sourceID), slog.Int64("plan_id", out.ID))
	return out, nil
}

// createOwned сохраняет активный план пользователя с проверкой лимита и начисляет бонус.
func (s *Service) createOwned(ctx context.Context, p *models.Plan, rule models.CoinRule, dup *apperr.Error) (*models.Plan, error) {
	const op = "plan.createOwned"
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var notes []queued
	err = s.store.InTx(ctx, func(tx storage.Queries) error {
		user, err := lockUser(ctx, tx, *p.OwnerUID)
		if err != nil {
			return err
		}
		exists, err := tx.PlanExists(ctx, p.OwnerUID, p.Name)
		if err != nil {
			return err
		}
		if exists {
			return dup
		}
		active, err := tx.CountActivePlans(ctx, user.UID, 0)
		if err != nil {
			return err
		}
		if active >= settings.PlanLimit {
			return apperr.ErrPlanLimitExceeded
		}
		if _, err := tx.CreatePlan(ctx, p); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return dup
			}
			return err
		}

		if rule.StartNewPlanCoins <= 0 {
			return nil
		}
		user.Coins += rule.StartNewPlanCoins
		if err := tx.UpdateUserBalance(ctx, user); err != nil {
			return err
		}
		msg := fmt.Sprintf("You earned %d coins for starting the plan %q", rule.StartNewPlanCoins, p.Name)
		notes = append(notes, queued{user: user, message: msg})
		return tx.AppendNotifications(ctx, user.UID, []string{msg}, s.clock.Now())
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	s.deliver(ctx, notes)
	if len(notes) > 0 {
		metrics.RecordCoins(metrics.CoinsNewPlan, rule.StartNewPlanCoins)
	}
	return p, nil
}

// List возвращает планы по фильтру.
func (s *Service) List(ctx context.Context, filter storage.PlanFilter) ([]*models.Plan, error) {
	const op = "plan.List"
	res, err := s.store.ListPlans(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Get возвращает план по ID.
func (s *Service) Get(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "plan.Get"
	p, err := s.store.GetPlan(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// SetStatus переводит план владельца в status. Приостановить план можно всегда;
// возобновление проверяет лимит активных планов, а план, приостановленный за
// пропуски, стоит addPastRemarkCoins монет. После возобновления пропуски
// считаются с текущей даты.
func (s *Service) SetStatus(ctx context.Context, caller models.Caller, planID int64, status models.PlanStatus) (*models.Plan, error) {
	const op = "plan.SetStatus"
	if status != models.PlanActive && status != models.PlanPaused {
		return nil, apperr.Validation("status must be active or paused")
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rule, err := s.rule(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		out   *models.Plan
		notes []queued
		fee   int
	)
	err = s.store.InTx(ctx, func(tx storage.Queries) error {
		user, err := lockUser(ctx, tx, caller.UID)
		if err != nil {
			return err
		}
		p, err := tx.GetPlan(ctx, planID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !p.IsOwnedBy(user.UID)) {
			return apperr.ErrPlanNotFound
		}
		if err != nil {
			return err
		}
		out = p
		if p.Status == status {
			return nil
		}

		if status == models.PlanPaused {
			p.Status = models.PlanPaused
			p.PausedReason = models.PausedByUser
			return tx.UpdatePlanStatus(ctx, p)
		}

		active, err := tx.CountActivePlans(ctx, user.UID, p.ID)
		if err != nil {
			return err
		}
		if active >= settings.PlanLimit {
			return apperr.ErrPlanLimitExceeded
		}
		if p.PausedReason == models.PausedByOverdue && rule.AddPastRemarkCoins > 0 {
			fee = rule.AddPastRemarkCoins
			if user.Coins < fee {
				return apperr.ErrInsufficientCoins.WithMessage(
					fmt.Sprintf("restarting the plan costs %d coins, you have %d", fee, user.Coins))
			}
			user.Coins -= fee
			if err := tx.UpdateUserBalance(ctx, user); err != nil {
				return err
			}
			msg := fmt.Sprintf("%d coins were charged for restarting the plan %q", fee, p.Name)
			notes = append(notes, queued{user: user, message: msg})
			if err := tx.AppendNotifications(ctx, user.UID, []string{msg}, s.clock.Now()); err != nil {
				return err
			}
		}
		p.Status = models.PlanActive
		p.PausedReason = ""
		p.CheckFrom = clock.Today(s.clock)
		return tx.UpdatePlanStatus(ctx, p)
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	s.deliver(ctx, notes)
	if fee > 0 {
		metrics.RecordCoins(metrics.CoinsRestartFee, fee)
	}
	s.log.Info("plan status changed", sl.User(caller.UID), slog.Int64("plan_id", planID), slog.String("status", string(out.Status)))
	return out, nil
}

// EditTask меняет задачу плана. Свой план правит владелец, шаблон — администратор.
// Если изменились смещения или время, расписание разворачивается заново от даты
// создания плана; уже отправленные напоминания для неизменившихся записей сохраняются.
func (s *Service) EditTask(ctx context.Context, caller models.Caller, planID, taskID int64, req EditTaskRequest) (*models.Plan, error) {
	const op = "plan.EditTask"

	var out *models.Plan
	err := s.store.InTx(ctx, func(tx storage.Queries) error {
		p, err := tx.GetPlan(ctx, planID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrPlanNotFound
		}
		if err != nil {
			return err
		}
		switch {
		case p.IsTemplate() && !caller.IsAdmin():
			return apperr.ErrForbidden
		case !p.IsTemplate() && !p.IsOwnedBy(caller.UID):
			return apperr.ErrPlanNotFound
		}

		task := p.Task(taskID)
		if task == nil {
			return apperr.ErrTaskNotInPlan
		}
		reschedule, err := applyEdit(p, task, req)
		if err != nil {
			return err
		}
		if reschedule {
			created := p.CreatedAt.In(s.clock.Now().Location())
			sched, err := s.schedule(created, task.DayOffsets, task.Time)
			if err != nil {
				return err
			}
			task.Schedule = keepReminded(task.Schedule, sched)
		}
		if err := tx.UpdateTask(ctx, task); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.Validation("duplicate sr_no in plan")
			}
			return err
		}
		out, err = tx.GetPlan(ctx, planID)
		return err
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	s.log.Info("task edited", sl.User(caller.UID), slog.Int64("plan_id", planID), slog.Int64("task_id", taskID))
	return out, nil
}

// applyEdit переносит изменения в task и сообщает, нужно ли перестроить расписание.
func applyEdit(p *models.Plan, task *models.Task, req EditTaskRequest) (bool, error) {
	if req.SrNo != nil {
		if *req.SrNo < 1 {
			return false, apperr.Validation("sr_no must be positive")
		}
		for _, t := range p.Tasks {
			if t.ID != task.ID && t.SrNo == *req.SrNo {
				return false, apperr.Validation(fmt.Sprintf("duplicate sr_no %d in plan", *req.SrNo))
			}
		}
		task.SrNo = *req.SrNo
	}
	if req.Name != nil {
		if *req.Name == "" {
			return false, apperr.Validation("task name is required")
		}
		task.Name = *req.Name
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Link != nil {
		task.Link = *req.Link
	}
	if req.CoinsEarned != nil {
		if *req.CoinsEarned < 0 {
			return false, apperr.Validation("coins_earned must not be negative")
		}
		task.CoinsEarned = *req.CoinsEarned
	}

	reschedule := false
	if req.Time != nil && *req.Time != task.Time {
		if !calendar.ValidTime(*req.Time) {
			return false, apperr.Validation("time must be HH:MM")
		}
		task.Time = *req.Time
		reschedule = true
	}
	if req.DayOffsets != nil {
		if err := checkOffsets(req.DayOffsets); err != nil {
			return false, err
		}
		if !slices.Equal(req.DayOffsets, task.DayOffsets) {
			task.DayOffsets = append([]int(nil), req.DayOffsets...)
			reschedule = true
		}
	}
	return reschedule, nil
}

// keepReminded переносит отметку об отправленном напоминании на совпадающие записи.
func keepReminded(old, fresh []models.ScheduleEntry) []models.ScheduleEntry {
	sent := make(map[string]*time.Time, len(old))
	for _, e := range old {
		if e.RemindedAt != nil {
			sent[e.Date+" "+e.Time] = e.RemindedAt
		}
	}
	for i := range fresh {
		if at, ok := sent[fresh[i].Date+" "+fresh[i].Time]; ok {
			fresh[i].RemindedAt = at
		}
	}
	return fresh
}

func lockUser(ctx context.Context, tx storage.Queries, uid string) (*models.User, error) {
	user, err := tx.LockUser(ctx, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	return user, err
}

// wrap оставляет доменные ошибки как есть, остальные дополняет op.
func wrap(op string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
