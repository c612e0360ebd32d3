// Package coinrule хранит единственное активное правило начисления монет.
package coinrule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

const cacheKey = "coinrule:active"

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// SettingsProvider возвращает активные настройки тарифов.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Notifier доставляет сообщение пользователю во внешний канал.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, message string)
}

// UpsertRequest — значения правила. Незаданные поля сохраняют текущее значение.
type UpsertRequest struct {
	TaskCoins          *int `json:"task_coins,omitempty" validate:"omitempty,min=0"`
	FreeSubsCoins      *int `json:"free_subs_coins,omitempty" validate:"omitempty,min=0"`
	AddPastRemarkCoins *int `json:"add_past_remark_coins,omitempty" validate:"omitempty,min=0"`
	StartNewPlanCoins  *int `json:"start_new_plan_coins,omitempty" validate:"omitempty,min=0"`
	ExtraCoins         *int `json:"extra_coins,omitempty" validate:"omitempty,min=0"`
}

// Service — реестр правила начисления монет.
type Service struct {
	store    storage.Store
	cache    Cache
	ttl      time.Duration
	settings SettingsProvider
	notifier Notifier
	clock    clock.Clock
	log      *slog.Logger
}

// New создаёт реестр. cache и notifier могут быть nil.
func New(store storage.Store, cache Cache, ttl time.Duration, settings SettingsProvider,
	notifier Notifier, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		ttl:      ttl,
		settings: settings,
		notifier: notifier,
		clock:    clk,
		log:      log,
	}
}

// Get возвращает активное правило или nil, если оно ещё не задано.
func (s *Service) Get(ctx context.Context) (*models.CoinRule, error) {
	const op = "coinrule.Get"
	if s.cache != nil {
		var cached models.CoinRule
		found, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.log.Warn("coin rule cache read failed", sl.Err(err))
		} else if found {
			return &cached, nil
		}
	}

	rule, err := s.store.GetCoinRule(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, rule, s.ttl); err != nil {
			s.log.Warn("coin rule cache write failed", sl.Err(err))
		}
	}
	return rule, nil
}

// Upsert обновляет активное правило или создаёт его. Если порог бесплатной подписки
// изменился или правило создано впервые, пользователи платных тарифов получают уведомление.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*models.CoinRule, error) {
	const op = "coinrule.Upsert"
	if err := validate(req); err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		rule     models.CoinRule
		audience []*models.User
		message  string
	)
	err = s.store.InTx(ctx, func(tx storage.Queries) error {
		current, err := tx.GetCoinRule(ctx)
		created := errors.Is(err, storage.ErrNotFound)
		if err != nil && !created {
			return err
		}
		if !created {
			rule = *current
		}
		oldThreshold := rule.FreeSubsCoins
		apply(&rule, req)
		rule.UpdatedAt = s.clock.Now()
		if err := tx.SaveCoinRule(ctx, &rule); err != nil {
			return err
		}

		if !created && rule.FreeSubsCoins == oldThreshold {
			return nil
		}
		audience, err = tx.ListUsersByTiers(ctx, settings.Tiers.Paid)
		if err != nil {
			return err
		}
		message = fmt.Sprintf("Collect %d coins to get a free month of subscription", rule.FreeSubsCoins)
		for _, u := range audience {
			if err := tx.AppendNotifications(ctx, u.UID, []string{message}, rule.UpdatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
			s.log.Warn("coin rule cache invalidate failed", sl.Err(err))
		}
	}
	if s.notifier != nil {
		for _, u := range audience {
			s.notifier.Notify(ctx, u, message)
		}
	}
	s.log.Info("coin rule saved", slog.Int("free_subs_coins", rule.FreeSubsCoins), slog.Int("notified", len(audience)))
	return &rule, nil
}

func validate(req UpsertRequest) error {
	for name, v := range map[string]*int{
		"task_coins":            req.TaskCoins,
		"free_subs_coins":       req.FreeSubsCoins,
		"add_past_remark_coins": req.AddPastRemarkCoins,
		"start_new_plan_coins":  req.StartNewPlanCoins,
		"extra_coins":           req.ExtraCoins,
	} {
		if v != nil && *v < 0 {
			return apperr.Validation(name + " must not be negative")
		}
	}
	return nil
}

func apply(rule *models.CoinRule, req UpsertRequest) {
	if req.TaskCoins != nil {
		rule.TaskCoins = *req.TaskCoins
	}
	if req.FreeSubsCoins != nil {
		rule.FreeSubsCoins = *req.FreeSubsCoins
	}
	if req.AddPastRemarkCoins != nil {
		rule.AddPastRemarkCoins = *req.AddPastRemarkCoins
	}
	if req.StartNewPlanCoins != nil {
		rule.StartNewPlanCoins = *req.StartNewPlanCoins
	}
	if req.ExtraCoins != nil {
		rule.ExtraCoins = *req.ExtraCoins
	}
}
