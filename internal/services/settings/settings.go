// Package settings управляет версионируемыми настройками: набором тарифов и лимитом
// активных планов. Настройки читаются через кэш и внедряются в остальные сервисы.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

const cacheKey = "settings:active"

// Repository хранит настройки.
type Repository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// UpdateRequest — изменение настроек. Незаданные поля не меняются.
type UpdateRequest struct {
	Tiers     *models.TierConfig `json:"tiers,omitempty"`
	PlanLimit *int               `json:"plan_limit,omitempty" validate:"omitempty,min=1"`
}

// Service читает и обновляет настройки.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	clock clock.Clock
	log   *slog.Logger
}

// New создаёт сервис настроек. cache может быть nil.
func New(repo Repository, cache Cache, ttl time.Duration, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, clock: clk, log: log}
}

// Get возвращает активные настройки или значения по умолчанию, если они ещё не сохранены.
func (s *Service) Get(ctx context.Context) (*models.Settings, error) {
	const op = "settings.Get"
	if s.cache != nil {
		var cached models.Settings
		found, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.log.Warn("settings cache read failed", sl.Err(err))
		} else if found {
			return &cached, nil
		}
	}

	res, err := s.repo.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		def := models.DefaultSettings()
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, res, s.ttl); err != nil {
			s.log.Warn("settings cache write failed", sl.Err(err))
		}
	}
	return res, nil
}

// Update применяет изменения и увеличивает версию настроек.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*models.Settings, error) {
	const op = "settings.Update"
	if req.PlanLimit != nil && *req.PlanLimit < 1 {
		return nil, apperr.Validation("plan_limit must be at least 1")
	}
	if req.Tiers != nil {
		if err := ValidateTiers(*req.Tiers); err != nil {
			return nil, err
		}
	}

	current, err := s.repo.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		def := models.DefaultSettings()
		current, err = &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Tiers != nil {
		current.Tiers = models.TierConfig{
			Base: req.Tiers.Base,
			Paid: slices.Clone(req.Tiers.Paid),
			Mid:  req.Tiers.Mid,
		}
	}
	if req.PlanLimit != nil {
		current.PlanLimit = *req.PlanLimit
	}
	current.Version++
	current.UpdatedAt = s.clock.Now()

	if err := s.repo.SaveSettings(ctx, current); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
			s.log.Warn("settings cache invalidate failed", sl.Err(err))
		}
	}
	s.log.Info("settings updated", slog.Int("version", current.Version))
	return current, nil
}

// ValidateTiers проверяет согласованность набора тарифов.
func ValidateTiers(t models.TierConfig) error {
	switch {
	case t.Base == "":
		return apperr.Validation("base tier is required")
	case len(t.Paid) == 0:
		return apperr.Validation("at least one paid tier is required")
	case slices.Contains(t.Paid, t.Base):
		return apperr.Validation("base tier cannot be a paid tier")
	case !slices.Contains(t.Paid, t.Mid):
		return apperr.Validation("mid tier must be one of the paid tiers")
	}
	seen := make(map[string]struct{}, len(t.Paid))
	for _, p := range t.Paid {
		if p == "" {
			return apperr.Validation("paid tier name cannot be empty")
		}
		if _, ok := seen[p]; ok {
			return apperr.Validation("duplicate paid tier " + p)
		}
		seen[p] = struct{}{}
	}
	return nil
}
