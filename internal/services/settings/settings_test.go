package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage/memory"
)

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(cache Cache) (*Service, *memory.Store) {
	store := memory.New()
	clk := &clock.Fixed{T: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(store, cache, time.Minute, clk, newNoopLogger()), store
}

func TestService_GetDefaults(t *testing.T) {
	s, _ := newService(nil)

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Regular", got.Tiers.Base)
	assert.Equal(t, "Custom", got.Tiers.Mid)
	assert.Equal(t, 1, got.PlanLimit)
}

func TestService_GetUsesCache(t *testing.T) {
	cache := new(CacheMock)
	s, store := newService(cache)
	ctx := context.Background()
	saved := models.DefaultSettings()
	saved.PlanLimit = 3
	require.NoError(t, store.SaveSettings(ctx, &saved))

	cache.On("Get", mock.Anything, cacheKey, mock.Anything).Return(false, nil).Once()
	cache.On("Set", mock.Anything, cacheKey, mock.Anything, time.Minute).Return(nil).Once()

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PlanLimit)
	cache.AssertExpectations(t)
}

func TestService_GetCacheErrorFallsBack(t *testing.T) {
	cache := new(CacheMock)
	s, _ := newService(cache)

	cache.On("Get", mock.Anything, cacheKey, mock.Anything).Return(false, errors.New("redis down")).Once()

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlanLimit)
}

func TestService_Update(t *testing.T) {
	limit := 2
	zero := 0

	tests := []struct {
		name     string
		req      UpdateRequest
		wantErr  error
		wantPaid []string
		wantLim  int
	}{
		{
			name:     "plan limit only",
			req:      UpdateRequest{PlanLimit: &limit},
			wantPaid: []string{"Custom", "Manage"},
			wantLim:  2,
		},
		{
			name:     "rename tiers",
			req:      UpdateRequest{Tiers: &models.TierConfig{Base: "Free", Paid: []string{"Pro", "Team"}, Mid: "Pro"}},
			wantPaid: []string{"Pro", "Team"},
			wantLim:  1,
		},
		{
			name:    "zero plan limit",
			req:     UpdateRequest{PlanLimit: &zero},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "mid not paid",
			req:     UpdateRequest{Tiers: &models.TierConfig{Base: "Free", Paid: []string{"Pro"}, Mid: "Team"}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "base among paid",
			req:     UpdateRequest{Tiers: &models.TierConfig{Base: "Pro", Paid: []string{"Pro"}, Mid: "Pro"}},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newService(nil)
			got, err := s.Update(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, got.Tiers.Paid)
			assert.Equal(t, tt.wantLim, got.PlanLimit)
			assert.Equal(t, 1, got.Version)

			again, err := s.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, got.Version, again.Version)
		})
	}
}

func TestService_UpdateInvalidatesCache(t *testing.T) {
	cache := new(CacheMock)
	s, _ := newService(cache)
	limit := 4

	cache.On("Invalidate", mock.Anything, cacheKey).Return(nil).Once()

	_, err := s.Update(context.Background(), UpdateRequest{PlanLimit: &limit})
	require.NoError(t, err)
	cache.AssertExpectations(t)
}
