package inbox

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_ListMarkPrune(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	sent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendNotifications(ctx, "u1", []string{"first", "second", "third"}, sent))
	require.NoError(t, store.AppendNotifications(ctx, "u2", []string{"other"}, sent))

	clk := &clock.Fixed{T: sent.Add(time.Hour)}
	s := New(store, clk, newNoopLogger())

	all, err := s.List(ctx, "u1", false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Message, "newest first")

	page, err := s.List(ctx, "u1", false, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	n, err := s.MarkRead(ctx, "u1", []int64{all[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := s.List(ctx, "u1", true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err = s.MarkRead(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "read messages still inside retention")

	clk.Advance(48 * time.Hour)
	n, err = s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := s.List(ctx, "u2", false, 0)
	require.NoError(t, err)
	assert.Len(t, left, 1, "unread messages of others are kept")
}
