package bootstrap

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/services/user"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestOpenMemoryWithoutOptionalDeps(t *testing.T) {
	cfg := &config.Config{StorageDriver: config.StorageMemory}
	cfg.UTCOffset = "+05:30"
	cfg.JWTSecretKey = "secret"
	cfg.TokenTTL = time.Hour

	d, err := Open(t.Context(), cfg, newNoopLogger(), Options{Cache: true, Broker: true})
	require.NoError(t, err)
	defer d.Close()

	// Отключённые зависимости должны быть nil-интерфейсами, а не типизированными nil.
	assert.Nil(t, d.Cache())
	assert.Nil(t, d.Locker())
	assert.Nil(t, d.Publisher())
	assert.Nil(t, d.Pinger())
	assert.NoError(t, d.WaitReady(t.Context(), 1, time.Millisecond))

	_, offset := d.Clock.Now().Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	svc := NewServices(d, cfg)
	u, err := svc.Users.Provision(t.Context(), user.ProvisionRequest{Email: "Bob@Example.com", Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)

	s, err := svc.Settings.Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, s.Tiers.Base, u.Tier)
}

func TestOpenRejectsBadOffset(t *testing.T) {
	cfg := &config.Config{StorageDriver: config.StorageMemory}
	cfg.UTCOffset = "three hours"

	_, err := Open(t.Context(), cfg, newNoopLogger(), Options{})
	assert.Error(t, err)
}

func TestOpenWithoutStorage(t *testing.T) {
	cfg := &config.Config{StorageDriver: config.StoragePostgres}

	d, err := Open(t.Context(), cfg, newNoopLogger(), Options{NoStorage: true})
	require.NoError(t, err)
	assert.Nil(t, d.Store)
	d.Close()
}
