package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/coin-planner/internal/migrations"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, email, tier string, coins int) *models.User {
	u := &models.User{
		Email:    email,
		Username: email,
		Role:     models.RoleUser,
		Tier:     tier,
		Coins:    coins,
	}
	_, err := f.storage.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

// CreatePlan создает тестовый план с одной задачей на два дня
func (f *TestDataFactory) CreatePlan(t *testing.T, owner *models.User, name string) *models.Plan {
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	p := &models.Plan{
		OwnerUID:  &owner.UID,
		OwnerRole: owner.Role,
		Name:      name,
		Status:    models.PlanActive,
		CreatedAt: at,
		Tasks: []models.Task{{
			SrNo:        1,
			Name:        "read",
			DayOffsets:  []int{0, 1},
			Time:        "09:00",
			CoinsEarned: 10,
			Schedule: []models.ScheduleEntry{
				{Date: "2024-01-01", Time: "09:00", FireAt: at},
				{Date: "2024-01-02", Time: "09:00", FireAt: at.AddDate(0, 0, 1)},
			},
		}},
	}
	_, err := f.storage.CreatePlan(context.Background(), p)
	require.NoError(t, err)
	return p
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))

	cleanup := func() {
		_ = storage.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return storage, cleanup
}
