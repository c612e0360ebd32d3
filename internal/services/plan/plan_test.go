package plan

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/calendar"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
	"github.com/magabrotheeeer/coin-planner/internal/storage/memory"
)

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, user *models.User, message string) {
	m.Called(ctx, user, message)
}

type staticRule struct{ r *models.CoinRule }

func (p staticRule) Get(context.Context) (*models.CoinRule, error) { return p.r, nil }

type staticSettings struct{ s models.Settings }

func (p staticSettings) Get(context.Context) (*models.Settings, error) {
	s := p.s
	return &s, nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

var (
	admin = models.Caller{UID: "admin-1", Username: "admin", Role: models.RoleAdmin}
	alice = models.Caller{UID: "alice", Username: "alice", Role: models.RoleUser}
	bob   = models.Caller{UID: "bob", Username: "bob", Role: models.RoleUser}
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	clk      *clock.Fixed
	notifier *NotifierMock
}

func setup(t *testing.T, limit int) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, c := range []models.Caller{admin, alice, bob} {
		_, err := store.CreateUser(ctx, &models.User{
			UID: c.UID, Email: c.Username + "@example.com", Username: c.Username, Role: c.Role, Tier: "Regular", Coins: 10,
		})
		require.NoError(t, err)
	}
	settings := models.DefaultSettings()
	settings.PlanLimit = limit
	rule := &models.CoinRule{TaskCoins: 3, StartNewPlanCoins: 2, AddPastRemarkCoins: 4, FreeSubsCoins: 100}
	clk := &clock.Fixed{T: time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("+03:00", 3*3600))}
	n := new(NotifierMock)
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Maybe()
	return &fixture{
		svc:      New(store, staticRule{rule}, staticSettings{settings}, n, clk, newNoopLogger()),
		store:    store,
		clk:      clk,
		notifier: n,
	}
}

func fitness() CreateRequest {
	return CreateRequest{
		Name: "Fitness",
		Tasks: []TaskInput{
			{Name: "run", DayOffsets: []int{0, 5}, CoinsEarned: intPtr(5)},
			{Name: "stretch", DayOffsets: []int{1}, Time: "07:30"},
		},
	}
}

func TestService_CreateUserPlan(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, alice, fitness())
	require.NoError(t, err)
	require.NotNil(t, p.OwnerUID)
	assert.Equal(t, "alice", *p.OwnerUID)
	assert.Equal(t, models.PlanActive, p.Status)
	require.Len(t, p.Tasks, 2)

	run := p.Tasks[0]
	assert.Equal(t, 1, run.SrNo)
	assert.Equal(t, 5, run.CoinsEarned)
	require.Len(t, run.Schedule, 2)
	assert.Equal(t, "2024-01-02", run.Schedule[0].Date)
	assert.Equal(t, "2024-01-08", run.Schedule[1].Date, "sunday is skipped")
	assert.Equal(t, "00:01", run.Schedule[0].Time)

	stretch := p.Tasks[1]
	assert.Equal(t, 2, stretch.SrNo)
	assert.Equal(t, 3, stretch.CoinsEarned, "default from coin rule")
	assert.Equal(t, "07:30", stretch.Schedule[0].Time)
	assert.Equal(t, time.Date(2024, 1, 3, 4, 30, 0, 0, time.UTC), stretch.Schedule[0].FireAt.UTC())

	user, err := f.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 12, user.Coins, "new plan bonus")

	inbox, err := f.store.ListNotifications(ctx, "alice", true, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Contains(t, inbox[0].Message, "Fitness")
	f.notifier.AssertCalled(t, "Notify", mock.Anything, mock.Anything, inbox[0].Message)
}

func TestService_CreateErrors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture)
		req     CreateRequest
		wantErr error
	}{
		{
			name:    "duplicate name",
			prepare: func(f *fixture) { _, _ = f.svc.Create(context.Background(), alice, fitness()) },
			req:     fitness(),
			wantErr: apperr.ErrDuplicatePlan,
		},
		{
			name:    "limit exceeded",
			prepare: func(f *fixture) { _, _ = f.svc.Create(context.Background(), alice, fitness()) },
			req:     CreateRequest{Name: "Reading", Tasks: []TaskInput{{Name: "read", DayOffsets: []int{0}}}},
			wantErr: apperr.ErrPlanLimitExceeded,
		},
		{
			name:    "duplicate offsets",
			req:     CreateRequest{Name: "Bad", Tasks: []TaskInput{{Name: "x", DayOffsets: []int{1, 1}}}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "negative offset",
			req:     CreateRequest{Name: "Bad", Tasks: []TaskInput{{Name: "x", DayOffsets: []int{-1}}}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "offset too far ahead",
			req:     CreateRequest{Name: "Bad", Tasks: []TaskInput{{Name: "x", DayOffsets: []int{20_000_000}}}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "bad time",
			req:     CreateRequest{Name: "Bad", Tasks: []TaskInput{{Name: "x", DayOffsets: []int{0}, Time: "25:00"}}},
			wantErr: apperr.ErrValidation,
		},
		{
			name: "duplicate sr_no",
			req: CreateRequest{Name: "Bad", Tasks: []TaskInput{
				{SrNo: 1, Name: "x", DayOffsets: []int{0}},
				{SrNo: 1, Name: "y", DayOffsets: []int{0}},
			}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "no tasks",
			req:     CreateRequest{Name: "Empty"},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 1)
			if tt.prepare != nil {
				tt.prepare(f)
			}
			_, err := f.svc.Create(context.Background(), alice, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_TemplateAndOptIn(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	tpl, err := f.svc.Create(ctx, admin, fitness())
	require.NoError(t, err)
	assert.True(t, tpl.IsTemplate())
	assert.Equal(t, models.RoleAdmin, tpl.OwnerRole)

	admin2, err := f.store.GetUser(ctx, admin.UID)
	require.NoError(t, err)
	assert.Equal(t, 10, admin2.Coins, "templates grant no bonus")

	f.clk.Advance(48 * time.Hour) // 2024-01-03
	p, err := f.svc.OptIn(ctx, alice, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fitness", p.Name)
	require.NotNil(t, p.SourcePlanID)
	assert.Equal(t, tpl.ID, *p.SourcePlanID)
	assert.Equal(t, "2024-01-04", p.Tasks[0].Schedule[0].Date, "expanded from opt-in date")
	assert.Equal(t, tpl.Tasks[1].CoinsEarned, p.Tasks[1].CoinsEarned)

	_, err = f.svc.OptIn(ctx, alice, tpl.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyOpted)

	_, err = f.svc.OptIn(ctx, bob, 9999)
	assert.ErrorIs(t, err, apperr.ErrPlanNotFound)

	mine, err := f.svc.List(ctx, storage.PlanFilter{OwnerUID: "alice"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	templates, err := f.svc.List(ctx, storage.PlanFilter{OwnerRole: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestService_SetStatus(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, alice, fitness())
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, bob, p.ID, models.PlanPaused)
	assert.ErrorIs(t, err, apperr.ErrPlanNotFound)

	paused, err := f.svc.SetStatus(ctx, alice, p.ID, models.PlanPaused)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPaused, paused.Status)
	assert.Equal(t, models.PausedByUser, paused.PausedReason)

	other, err := f.svc.Create(ctx, alice, CreateRequest{Name: "Reading", Tasks: []TaskInput{{Name: "read", DayOffsets: []int{0}}}})
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, alice, p.ID, models.PlanActive)
	assert.ErrorIs(t, err, apperr.ErrPlanLimitExceeded)

	_, err = f.svc.SetStatus(ctx, alice, other.ID, models.PlanPaused)
	require.NoError(t, err)

	f.clk.Advance(24 * time.Hour)
	before, err := f.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	active, err := f.svc.SetStatus(ctx, alice, p.ID, models.PlanActive)
	require.NoError(t, err)
	assert.Equal(t, models.PlanActive, active.Status)
	assert.Equal(t, "2024-01-02", active.CheckFrom)
	after, err := f.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.Coins, after.Coins, "user pause costs nothing")

	_, err = f.svc.SetStatus(ctx, alice, p.ID, "archived")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_ResumeOverdueCharges(t *testing.T) {
	tests := []struct {
		name      string
		coins     int
		wantErr   error
		wantCoins int
	}{
		{name: "enough coins", coins: 6, wantCoins: 2},
		{name: "exact fee", coins: 4, wantCoins: 0},
		{name: "not enough", coins: 3, wantErr: apperr.ErrInsufficientCoins, wantCoins: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 1)
			ctx := context.Background()
			p, err := f.svc.Create(ctx, alice, fitness())
			require.NoError(t, err)

			p.Status = models.PlanPaused
			p.PausedReason = models.PausedByOverdue
			require.NoError(t, f.store.UpdatePlanStatus(ctx, p))
			u, err := f.store.GetUser(ctx, "alice")
			require.NoError(t, err)
			u.Coins = tt.coins
			require.NoError(t, f.store.UpdateUserBalance(ctx, u))

			_, err = f.svc.SetStatus(ctx, alice, p.ID, models.PlanActive)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			u, err = f.store.GetUser(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCoins, u.Coins)
		})
	}
}

func TestService_EditTask(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, alice, fitness())
	require.NoError(t, err)
	run := p.Tasks[0]

	edited, err := f.svc.EditTask(ctx, alice, p.ID, run.ID, EditTaskRequest{
		Name:       strPtr("jog"),
		DayOffsets: []int{2},
		Time:       strPtr("06:00"),
	})
	require.NoError(t, err)
	task := edited.Task(run.ID)
	require.NotNil(t, task)
	assert.Equal(t, "jog", task.Name)
	require.Len(t, task.Schedule, 1)
	assert.Equal(t, "2024-01-04", task.Schedule[0].Date)
	assert.Equal(t, "06:00", task.Schedule[0].Time)

	_, err = f.svc.EditTask(ctx, alice, p.ID, run.ID, EditTaskRequest{SrNo: intPtr(2)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.EditTask(ctx, alice, p.ID, run.ID, EditTaskRequest{DayOffsets: []int{1, 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.EditTask(ctx, alice, p.ID, run.ID, EditTaskRequest{DayOffsets: []int{calendar.MaxOffset + 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.EditTask(ctx, bob, p.ID, run.ID, EditTaskRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperr.ErrPlanNotFound)

	_, err = f.svc.EditTask(ctx, alice, p.ID, 424242, EditTaskRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperr.ErrTaskNotInPlan)

	tpl, err := f.svc.Create(ctx, admin, CreateRequest{Name: "Tpl", Tasks: []TaskInput{{Name: "t", DayOffsets: []int{0}}}})
	require.NoError(t, err)
	_, err = f.svc.EditTask(ctx, alice, tpl.ID, tpl.Tasks[0].ID, EditTaskRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.EditTask(ctx, admin, tpl.ID, tpl.Tasks[0].ID, EditTaskRequest{CoinsEarned: intPtr(9)})
	require.NoError(t, err)
}

func TestKeepReminded(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)
	old := []models.ScheduleEntry{
		{Date: "2024-01-02", Time: "00:01", RemindedAt: &at},
		{Date: "2024-01-03", Time: "00:01"},
	}
	fresh := []models.ScheduleEntry{
		{Date: "2024-01-02", Time: "00:01"},
		{Date: "2024-01-05", Time: "00:01"},
	}
	got := keepReminded(old, fresh)
	require.NotNil(t, got[0].RemindedAt)
	assert.Nil(t, got[1].RemindedAt)
}
