package accrual

import (
	"context"
	"io"
	"log/slog"
	"sync"
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

type fixture struct {
	engine   *Engine
	store    *memory.Store
	clk      *clock.Fixed
	notifier *NotifierMock
	rule     *models.CoinRule
}

// setup создаёт пользователя "u1" и план "Fitness", созданный в понедельник 2024-01-01.
func setup(t *testing.T, coins int, tasks ...models.Task) (*fixture, *models.Plan) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	_, err := store.CreateUser(ctx, &models.User{
		UID: "u1", Email: "u1@example.com", Username: "u1", Role: models.RoleUser, Tier: "Regular", Coins: coins,
	})
	require.NoError(t, err)

	owner := "u1"
	p := &models.Plan{
		OwnerUID:  &owner,
		OwnerRole: models.RoleUser,
		Name:      "Fitness",
		Status:    models.PlanActive,
		CreatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Tasks:     tasks,
	}
	_, err = store.CreatePlan(ctx, p)
	require.NoError(t, err)

	rule := &models.CoinRule{TaskCoins: 1, FreeSubsCoins: 100, AddPastRemarkCoins: 5, StartNewPlanCoins: 0, ExtraCoins: 10}
	clk := &clock.Fixed{T: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)}
	n := new(NotifierMock)
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Maybe()
	return &fixture{
		engine:   New(store, staticRule{rule}, staticSettings{models.DefaultSettings()}, n, clk, newNoopLogger()),
		store:    store,
		clk:      clk,
		notifier: n,
		rule:     rule,
	}, p
}

func task(name string, coins int, dates ...string) models.Task {
	t := models.Task{Name: name, CoinsEarned: coins, Time: "00:01"}
	for _, d := range dates {
		t.Schedule = append(t.Schedule, models.ScheduleEntry{Date: d, Time: "00:01"})
	}
	return t
}

func (f *fixture) coins(t *testing.T) int {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	return u.Coins
}

func TestEngine_EndToEnd(t *testing.T) {
	f, p := setup(t, 0, task("run", 5, "2024-01-02"))
	ctx := context.Background()

	res, err := f.engine.Submit(ctx, "u1", SubmitRequest{
		PlanID: p.ID, TaskID: p.Tasks[0].ID, TaskName: "run", Date: "2024-01-02", Review: 4, Summary: "done",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.CoinsEarned)
	assert.Equal(t, 10, res.BonusCoins, "single task with summary completes the day")
	assert.Equal(t, 15, res.Balance)
	assert.Equal(t, 15, f.coins(t))
	assert.Empty(t, res.SubscriptionMessage)

	remarks, err := f.store.RemarksByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, remarks, 1)
	assert.Equal(t, p.Tasks[0].ID, remarks[0].TaskID)
	assert.Equal(t, 5, remarks[0].CoinsEarned)

	inbox, err := f.store.ListNotifications(ctx, "u1", false, 10)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)
	f.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestEngine_Idempotent(t *testing.T) {
	f, p := setup(t, 0, task("run", 5, "2024-01-02"))
	ctx := context.Background()
	req := SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-02"}

	_, err := f.engine.Submit(ctx, "u1", req)
	require.NoError(t, err)
	_, err = f.engine.Submit(ctx, "u1", req)
	assert.ErrorIs(t, err, apperr.ErrDuplicateRemark)
	assert.Equal(t, 5, f.coins(t))
}

func TestEngine_DayBonusGrantedOnce(t *testing.T) {
	f, p := setup(t, 0,
		task("a", 1, "2024-01-02"),
		task("b", 1, "2024-01-02"),
		task("c", 1, "2024-01-02"),
	)
	ctx := context.Background()

	submit := func(i int, summary string) *Result {
		res, err := f.engine.Submit(ctx, "u1", SubmitRequest{
			PlanID: p.ID, TaskID: p.Tasks[i].ID, Date: "2024-01-02", Summary: summary,
		})
		require.NoError(t, err)
		return res
	}
	assert.Zero(t, submit(0, "").BonusCoins)
	assert.Zero(t, submit(1, "felt good").BonusCoins)
	res := submit(2, "")
	assert.Equal(t, 10, res.BonusCoins)
	assert.Equal(t, 13, f.coins(t))
}

func TestEngine_NoBonusWithoutSummary(t *testing.T) {
	f, p := setup(t, 0, task("a", 1, "2024-01-02"), task("b", 1, "2024-01-02"))
	ctx := context.Background()
	for _, tk := range p.Tasks {
		res, err := f.engine.Submit(ctx, "u1", SubmitRequest{PlanID: p.ID, TaskID: tk.ID, Date: "2024-01-02"})
		require.NoError(t, err)
		assert.Zero(t, res.BonusCoins)
	}
	assert.Equal(t, 2, f.coins(t))
}

func TestEngine_SubscriptionConversion(t *testing.T) {
	tests := []struct {
		name       string
		tier       string
		end        *time.Time
		wantTier   string
		wantPrev   string
		wantEndDay string
	}{
		{
			name:       "base tier upgraded",
			tier:       "Regular",
			wantTier:   "Custom",
			wantPrev:   "Regular",
			wantEndDay: "2024-02-02",
		},
		{
			name:       "active end extended",
			tier:       "Custom",
			end:        timePtr(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
			wantTier:   "Custom",
			wantEndDay: "2024-04-10",
		},
		{
			name:       "higher paid tier kept",
			tier:       "Manage",
			end:        timePtr(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)),
			wantTier:   "Manage",
			wantEndDay: "2024-02-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, p := setup(t, 95, task("run", 10, "2024-01-02"), task("other", 1, "2024-01-02"))
			ctx := context.Background()
			u, err := f.store.GetUser(ctx, "u1")
			require.NoError(t, err)
			u.Tier = tt.tier
			u.SubscriptionEndDate = tt.end
			require.NoError(t, f.store.UpdateUserBalance(ctx, u))

			res, err := f.engine.Submit(ctx, "u1", SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-02"})
			require.NoError(t, err)
			assert.Equal(t, 1, res.MonthsEarned)
			assert.Equal(t, 5, res.Balance)
			assert.NotEmpty(t, res.SubscriptionMessage)

			u, err = f.store.GetUser(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 5, u.Coins)
			assert.Equal(t, tt.wantTier, u.Tier)
			assert.Equal(t, tt.wantPrev, u.PreviousTier)
			require.NotNil(t, u.SubscriptionEndDate)
			assert.Equal(t, tt.wantEndDay, u.SubscriptionEndDate.Format("2006-01-02"))
		})
	}
}

func TestEngine_MultipleMonths(t *testing.T) {
	f, p := setup(t, 150, task("run", 60, "2024-01-02"), task("other", 1, "2024-01-02"))
	res, err := f.engine.Submit(context.Background(), "u1", SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-02"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.MonthsEarned)
	assert.Equal(t, 10, res.Balance)
}

func TestEngine_PastRemarkFee(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		wantErr   error
		wantCoins int
	}{
		{name: "fee charged", start: 10, wantCoins: 7},
		{name: "not enough coins", start: 0, wantErr: apperr.ErrInsufficientCoins},
		{name: "exact", start: 3, wantCoins: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, p := setup(t, tt.start, task("run", 2, "2024-01-01"), task("other", 1, "2024-01-01"))
			f.clk.Advance(72 * time.Hour)

			res, err := f.engine.Submit(context.Background(), "u1", SubmitRequest{
				PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-01", IsPaidForPastRemark: true,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.start, f.coins(t), "nothing written")
				remarks, rerr := f.store.RemarksByUser(context.Background(), "u1")
				require.NoError(t, rerr)
				assert.Empty(t, remarks)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5, res.FeeCoins)
			assert.Equal(t, tt.wantCoins, f.coins(t))
		})
	}
}

func TestEngine_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		uid     string
		prepare func(f *fixture, p *models.Plan)
		req     func(p *models.Plan) SubmitRequest
		wantErr error
	}{
		{
			name:    "unknown user",
			uid:     "ghost",
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-02"} },
			wantErr: apperr.ErrUserNotFound,
		},
		{
			name:    "unknown plan",
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: 999, TaskID: p.Tasks[0].ID, Date: "2024-01-02"} },
			wantErr: apperr.ErrTaskNotInPlan,
		},
		{
			name:    "task of another plan",
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: 999, Date: "2024-01-02"} },
			wantErr: apperr.ErrTaskNotInPlan,
		},
		{
			name: "plan owned by someone else",
			uid:  "u2",
			prepare: func(f *fixture, _ *models.Plan) {
				_, err := f.store.CreateUser(context.Background(), &models.User{UID: "u2", Email: "u2@example.com", Tier: "Regular"})
				require.NoError(t, err)
			},
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-02"} },
			wantErr: apperr.ErrTaskNotInPlan,
		},
		{
			name: "paused plan",
			prepare: func(f *fixture, p *models.Plan) {
				p.Status = models.PlanPaused
				require.NoError(t, f.store.UpdatePlanStatus(context.Background(), p))
			},
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-02"} },
			wantErr: apperr.ErrPlanNotActive,
		},
		{
			name:    "not scheduled",
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-05"} },
			wantErr: apperr.ErrScheduleNotFound,
		},
		{
			name:    "future date",
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-03"} },
			wantErr: apperr.ErrRemarkTooEarly,
		},
		{
			name:    "malformed date",
			req:     func(p *models.Plan) SubmitRequest { return SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "02.01.2024"} },
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, p := setup(t, 0, task("run", 5, "2024-01-02", "2024-01-03"))
			if tt.prepare != nil {
				tt.prepare(f, p)
			}
			uid := tt.uid
			if uid == "" {
				uid = "u1"
			}
			_, err := f.engine.Submit(context.Background(), uid, tt.req(p))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.coins(t))
		})
	}
}

func TestEngine_RemarkOnScheduledDayAfterwards(t *testing.T) {
	f, p := setup(t, 0, task("run", 5, "2024-01-03"))
	ctx := context.Background()
	req := SubmitRequest{PlanID: p.ID, TaskID: p.Tasks[0].ID, Date: "2024-01-03"}

	_, err := f.engine.Submit(ctx, "u1", req)
	assert.ErrorIs(t, err, apperr.ErrRemarkTooEarly)

	f.clk.Advance(24 * time.Hour)
	_, err = f.engine.Submit(ctx, "u1", req)
	require.NoError(t, err)
}

func TestEngine_ConcurrentSubmissions(t *testing.T) {
	tasks := make([]models.Task, 8)
	for i := range tasks {
		tasks[i] = task(string(rune('a'+i)), 3, "2024-01-02")
	}
	f, p := setup(t, 0, tasks...)
	f.rule.ExtraCoins = 0

	var wg sync.WaitGroup
	for _, tk := range p.Tasks {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.engine.Submit(context.Background(), "u1", SubmitRequest{PlanID: p.ID, TaskID: id, Date: "2024-01-02"})
			assert.NoError(t, err)
		}(tk.ID)
	}
	wg.Wait()
	assert.Equal(t, 24, f.coins(t))
}

func timePtr(t time.Time) *time.Time { return &t }
