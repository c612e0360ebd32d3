package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	customjwt "github.com/magabrotheeeer/coin-planner/internal/lib/jwt"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/user"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
	"github.com/magabrotheeeer/coin-planner/internal/storage/memory"
)

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(uid, username, role string) (string, error) {
	args := m.Called(uid, username, role)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(tokenStr string) (*customjwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

// Мок для Repository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, u *models.User) (string, error) {
	args := m.Called(ctx, u)
	return args.String(0), args.Error(1)
}

func (m *UserRepoMock) GetUser(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type staticSettings struct{}

func (staticSettings) Get(context.Context) (*models.Settings, error) {
	s := models.DefaultSettings()
	return &s, nil
}

func TestService_Provision(t *testing.T) {
	store := memory.New()
	clk := &clock.Fixed{T: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := user.New(store, staticSettings{}, customjwt.NewJWTMaker("secret", time.Hour), clk)
	ctx := context.Background()

	tests := []struct {
		name     string
		req      user.ProvisionRequest
		wantRole string
		wantErr  error
	}{
		{name: "default role", req: user.ProvisionRequest{Email: "Alice@Example.com", Username: "alice"}, wantRole: models.RoleUser},
		{name: "admin", req: user.ProvisionRequest{Email: "root@example.com", Username: "root", Role: models.RoleAdmin}, wantRole: models.RoleAdmin},
		{name: "duplicate email", req: user.ProvisionRequest{Email: "alice@example.com", Username: "alice2"}, wantErr: apperr.ErrValidation},
		{name: "bad email", req: user.ProvisionRequest{Email: "nope", Username: "x"}, wantErr: apperr.ErrValidation},
		{name: "bad role", req: user.ProvisionRequest{Email: "x@example.com", Username: "x", Role: "owner"}, wantErr: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := svc.Provision(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, u.UID)
			assert.Equal(t, tt.wantRole, u.Role)
			assert.Equal(t, "Regular", u.Tier)

			got, err := svc.Get(ctx, u.UID)
			require.NoError(t, err)
			assert.Equal(t, u.Email, got.Email)
		})
	}
}

func TestService_Get(t *testing.T) {
	repo := new(UserRepoMock)
	svc := user.New(repo, staticSettings{}, new(JwtMakerMock), &clock.Fixed{})

	repo.On("GetUser", mock.Anything, "missing").Return(nil, storage.ErrNotFound).Once()
	repo.On("GetUser", mock.Anything, "broken").Return(nil, errors.New("db down")).Once()

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	_, err = svc.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
	repo.AssertExpectations(t)
}

func TestService_IssueToken(t *testing.T) {
	maker := new(JwtMakerMock)
	svc := user.New(new(UserRepoMock), staticSettings{}, maker, &clock.Fixed{})
	u := &models.User{UID: "u1", Username: "alice", Role: models.RoleUser}

	maker.On("GenerateToken", "u1", "alice", models.RoleUser).Return("token", nil).Once()
	token, err := svc.IssueToken(u)
	require.NoError(t, err)
	assert.Equal(t, "token", token)

	maker.On("GenerateToken", "u1", "alice", models.RoleUser).Return("", errors.New("sign failed")).Once()
	_, err = svc.IssueToken(u)
	assert.Error(t, err)
	maker.AssertExpectations(t)
}
