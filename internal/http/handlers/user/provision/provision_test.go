package provision

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/user"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Provision(ctx context.Context, req user.ProvisionRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockService) IssueToken(u *models.User) (string, error) {
	args := m.Called(u)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestProvisionHandler(t *testing.T) {
	created := &models.User{UID: "u-1", Email: "alice@example.com", Username: "alice", Role: models.RoleUser, Tier: "Regular"}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   []string
	}{
		{
			name: "пользователь заведён",
			body: `{"email":"alice@example.com","username":"alice"}`,
			setupMock: func(m *MockService) {
				m.On("Provision", mock.Anything, user.ProvisionRequest{Email: "alice@example.com", Username: "alice"}).
					Return(created, nil)
				m.On("IssueToken", created).Return("jwt-token", nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   []string{`"token":"jwt-token"`, `"uid":"u-1"`},
		},
		{
			name:           "неверный email",
			body:           `{"email":"alice","username":"alice"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   []string{`field Email must be a valid email`},
		},
		{
			name:           "неизвестная роль",
			body:           `{"email":"alice@example.com","username":"alice","role":"root"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   []string{`field Role must be one of [admin user]`},
		},
		{
			name: "email занят",
			body: `{"email":"alice@example.com","username":"alice"}`,
			setupMock: func(m *MockService) {
				m.On("Provision", mock.Anything, mock.Anything).
					Return(nil, apperr.Validation("user with this email already exists"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   []string{`user with this email already exists`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			for _, s := range tt.expectedBody {
				assert.Contains(t, w.Body.String(), s)
			}
			mockService.AssertExpectations(t)
		})
	}
}
