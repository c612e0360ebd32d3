package read

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Plan)
	return p, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestReadHandler(t *testing.T) {
	owner := "u-1"
	stranger := "u-2"
	own := &models.Plan{ID: 1, OwnerUID: &owner, OwnerRole: models.RoleUser, Name: "Mine"}
	foreign := &models.Plan{ID: 2, OwnerUID: &stranger, OwnerRole: models.RoleUser, Name: "Theirs"}
	template := &models.Plan{ID: 3, OwnerRole: models.RoleAdmin, Name: "Template"}

	tests := []struct {
		name           string
		id             string
		caller         models.Caller
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "свой план",
			id:     "1",
			caller: models.Caller{UID: owner, Role: models.RoleUser},
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(1)).Return(own, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"name":"Mine"`,
		},
		{
			name:   "шаблон администратора доступен всем",
			id:     "3",
			caller: models.Caller{UID: owner, Role: models.RoleUser},
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(3)).Return(template, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"name":"Template"`,
		},
		{
			name:   "чужой план скрыт",
			id:     "2",
			caller: models.Caller{UID: owner, Role: models.RoleUser},
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(2)).Return(foreign, nil)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"plan_not_found"`,
		},
		{
			name:   "администратор видит чужой план",
			id:     "2",
			caller: models.Caller{UID: "a-1", Role: models.RoleAdmin},
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(2)).Return(foreign, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"name":"Theirs"`,
		},
		{
			name:   "план не найден",
			id:     "9",
			caller: models.Caller{UID: owner, Role: models.RoleUser},
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(9)).Return(nil, apperr.ErrPlanNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"plan_not_found"`,
		},
		{
			name:           "некорректный id в url",
			id:             "x",
			caller:         models.Caller{UID: owner, Role: models.RoleUser},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode id from url`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodGet, "/plans/"+tt.id, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := context.WithValue(middlewarectx.WithCaller(req.Context(), tt.caller), chi.RouteCtxKey, rctx)
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
