package submit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/accrual"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Submit(ctx context.Context, uid string, req accrual.SubmitRequest) (*accrual.Result, error) {
	args := m.Called(ctx, uid, req)
	res, _ := args.Get(0).(*accrual.Result)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSubmitHandler(t *testing.T) {
	const body = `{"plan_id":1,"task_id":2,"date":"2024-01-01","review":4,"summary":"done"}`
	want := accrual.SubmitRequest{PlanID: 1, TaskID: 2, Date: "2024-01-01", Review: 4, Summary: "done"}

	tests := []struct {
		name           string
		body           string
		withCaller     bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   []string
	}{
		{
			name:       "начисление с бонусом за день",
			body:       body,
			withCaller: true,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", want).Return(&accrual.Result{
					CoinsEarned: 5,
					BonusCoins:  10,
					Balance:     15,
				}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   []string{`"coins_earned":5`, `"bonus_coins":10`, `"balance":15`},
		},
		{
			name:           "нет задачи",
			body:           `{"plan_id":1,"date":"2024-01-01"}`,
			withCaller:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   []string{`field TaskID is a required field`},
		},
		{
			name:           "отрицательная оценка",
			body:           `{"plan_id":1,"task_id":2,"date":"2024-01-01","review":-1}`,
			withCaller:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   []string{`field Review must be at least 0`},
		},
		{
			name:           "отсутствует авторизация",
			body:           body,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   []string{`"error":"unauthorized"`},
		},
		{
			name:       "повторная отметка",
			body:       body,
			withCaller: true,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", want).Return(nil, apperr.ErrDuplicateRemark)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   []string{`"code":"duplicate_remark"`},
		},
		{
			name:       "неверная дата",
			body:       body,
			withCaller: true,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", want).Return(nil, apperr.Validation("date must be YYYY-MM-DD"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   []string{`"error":"date must be YYYY-MM-DD"`},
		},
		{
			name:       "ошибка хранилища",
			body:       body,
			withCaller: true,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", want).Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   []string{`"code":"internal_error"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/remarks", strings.NewReader(tt.body))
			if tt.withCaller {
				req = req.WithContext(middlewarectx.WithCaller(req.Context(), models.Caller{UID: "u-1", Role: models.RoleUser}))
			}
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
