// Package submit реализует HTTP-обработчик отметки о выполнении задачи.
//
// Отметка начисляет монеты за задачу, бонус за полностью отмеченный день,
// списывает плату за отметку задним числом и обменивает накопленные монеты
// на месяцы подписки. Все изменения применяются атомарно.
package submit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/services/accrual"
)

// Handler принимает отметки пользователя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает начисление за отметку.
type Service interface {
	Submit(ctx context.Context, uid string, req accrual.SubmitRequest) (*accrual.Result, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отметить выполнение задачи
// @Description Начисляет монеты за задачу и возвращает итог начисления и баланс.
// @Tags Remarks
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body accrual.SubmitRequest true "Отметка"
// @Success 201 {object} response.Response{data=accrual.Result}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Повторная отметка, план не активен или не хватает монет"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /remarks [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.remark.submit"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.CallerFrom(r.Context())
	if !ok {
		log.Error("caller not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req accrual.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Validation(w, r, err)
		return
	}

	res, err := h.service.Submit(r.Context(), caller.UID, req)
	if err != nil {
		log.Error("failed to submit remark", sl.Err(err), sl.User(caller.UID),
			slog.Int64("task_id", req.TaskID), slog.String("date", req.Date))
		response.Fail(w, r, err)
		return
	}

	log.Info("remark submitted",
		sl.User(caller.UID),
		slog.Int("coins_earned", res.CoinsEarned),
		slog.Int("balance", res.Balance),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(res))
}
