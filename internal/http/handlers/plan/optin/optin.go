// Package optin реализует HTTP-обработчик подключения пользователя к чужому плану.
package optin

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
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// Request — тело запроса на подключение.
type Request struct {
	PlanID int64 `json:"plan_id" validate:"required,min=1"`
}

// Handler копирует план в планы вызывающего.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает подключение к плану.
type Service interface {
	OptIn(ctx context.Context, caller models.Caller, sourceID int64) (*models.Plan, error)
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
// @Summary Подключиться к плану
// @Description Копирует задачи плана в новый план вызывающего с расписанием от текущей даты.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body optin.Request true "ID исходного плана"
// @Success 201 {object} response.Response{data=models.Plan}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 409 {object} response.ErrorResponse "Уже подключен или превышен лимит"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/opt-in [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.optin"
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

	var req Request
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

	p, err := h.service.OptIn(r.Context(), caller, req.PlanID)
	if err != nil {
		log.Error("failed to opt in", sl.Err(err), sl.User(caller.UID), slog.Int64("source_id", req.PlanID))
		response.Fail(w, r, err)
		return
	}

	log.Info("opted in", slog.Int64("plan_id", p.ID), sl.User(caller.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(p))
}
