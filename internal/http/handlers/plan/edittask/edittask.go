// Package edittask реализует HTTP-обработчик изменения задачи плана.
//
// Поля, отсутствующие в запросе, не меняются. Изменение смещений или времени
// пересчитывает расписание задачи.
package edittask

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/plan"
)

// Handler изменяет задачу плана.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает изменение задачи.
type Service interface {
	EditTask(ctx context.Context, caller models.Caller, planID, taskID int64, req plan.EditTaskRequest) (*models.Plan, error)
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
// @Summary Изменить задачу плана
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID плана"
// @Param taskId path int true "ID задачи"
// @Param request body plan.EditTaskRequest true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.Plan}
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Шаблон может менять только администратор"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 409 {object} response.ErrorResponse "Задача не относится к плану"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/{id}/tasks/{taskId} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.edittask"
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

	planID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		response.BadRequest(w, r, "failed to decode id from url")
		return
	}
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskId"), 10, 64)
	if err != nil {
		log.Error("failed to decode task id from url", sl.Err(err))
		response.BadRequest(w, r, "failed to decode task id from url")
		return
	}

	var req plan.EditTaskRequest
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

	p, err := h.service.EditTask(r.Context(), caller, planID, taskID, req)
	if err != nil {
		log.Error("failed to edit task", sl.Err(err), slog.Int64("plan_id", planID), slog.Int64("task_id", taskID))
		response.Fail(w, r, err)
		return
	}

	log.Info("task edited", slog.Int64("plan_id", planID), slog.Int64("task_id", taskID))
	render.JSON(w, r, response.OKWithData(p))
}
