// Package create реализует HTTP-обработчик создания плана.
//
// Администратор создаёт шаблон, который пользователи могут подключить к себе;
// обычный пользователь создаёт собственный план и получает бонус за новый план.
package create

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
	"github.com/magabrotheeeer/coin-planner/internal/services/plan"
)

// Handler управляет HTTP-запросами на создание планов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики создания плана.
type Service interface {
	Create(ctx context.Context, caller models.Caller, req plan.CreateRequest) (*models.Plan, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать план
// @Description Создает план с задачами. Для администратора план становится шаблоном.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body plan.CreateRequest true "План и его задачи"
// @Success 201 {object} response.Response{data=models.Plan}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "План уже существует или превышен лимит"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.create"
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

	var req plan.CreateRequest
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

	p, err := h.service.Create(r.Context(), caller, req)
	if err != nil {
		log.Error("failed to create plan", sl.Err(err), sl.User(caller.UID))
		response.Fail(w, r, err)
		return
	}

	log.Info("plan created", slog.Int64("plan_id", p.ID), sl.User(caller.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(p))
}
