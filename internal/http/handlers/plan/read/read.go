// Package read реализует HTTP-обработчик получения плана по ID.
package read

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// Handler отдаёт план по ID.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает получение плана.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Plan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить план
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID плана"
// @Success 200 {object} response.Response{data=models.Plan}
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.read"
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

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		response.BadRequest(w, r, "failed to decode id from url")
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		log.Error("failed to get plan", sl.Err(err), slog.Int64("plan_id", id))
		response.Fail(w, r, err)
		return
	}
	if !p.IsTemplate() && !p.IsOwnedBy(caller.UID) && !caller.IsAdmin() {
		log.Warn("plan of another user requested", slog.Int64("plan_id", id), sl.User(caller.UID))
		response.Fail(w, r, apperr.ErrPlanNotFound)
		return
	}
	render.JSON(w, r, response.OKWithData(p))
}
