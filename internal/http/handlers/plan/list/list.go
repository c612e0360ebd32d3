// Package list реализует HTTP-обработчик получения списка планов.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

// Handler отдаёт планы по фильтру.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает получение списка планов.
type Service interface {
	List(ctx context.Context, filter storage.PlanFilter) ([]*models.Plan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список планов
// @Description owner=me возвращает планы вызывающего, role=admin — шаблоны администратора.
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param owner query string false "me"
// @Param role query string false "admin или user"
// @Success 200 {object} response.Response{data=[]models.Plan}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Некорректный фильтр"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"
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

	var filter storage.PlanFilter
	q := r.URL.Query()
	switch owner := q.Get("owner"); owner {
	case "":
	case "me":
		filter.OwnerUID = caller.UID
	default:
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("owner must be \"me\""))
		return
	}
	switch role := q.Get("role"); role {
	case "", models.RoleAdmin, models.RoleUser:
		filter.OwnerRole = role
	default:
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("role must be admin or user"))
		return
	}

	// Чужие планы пользователей видит только администратор.
	if !caller.IsAdmin() && filter.OwnerUID == "" && filter.OwnerRole != models.RoleAdmin {
		filter.OwnerUID = caller.UID
	}

	plans, err := h.service.List(r.Context(), filter)
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if plans == nil {
		plans = []*models.Plan{}
	}
	render.JSON(w, r, response.OKWithData(plans))
}
