// Package list реализует HTTP-обработчик получения входящих уведомлений вызывающего.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// Handler отдаёт входящие уведомления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение входящих.
type Service interface {
	List(ctx context.Context, uid string, unreadOnly bool, limit int) ([]*models.Notification, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Входящие уведомления
// @Tags Notifications
// @Produce  json
// @Security BearerAuth
// @Param unread query bool false "Только непрочитанные"
// @Param limit query int false "Максимум записей"
// @Success 200 {object} response.Response{data=[]models.Notification}
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /notifications [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notification.list"
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

	q := r.URL.Query()
	unread := false
	if raw := q.Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, r, "unread must be a boolean")
			return
		}
		unread = v
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.BadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		limit = v
	}

	items, err := h.service.List(r.Context(), caller.UID, unread, limit)
	if err != nil {
		log.Error("failed to list notifications", sl.Err(err), sl.User(caller.UID))
		response.Fail(w, r, err)
		return
	}
	if items == nil {
		items = []*models.Notification{}
	}
	render.JSON(w, r, response.OKWithData(items))
}
