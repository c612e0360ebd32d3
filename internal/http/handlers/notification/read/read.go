// Package read реализует HTTP-обработчик пометки уведомлений прочитанными.
package read

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
)

// Request — уведомления, которые нужно пометить прочитанными.
type Request struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,min=1"`
}

// Handler помечает уведомления прочитанными.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает пометку уведомлений.
type Service interface {
	MarkRead(ctx context.Context, uid string, ids []int64) (int64, error)
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
// @Summary Пометить уведомления прочитанными
// @Description Чужие и уже прочитанные уведомления пропускаются.
// @Tags Notifications
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body read.Request true "ID уведомлений"
// @Success 200 {object} map[string]any "Число помеченных уведомлений"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /notifications/read [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notification.read"
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

	n, err := h.service.MarkRead(r.Context(), caller.UID, req.IDs)
	if err != nil {
		log.Error("failed to mark notifications read", sl.Err(err), sl.User(caller.UID))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"marked": n,
	}))
}
