// Package list реализует HTTP-обработчик получения отметок вызывающего.
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

// Handler отдаёт отметки вызывающего.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение отметок.
type Service interface {
	ByUser(ctx context.Context, uid string) ([]*models.Remark, error)
	ByUserAndPlan(ctx context.Context, uid string, planID int64) ([]*models.Remark, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список отметок
// @Tags Remarks
// @Produce  json
// @Security BearerAuth
// @Param planId query int false "ID плана"
// @Success 200 {object} response.Response{data=[]models.Remark}
// @Failure 400 {object} response.ErrorResponse "Некорректный planId"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /remarks [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.remark.list"
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

	var (
		remarks []*models.Remark
		err     error
	)
	if raw := r.URL.Query().Get("planId"); raw != "" {
		planID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			log.Error("failed to parse planId", sl.Err(perr))
			response.BadRequest(w, r, "planId must be an integer")
			return
		}
		remarks, err = h.service.ByUserAndPlan(r.Context(), caller.UID, planID)
	} else {
		remarks, err = h.service.ByUser(r.Context(), caller.UID)
	}
	if err != nil {
		log.Error("failed to list remarks", sl.Err(err), sl.User(caller.UID))
		response.Fail(w, r, err)
		return
	}
	if remarks == nil {
		remarks = []*models.Remark{}
	}
	render.JSON(w, r, response.OKWithData(remarks))
}
