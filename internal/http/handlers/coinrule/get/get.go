// Package get реализует HTTP-обработчик получения активного правила начисления монет.
package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// Handler отдаёт активное правило.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение правила.
type Service interface {
	Get(ctx context.Context) (*models.CoinRule, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Активное правило начисления
// @Tags CoinRule
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.CoinRule}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Правило ещё не задано"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /coin-rule [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coinrule.get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	rule, err := h.service.Get(r.Context())
	if err != nil {
		log.Error("failed to get coin rule", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if rule == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("coin rule is not configured"))
		return
	}
	render.JSON(w, r, response.OKWithData(rule))
}
