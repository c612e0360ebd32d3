// Package upsert реализует HTTP-обработчик создания и изменения правила начисления монет.
//
// Доступен только администратору. При изменении порога обмена пользователи
// платных тарифов получают уведомление.
package upsert

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coin-planner/internal/http/response"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/coinrule"
)

// Handler сохраняет правило.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает сохранение правила.
type Service interface {
	Upsert(ctx context.Context, req coinrule.UpsertRequest) (*models.CoinRule, error)
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
// @Summary Задать правило начисления
// @Description Незаданные поля сохраняют текущее значение.
// @Tags CoinRule
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body coinrule.UpsertRequest true "Значения правила"
// @Success 200 {object} response.Response{data=models.CoinRule}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /coin-rule [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coinrule.upsert"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req coinrule.UpsertRequest
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

	rule, err := h.service.Upsert(r.Context(), req)
	if err != nil {
		log.Error("failed to upsert coin rule", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("coin rule saved", slog.Int("free_subs_coins", rule.FreeSubsCoins))
	render.JSON(w, r, response.OKWithData(rule))
}
