// Package verify реализует HTTP-обработчик подтверждения оплаты тарифа.
//
// Подпись оплаты проверяется до любых изменений. Подтверждённая оплата
// переводит пользователя на тариф и продлевает подписку на оплаченные месяцы;
// повторная отправка той же оплаты отклоняется.
package verify

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
	"github.com/magabrotheeeer/coin-planner/internal/services/payment"
)

// Handler применяет оплату.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает применение оплаты.
type Service interface {
	Purchase(ctx context.Context, uid string, req payment.PurchaseRequest) (*models.User, error)
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
// @Summary Подтвердить оплату тарифа
// @Tags Payments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body payment.PurchaseRequest true "Данные оплаты"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Оплата уже применена"
// @Failure 422 {object} response.ErrorResponse "Подпись не прошла проверку"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"
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

	var req payment.PurchaseRequest
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

	u, err := h.service.Purchase(r.Context(), caller.UID, req)
	if err != nil {
		log.Error("failed to apply payment", sl.Err(err), sl.User(caller.UID), slog.String("order_id", req.OrderID))
		response.Fail(w, r, err)
		return
	}

	log.Info("payment applied", sl.User(caller.UID), slog.String("tier", u.Tier), slog.Int("months", req.Months))
	render.JSON(w, r, response.OKWithData(u))
}
