// Package provision реализует HTTP-обработчик заведения пользователя администратором.
//
// В ответе возвращается созданный пользователь и JWT для доступа к API.
package provision

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
	"github.com/magabrotheeeer/coin-planner/internal/services/user"
)

// Handler заводит пользователей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает заведение пользователя и выпуск токена.
type Service interface {
	Provision(ctx context.Context, req user.ProvisionRequest) (*models.User, error)
	IssueToken(u *models.User) (string, error)
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
// @Summary Завести пользователя
// @Tags Users
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body user.ProvisionRequest true "Учётная запись"
// @Success 201 {object} map[string]any "Пользователь и токен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.provision"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req user.ProvisionRequest
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

	u, err := h.service.Provision(r.Context(), req)
	if err != nil {
		log.Error("failed to provision user", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	token, err := h.service.IssueToken(u)
	if err != nil {
		log.Error("failed to issue token", sl.Err(err), sl.User(u.UID))
		response.Fail(w, r, err)
		return
	}

	log.Info("user provisioned", sl.User(u.UID), slog.String("role", u.Role))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user":  u,
		"token": token,
	}))
}
