// Package user выдаёт учётные записи пользователей планировщика и токены доступа к API.
// Пароли и вход не поддерживаются: пользователя заводит администратор.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/jwt"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

// Repository описывает контракт для работы с пользователями в базе данных.
type Repository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user *models.User) (string, error)
	// GetUser возвращает пользователя или storage.ErrNotFound.
	GetUser(ctx context.Context, uid string) (*models.User, error)
}

// SettingsProvider возвращает активные настройки.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// ProvisionRequest — новая учётная запись.
type ProvisionRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin user"`
}

// Service отвечает за учётные записи и выпуск JWT.
type Service struct {
	users    Repository
	settings SettingsProvider
	jwtMaker jwt.Maker
	clock    clock.Clock
}

// New создаёт новый экземпляр Service.
func New(users Repository, settings SettingsProvider, jwtMaker jwt.Maker, clk clock.Clock) *Service {
	return &Service{users: users, settings: settings, jwtMaker: jwtMaker, clock: clk}
}

// Provision создаёт пользователя на базовом тарифе с ролью "user" по умолчанию.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*models.User, error) {
	const op = "user.Provision"
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("email is invalid")
	}
	if strings.TrimSpace(req.Username) == "" {
		return nil, apperr.Validation("username is required")
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperr.Validation("role must be admin or user")
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := &models.User{
		Email:     email,
		Username:  strings.TrimSpace(req.Username),
		Role:      role,
		Tier:      settings.Tiers.Base,
		CreatedAt: s.clock.Now(),
	}
	uid, err := s.users.CreateUser(ctx, u)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, apperr.ErrValidation.WithMessage("user with this email already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.UID = uid
	return u, nil
}

// Get возвращает пользователя по UID.
func (s *Service) Get(ctx context.Context, uid string) (*models.User, error) {
	const op = "user.Get"
	u, err := s.users.GetUser(ctx, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// IssueToken выпускает JWT для пользователя.
func (s *Service) IssueToken(u *models.User) (string, error) {
	const op = "user.IssueToken"
	token, err := s.jwtMaker.GenerateToken(u.UID, u.Username, u.Role)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}
