// Package inbox — входящие сообщения пользователя: упорядоченный журнал с
// признаком прочтения у каждой записи и очисткой прочитанного.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

const (
	// DefaultLimit — размер страницы по умолчанию.
	DefaultLimit = 50
	// MaxLimit — наибольший размер страницы.
	MaxLimit = 200
)

// Service читает и очищает входящие.
type Service struct {
	repo  storage.Notifications
	clock clock.Clock
	log   *slog.Logger
}

// New создаёт сервис входящих.
func New(repo storage.Notifications, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, clock: clk, log: log}
}

// List возвращает последние сообщения пользователя, новые первыми.
func (s *Service) List(ctx context.Context, uid string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	const op = "inbox.List"
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	res, err := s.repo.ListNotifications(ctx, uid, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// MarkRead отмечает прочитанными сообщения ids; пустой список — все непрочитанные.
func (s *Service) MarkRead(ctx context.Context, uid string, ids []int64) (int64, error) {
	const op = "inbox.MarkRead"
	n, err := s.repo.MarkNotificationsRead(ctx, uid, ids)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Prune удаляет прочитанные сообщения старше retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	const op = "inbox.Prune"
	n, err := s.repo.PruneNotifications(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("inbox pruned", slog.Int64("deleted", n))
	return n, nil
}
