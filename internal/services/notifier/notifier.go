// Package notifier передаёт уведомления пользователей во внешнюю доставку через RabbitMQ.
// Доставка best effort: ошибки публикации логируются и не возвращаются вызывающему.
package notifier

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/rabbitmq"
)

// Notifier публикует сообщения в обменник уведомлений.
type Notifier struct {
	ch  rabbitmq.Publisher
	log *slog.Logger
}

// New создаёт Notifier. При ch == nil уведомления только логируются.
func New(ch rabbitmq.Publisher, log *slog.Logger) *Notifier {
	return &Notifier{ch: ch, log: log}
}

// Notify отправляет сообщение пользователю.
func (n *Notifier) Notify(_ context.Context, user *models.User, message string) {
	if n == nil || user == nil {
		return
	}
	if n.ch == nil {
		n.log.Debug("notification delivery disabled", sl.User(user.UID))
		return
	}
	msg := models.NotificationMessage{
		Email:    user.Email,
		Username: user.Username,
		Message:  message,
	}
	if err := rabbitmq.PublishMessage(n.ch, rabbitmq.NotificationsExchange, rabbitmq.InboxRoutingKey, msg); err != nil {
		n.log.Warn("failed to publish notification", sl.User(user.UID), sl.Err(err))
	}
}
