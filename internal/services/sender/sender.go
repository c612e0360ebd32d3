// Package sender доставляет уведомления пользователей по электронной почте.
// Сообщения приходят из очереди notification.inbox.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/lib/smtp"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/rabbitmq"
)

const subject = "Coin Planner notification"

// Service отправляет письма.
type Service struct {
	transport smtp.Dialer
	log       *slog.Logger
}

// New создаёт сервис отправки писем.
func New(transport smtp.Dialer, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// HandleMessage разбирает сообщение из очереди и отправляет письмо.
// Сообщение без адреса пропускается без ошибки.
func (s *Service) HandleMessage(_ context.Context, body []byte) error {
	const op = "sender.HandleMessage"
	var msg models.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w: %w", op, rabbitmq.ErrMalformed, err)
	}
	if msg.Email == "" {
		s.log.Warn("notification without email skipped", slog.String("username", msg.Username))
		return nil
	}
	return s.sendEmail([]string{msg.Email}, subject, Render(msg))
}

// Render возвращает текст письма.
func Render(msg models.NotificationMessage) string {
	name := msg.Username
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello, %s!\n\n%s\n\nYou can find all messages in your planner inbox.", name, msg.Message)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err := wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err := client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
