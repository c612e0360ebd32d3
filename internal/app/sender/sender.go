// Package sender собирает процесс доставки уведомлений: читает очередь
// notification.inbox и отправляет письма через SMTP.
package sender

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/coin-planner/internal/app/bootstrap"
	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/lib/smtp"
	"github.com/magabrotheeeer/coin-planner/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/coin-planner/internal/services/sender"
)

// App — процесс доставки уведомлений.
type App struct {
	deps          *bootstrap.Deps
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и настраивает SMTP-транспорт.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("sender: rabbitmq.url is required")
	}
	// Хранилище отправителю не нужно: всё необходимое есть в сообщении.
	deps, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{NoStorage: true, Broker: true})
	if err != nil {
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		deps:          deps,
		senderService: senderservice.New(transport, logger),
		logger:        logger,
	}, nil
}

// Run потребляет очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.deps.Close()

	handler := func(body []byte) error {
		return a.senderService.HandleMessage(ctx, body)
	}
	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.deps.Channel(), rabbitmq.InboxQueue, handler); err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.InboxQueue), slog.Any("err", err))
		return err
	}
	a.logger.Info("sender started", slog.String("queue", rabbitmq.InboxQueue))

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")
	return nil
}
