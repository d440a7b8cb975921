// Package notifier собирает сервис почтовых уведомлений: подключение
// к хранилищу, брокеру событий и SMTP транспорту.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/leadpilot/leadpilot/internal/config"
	"github.com/leadpilot/leadpilot/internal/lib/smtp"
	"github.com/leadpilot/leadpilot/internal/rabbitmq"
	notifierservice "github.com/leadpilot/leadpilot/internal/services/notifier"
	"github.com/leadpilot/leadpilot/internal/storage/repository"
)

// App хранит зависимости сервиса уведомлений.
type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	notifier *notifierservice.Service
	logger   *slog.Logger
}

// New собирает сервис уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	// миграции накатывает ядро; уведомлениям достаточно готовой схемы
	if err = repository.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitConnection, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg, logger)
	notifier := notifierservice.New(db, transport, logger)

	return &App{
		conn:     conn,
		ch:       ch,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Run подписывается на события отключения канала и работает до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "events.channel.disconnected", a.notifier.SendChannelDisconnected)
	if err != nil {
		a.logger.Error("failed to start channel.disconnected consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
