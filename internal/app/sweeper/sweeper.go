// Package sweeper собирает приложение периодического обхода записей
// о праве доступа.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/config"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/rabbitmq"
	sweeperservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/sweeper"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"
)

// App — приложение обходчика.
type App struct {
	sweeperService *sweeperservice.Service
	interval       time.Duration
	conn           *amqp.Connection
	ch             *amqp.Channel
	db             *repository.Storage
	logger         *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		if err := db.CheckDatabaseReady(ctx); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения обходчика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	sweeperService := sweeperservice.New(db, rabbitmq.NewPublisher(ch), logger)

	return &App{
		sweeperService: sweeperService,
		interval:       cfg.SweepInterval,
		conn:           conn,
		ch:             ch,
		db:             db,
		logger:         logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run выполняет проход сразу при старте и далее по расписанию
// до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	a.sweep(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.sweep(ctx)
		case <-ctx.Done():
			a.logger.Info("shutting down sweeper service")
			closeResources(a.ch, a.conn, a.logger)
			_ = a.db.DB.Close()
			return nil
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	result, err := a.sweeperService.Sweep(ctx)
	if err != nil {
		a.logger.Error("sweep failed", sl.Err(err))
		return
	}
	a.logger.Info("sweep completed",
		slog.Int("expired", result.Expired),
		slog.Int("warned", result.Warned))
}
