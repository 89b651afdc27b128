// Package entitlementreconciler собирает HTTP-приложение: хранилище,
// кэш переопределений, брокер сообщений, клиенты внешних провайдеров,
// сервисы и маршруты.
package entitlementreconciler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/authprovider"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/cache"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/config"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/migrations"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/paymentprovider"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/rabbitmq"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"

	accessservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/access"
	adminservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/admin"
	checkoutservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/checkout"
	discountservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/discount"
	reconcilerservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/reconciler"
)

// App — HTTP-приложение сервиса прав доступа.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает приложение и все его зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	providerClient := paymentprovider.NewClient(cfg.PaymentAccountID, cfg.PaymentSecretKey, cfg.PaymentAPIURL)
	authClient := authprovider.NewClient(cfg.AuthProviderURL, cfg.AuthProviderAPIKey)
	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	checkoutService := checkoutservice.New(providerClient, cfg.PriceTable, cfg.AppID,
		cfg.SuccessURL, cfg.CancelURL, cfg.PassDurationDays, logger)
	reconcilerService := reconcilerservice.New(db, db, publisher, logger)
	adminService := adminservice.New(authClient, db, db, publisher, logger)
	accessService := accessservice.New(db, cacheRedis, logger)
	discountService := discountservice.New(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, maker, checkoutService, reconcilerService,
		adminService, accessService, discountService, db, cfg.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		_ = a.db.DB.Close()
		return err
	}
}
