// Package leadpilot собирает ядро сервиса: хранилище, кэш, брокер событий,
// клиентов моста и источника лидов, доменные сервисы и HTTP-сервер.
package leadpilot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/leadpilot/leadpilot/internal/bridge"
	"github.com/leadpilot/leadpilot/internal/cache"
	"github.com/leadpilot/leadpilot/internal/config"
	"github.com/leadpilot/leadpilot/internal/leadsource"
	"github.com/leadpilot/leadpilot/internal/lib/jwt"
	"github.com/leadpilot/leadpilot/internal/migrations"
	"github.com/leadpilot/leadpilot/internal/rabbitmq"
	authservice "github.com/leadpilot/leadpilot/internal/services/auth"
	channelservice "github.com/leadpilot/leadpilot/internal/services/channel"
	"github.com/leadpilot/leadpilot/internal/services/entitlement"
	leadservice "github.com/leadpilot/leadpilot/internal/services/lead"
	syncservice "github.com/leadpilot/leadpilot/internal/services/sync"
	"github.com/leadpilot/leadpilot/internal/services/usage"
	"github.com/leadpilot/leadpilot/internal/storage/repository"
)

// App хранит собранные зависимости и HTTP-сервер ядра.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	rabbit *amqp.Connection
}

// New собирает приложение: подключает хранилище, накатывает миграции,
// поднимает кэш и брокер, создает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}
	if err = repository.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitConnection, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetEventQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(rabbitCh)

	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.New(db, maker, logger)

	ledger := usage.NewLedger(db, logger)
	guard := entitlement.NewGuard(db, ledger, cacheRedis, logger)

	bridgeClient := bridge.NewClient(cfg.BridgeBaseURL, cfg.BridgeAPIKey, cfg.BridgeTimeout)
	controller := channelservice.NewController(ctx, db, bridgeClient, publisher, cacheRedis, logger, cfg.PollInterval)

	source := leadsource.NewClient()
	reconciler := syncservice.NewReconciler(source, db, db, guard, publisher, logger, cfg.SyncTimeout)

	leadService := leadservice.New(db, guard, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, authService, guard, controller, reconciler, leadService)

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
		rabbit: rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
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
		if closeErr := a.rabbit.Close(); closeErr != nil {
			a.logger.Error("failed to close rabbitmq connection", slog.Any("error", closeErr))
		}
		a.db.DB.Close()
		return err
	}
}
