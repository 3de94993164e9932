package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/consumer"
	deliveryHTTP "github.com/ilindan-dev/windowed-notifier/internal/delivery/http"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/ilindan-dev/windowed-notifier/internal/logger"
	"github.com/ilindan-dev/windowed-notifier/internal/notifiers"
	"github.com/ilindan-dev/windowed-notifier/internal/service"
	"github.com/ilindan-dev/windowed-notifier/internal/storage/postgres"
	"github.com/ilindan-dev/windowed-notifier/internal/storage/rabbitmq"
	"github.com/ilindan-dev/windowed-notifier/internal/storage/redis"
	"github.com/ilindan-dev/windowed-notifier/internal/sweeper"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// CommonModule provides dependencies that are shared between the API and Worker applications.
var CommonModule = fx.Options(
	fx.Provide(
		// Core components
		config.NewConfig,
		logger.NewLogger,

		// Storage Layer - concrete implementations
		postgres.NewPool,
		redis.NewClient,
		rabbitmq.NewConnection,
		redis.NewNotificationCache,
		postgres.NewNotificationRepository,
		fx.Annotate(rabbitmq.NewRabbitMQQueue, fx.As(new(repo.NotificationQueue))),
		newNotificationRepository,

		// Notifiers: the API validates types and configurations against the same registry the worker sends through.
		notifiers.NewRenderer,
		fx.Annotate(notifiers.NewDispatcher, fx.As(fx.Self()), fx.As(new(service.NotifierRegistry))),

		// Service Layer
		service.NewNotificationService,
	),
)

// newNotificationRepository wraps the Postgres repository with the Redis cache.
func newNotificationRepository(
	cfg *config.Config,
	pgRepo *postgres.NotificationRepository,
	cache *redis.NotificationCache,
	logger *zerolog.Logger,
) repo.NotificationRepository {
	return redis.NewCachedNotificationRepository(cfg, pgRepo, cache, logger)
}

// APIModule defines the Fx module for the HTTP API application.
var APIModule = fx.Options(
	CommonModule, // Include all shared components
	fx.Provide(
		// API-specific components
		deliveryHTTP.NewHandlers,
		deliveryHTTP.NewServer,
	),

	fx.Invoke(func(server *deliveryHTTP.Server, lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zerolog.Logger) {
		lc.Append(serverHook(server, shutdowner, logger))
	}),
)

// WorkerModule defines the Fx module for the background worker application.
var WorkerModule = fx.Options(
	CommonModule, // Include all shared components
	fx.Provide(
		// Worker-specific components
		consumer.New,
		sweeper.New,
		deliveryHTTP.NewMetricsServer,
	),
	fx.Invoke(func(c *consumer.Consumer, lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				c.Start()
				return nil
			},
			OnStop: c.Stop,
		})
	}),
	fx.Invoke(func(cfg *config.Config, s *sweeper.Sweeper, lc fx.Lifecycle) {
		if !cfg.Sweeper.Enabled {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
	fx.Invoke(func(server *deliveryHTTP.Server, lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zerolog.Logger) {
		if server == nil {
			return
		}
		lc.Append(serverHook(server, shutdowner, logger))
	}),
)

// serverHook runs server in the background and shuts the application down if it stops unexpectedly.
func serverHook(server *deliveryHTTP.Server, shutdowner fx.Shutdowner, logger *zerolog.Logger) fx.Hook {
	return fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", server.Addr).Msg("http server listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Str("addr", server.Addr).Msg("http server failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	}
}
