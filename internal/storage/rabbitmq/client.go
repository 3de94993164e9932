package rabbitmq

import (
	"context"
	"fmt"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// NewConnection creates and returns a raw amqp.Connection.
// This single connection will be shared across the application (producer and consumer).
func NewConnection(lc fx.Lifecycle, cfg *config.Config, logger *zerolog.Logger) (*amqp.Connection, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: failed to connect: %w", err)
	}
	logger.Info().Msg("rabbitmq connection established")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if conn.IsClosed() {
				return nil
			}
			return conn.Close()
		},
	})
	return conn, nil
}
