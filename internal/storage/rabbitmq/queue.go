package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Ensure RabbitMQQueue implements the repository interface at compile time.
var _ repo.NotificationQueue = (*RabbitMQQueue)(nil)

// Constants for our RabbitMQ topology.
// Wait, retry and deferral queues have no consumers; their messages expire
// after a per-message TTL and are dead-lettered to the notifications exchange.
const (
	WaitExchange          = "wait.exchange"
	RetryExchange         = "retry.exchange"
	DeferralExchange      = "deferral.exchange"
	NotificationsExchange = "notifications.exchange"

	NotificationsQueue = "notifications.queue.process"
	WaitQueue          = "wait.queue.delay"
	RetryQueue         = "retry.queue.delay"
	DeferralQueue      = "deferral.queue.delay"

	Direct = "direct"
)

// delayQueues maps each delay exchange to the queue bound behind it.
var delayQueues = []struct {
	exchange string
	queue    string
}{
	{WaitExchange, WaitQueue},
	{RetryExchange, RetryQueue},
	{DeferralExchange, DeferralQueue},
}

// RabbitMQQueue implements the NotificationQueue interface. It acts as a PUBLISHER.
// It uses the low-level amqp091-go library directly for reliability.
type RabbitMQQueue struct {
	ch     *amqp.Channel
	logger zerolog.Logger
}

// NewRabbitMQQueue creates a new instance of the RabbitMQQueue publisher.
// It receives a shared amqp.Connection to create its own channel.
func NewRabbitMQQueue(conn *amqp.Connection, logger *zerolog.Logger) (*RabbitMQQueue, error) {
	channel, err := conn.Channel()
	if err != nil {
		logger.Error().Err(err).Msg("storage: rabbitMQ: New: Failed to open a channel")
		return nil, fmt.Errorf("storage: rabbitMQ: New: Failed to open a channel: %w", err)
	}

	queue := &RabbitMQQueue{
		ch:     channel,
		logger: logger.With().Str("component", "rabbitmq_publisher").Logger(),
	}

	if err = queue.setupTopology(); err != nil {
		queue.logger.Error().Err(err).Msg("storage: rabbitMQ: New: Failed to setup topology")
		return nil, fmt.Errorf("storage: rabbitMQ: New: Failed to setup topology: %w", err)
	}

	return queue, nil
}

// setupTopology declares all necessary exchanges and queues.
func (q *RabbitMQQueue) setupTopology() error {
	q.logger.Info().Msg("setting up rabbitmq topology")

	if err := q.ch.ExchangeDeclare(NotificationsExchange, Direct, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", NotificationsExchange, err)
	}
	if _, err := q.ch.QueueDeclare(NotificationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", NotificationsQueue, err)
	}
	if err := q.ch.QueueBind(NotificationsQueue, "", NotificationsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to exchange %s: %w", NotificationsQueue, NotificationsExchange, err)
	}

	delayArgs := amqp.Table{"x-dead-letter-exchange": NotificationsExchange}
	for _, d := range delayQueues {
		if err := q.ch.ExchangeDeclare(d.exchange, Direct, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", d.exchange, err)
		}
		if _, err := q.ch.QueueDeclare(d.queue, true, false, false, false, delayArgs); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", d.queue, err)
		}
		if err := q.ch.QueueBind(d.queue, "", d.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to exchange %s: %w", d.queue, d.exchange, err)
		}
	}

	q.logger.Info().Msg("rabbitmq topology setup successful")
	return nil
}

// Publish schedules a notification for processing at its ScheduledAt.
// A notification that is already due skips the wait queue.
func (q *RabbitMQQueue) Publish(ctx context.Context, n *model.Notification) error {
	return q.publish(ctx, WaitExchange, n, time.Until(n.ScheduledAt))
}

// PublishNow hands a notification straight to the workers.
func (q *RabbitMQQueue) PublishNow(ctx context.Context, n *model.Notification) error {
	return q.publish(ctx, NotificationsExchange, n, 0)
}

// PublishRetry schedules a notification for a retry attempt.
func (q *RabbitMQQueue) PublishRetry(ctx context.Context, n *model.Notification, retryDelay time.Duration) error {
	return q.publish(ctx, RetryExchange, n, retryDelay)
}

// PublishDeferred parks a notification that is outside its periods until the delay elapses.
func (q *RabbitMQQueue) PublishDeferred(ctx context.Context, n *model.Notification, delay time.Duration) error {
	return q.publish(ctx, DeferralExchange, n, delay)
}

func (q *RabbitMQQueue) publish(ctx context.Context, exchange string, n *model.Notification, delay time.Duration) error {
	exchange = exchangeFor(exchange, delay)
	msg, err := newPublishing(n, delay)
	if err != nil {
		q.logger.Error().Err(err).Stringer("id", n.ID).Msg("failed to encode notification")
		return err
	}

	if err := q.ch.PublishWithContext(ctx, exchange, "", false, false, msg); err != nil {
		q.logger.Error().Err(err).Stringer("id", n.ID).Str("exchange", exchange).Msg("failed to publish notification")
		return fmt.Errorf("rabbitmq: publish to %s: %w", exchange, err)
	}
	q.logger.Debug().Stringer("id", n.ID).Str("exchange", exchange).Dur("delay", delay).Msg("notification published")
	return nil
}

// exchangeFor routes messages that are already due to the notifications exchange.
// Delay queues only expire messages at their head, so a due message published there
// would wait behind every longer delay queued before it.
func exchangeFor(delayExchange string, delay time.Duration) string {
	if delay <= 0 {
		return NotificationsExchange
	}
	return delayExchange
}

// newPublishing builds a persistent message that expires after delay.
// Due messages carry no expiration.
func newPublishing(n *model.Notification, delay time.Duration) (amqp.Publishing, error) {
	body, err := NewMessage(n).Encode()
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    n.ID.String(),
		Type:         n.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return msg, nil
}

// Close gracefully shuts down the channel. The connection is managed by Fx.
func (q *RabbitMQQueue) Close() error {
	if q.ch != nil {
		return q.ch.Close()
	}
	return nil
}
