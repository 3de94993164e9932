package consumer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/ilindan-dev/windowed-notifier/internal/notifiers"
	"github.com/ilindan-dev/windowed-notifier/internal/service"
	"github.com/ilindan-dev/windowed-notifier/internal/storage/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	// defaultMaxAttempts is the maximum number of send attempts for a notification.
	defaultMaxAttempts = 5
	// defaultWorkerCount is the default number of worker goroutines in the pool.
	defaultWorkerCount = 5
	// defaultDeferralInterval is how long an ineligible notification waits before it is re-checked.
	defaultDeferralInterval = 5 * time.Minute
	// rateLimitDelay is how long a rate limited notification waits before it is tried again.
	rateLimitDelay = time.Minute
	// staleTolerance absorbs broker timer jitter when matching a message against the stored schedule.
	staleTolerance = 5 * time.Second
)

// NotificationStore is the part of the service the consumer reads and writes notifications through.
type NotificationStore interface {
	GetNotificationByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	UpdateNotification(ctx context.Context, n *model.Notification) error
}

// Dispatcher routes a notification to its channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *model.Notification) error
}

// Consumer listens to a RabbitMQ queue and processes messages using a pool of workers.
type Consumer struct {
	logger     zerolog.Logger
	conn       *amqp.Connection // Raw connection to create channels for each worker.
	store      NotificationStore
	queue      repo.NotificationQueue
	dispatcher Dispatcher
	now        func() time.Time

	workerCount      int
	maxAttempts      int
	deferralInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new instance of Consumer.
func New(
	cfg *config.Config,
	logger *zerolog.Logger,
	conn *amqp.Connection,
	service *service.NotificationService,
	queue repo.NotificationQueue,
	dispatcher *notifiers.Dispatcher,
) *Consumer {
	c := newConsumer(logger, service, queue, dispatcher)
	c.conn = conn
	if cfg.Notifiers.Workers > 0 {
		c.workerCount = cfg.Notifiers.Workers
	}
	if cfg.Notifiers.MaxAttempts > 0 {
		c.maxAttempts = cfg.Notifiers.MaxAttempts
	}
	if cfg.Notifiers.DeferralInterval > 0 {
		c.deferralInterval = cfg.Notifiers.DeferralInterval
	}
	return c
}

func newConsumer(logger *zerolog.Logger, store NotificationStore, queue repo.NotificationQueue, dispatcher Dispatcher) *Consumer {
	return &Consumer{
		logger:           logger.With().Str("component", "consumer").Logger(),
		store:            store,
		queue:            queue,
		dispatcher:       dispatcher,
		now:              time.Now,
		workerCount:      defaultWorkerCount,
		maxAttempts:      defaultMaxAttempts,
		deferralInterval: defaultDeferralInterval,
	}
}

// Start launches the worker pool in the background. It returns immediately.
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.logger.Info().Int("count", c.workerCount).Msg("Starting worker pool")
	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			c.runWorker(ctx, workerID)
		}(i + 1)
	}
}

// Stop cancels the workers and waits for in-flight messages until ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info().Msg("Consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer: workers did not stop in time: %w", ctx.Err())
	}
}

// runWorker contains the main logic for a single worker goroutine.
func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	logger := c.logger.With().Int("worker_id", workerID).Logger()
	logger.Info().Msg("Worker started")

	ch, err := c.conn.Channel()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open channel for worker")
		return
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error().Err(err).Msg("Failed to set QoS")
		return
	}

	msgs, err := ch.Consume(
		rabbitmq.NotificationsQueue,
		fmt.Sprintf("worker-%d", workerID), // A unique consumer tag.
		false,                              // autoAck: false. We will manually acknowledge messages.
		false,                              // exclusive
		false,                              // noLocal
		false,                              // noWait
		nil,                                // args
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register a consumer")
		return
	}

	logger.Info().Msg("Worker is waiting for messages")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Worker stopping due to context cancellation")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Warn().Msg("Message channel closed by RabbitMQ, worker stopping")
				return
			}
			c.handleMessage(ctx, msg, logger)
		}
	}
}

// handleMessage processes a single message from the queue.
// The stored notification is authoritative; the message only names it.
func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
	message, err := rabbitmq.DecodeMessage(msg.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode message, rejecting")
		_ = msg.Nack(false, false)
		return
	}

	log := logger.With().Stringer("notification_id", message.ID).Logger()

	latest, err := c.store.GetNotificationByID(ctx, message.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("Notification no longer exists, skipping")
			_ = msg.Ack(false)
			return
		}
		log.Error().Err(err).Msg("Failed to load notification, requeueing")
		_ = msg.Nack(false, true)
		return
	}

	if latest.Status != model.StatusScheduled {
		log.Warn().Str("status", string(latest.Status)).Msg("Notification is no longer scheduled, skipping")
		_ = msg.Ack(false)
		return
	}

	now := c.now().UTC()
	if latest.ScheduledAt.After(now.Add(staleTolerance)) {
		log.Debug().Time("scheduled_at", latest.ScheduledAt).Msg("Message superseded by a later schedule, skipping")
		_ = msg.Ack(false)
		return
	}

	log.Info().Int("attempt", latest.Attempts+1).Str("type", latest.Type).Msg("Processing notification")
	err = c.dispatcher.Dispatch(ctx, latest)

	// Whatever happened on the channel is recorded even when the worker is stopping.
	ctx = context.WithoutCancel(ctx)
	switch {
	case err == nil:
		c.markSent(ctx, latest, now, msg, log)
	case errors.Is(err, notifiers.ErrOutsidePeriod):
		c.deferNotification(ctx, latest, c.deferralInterval, msg, log)
	case errors.Is(err, notifiers.ErrRateLimited):
		c.deferNotification(ctx, latest, rateLimitDelay, msg, log)
	case isPermanent(err):
		c.fail(ctx, latest, err, msg, log)
	default:
		c.handleSendError(ctx, latest, err, msg, log)
	}
}

func (c *Consumer) markSent(ctx context.Context, n *model.Notification, now time.Time, msg amqp.Delivery, log zerolog.Logger) {
	log.Info().Msg("Notification sent successfully")
	n.Status = model.StatusSent
	n.Attempts++
	n.SentAt = &now
	if err := c.store.UpdateNotification(ctx, n); err != nil {
		settleFailedUpdate(msg, err, log, "mark sent")
		return
	}
	_ = msg.Ack(false)
}

// deferNotification parks n without consuming an attempt.
func (c *Consumer) deferNotification(ctx context.Context, n *model.Notification, delay time.Duration, msg amqp.Delivery, log zerolog.Logger) {
	n.ScheduledAt = c.now().UTC().Add(delay)
	if err := c.store.UpdateNotification(ctx, n); err != nil {
		settleFailedUpdate(msg, err, log, "defer")
		return
	}

	// From here a lost publish is recovered by the sweeper once ScheduledAt is overdue.
	if err := c.queue.PublishDeferred(ctx, n, delay); err != nil {
		log.Error().Err(err).Msg("CRITICAL: failed to publish message to deferral queue")
		_ = msg.Nack(false, false)
		return
	}

	log.Info().Dur("delay", delay).Msg("Notification deferred")
	_ = msg.Ack(false)
}

func (c *Consumer) fail(ctx context.Context, n *model.Notification, cause error, msg amqp.Delivery, log zerolog.Logger) {
	log.Error().Err(cause).Int("attempts", n.Attempts).Msg("Notification failed permanently")
	n.Status = model.StatusFailed
	if err := c.store.UpdateNotification(ctx, n); err != nil {
		settleFailedUpdate(msg, err, log, "mark failed")
		return
	}
	_ = msg.Ack(false)
}

// handleSendError encapsulates the logic for processing failed sends.
func (c *Consumer) handleSendError(ctx context.Context, n *model.Notification, sendErr error, msg amqp.Delivery, log zerolog.Logger) {
	n.Attempts++

	if n.Attempts >= c.maxAttempts {
		log.Warn().Int("max_attempts", c.maxAttempts).Msg("Max retries reached")
		c.fail(ctx, n, sendErr, msg, log)
		return
	}

	backoffDuration := calculateExponentialBackoff(n.Attempts)
	log.Warn().
		Err(sendErr).
		Int("attempt", n.Attempts).
		Dur("backoff", backoffDuration).
		Msg("Send failed, scheduling retry")

	n.ScheduledAt = c.now().UTC().Add(backoffDuration)
	if err := c.store.UpdateNotification(ctx, n); err != nil {
		settleFailedUpdate(msg, err, log, "schedule retry")
		return
	}

	if err := c.queue.PublishRetry(ctx, n, backoffDuration); err != nil {
		log.Error().Err(err).Msg("CRITICAL: failed to publish message to retry queue")
		_ = msg.Nack(false, false)
		return
	}

	_ = msg.Ack(false)
}

// settleFailedUpdate acks msg when the notification was cancelled, sent or deleted
// while it was being processed, and requeues it for any other storage error.
func settleFailedUpdate(msg amqp.Delivery, err error, log zerolog.Logger, action string) {
	if errors.Is(err, repo.ErrConflict) || errors.Is(err, repo.ErrNotFound) {
		log.Warn().Err(err).Str("action", action).Msg("Notification changed while processing, dropping message")
		_ = msg.Ack(false)
		return
	}
	log.Error().Err(err).Str("action", action).Msg("CRITICAL: failed to record outcome, requeueing")
	_ = msg.Nack(false, true)
}

// isPermanent reports whether retrying cannot change the outcome of a send.
func isPermanent(err error) bool {
	var (
		tmplErr   *notifiers.TemplateError
		renderErr *notifiers.RenderError
	)
	return errors.Is(err, notifiers.ErrUnknownType) ||
		errors.Is(err, model.ErrInvalidConfiguration) ||
		errors.As(err, &tmplErr) ||
		errors.As(err, &renderErr)
}

// calculateExponentialBackoff implements the exponential backoff strategy.
// Formula: 5s * 2^(attempt)
func calculateExponentialBackoff(attempt int) time.Duration {
	baseDelay := 5.0
	delay := baseDelay * math.Pow(2, float64(attempt))
	return time.Duration(delay) * time.Second
}
