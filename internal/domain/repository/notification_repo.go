package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
)

// NotificationRepository defines the contract for notification persistence (e.g., a database).
type NotificationRepository interface {
	// Save persists a new notification.
	Save(ctx context.Context, n *model.Notification) (*model.Notification, error)

	// GetByID retrieves a notification by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// Update updates the mutable fields of a notification, primarily its status and attempts count.
	// Only a notification that is still scheduled can be updated; otherwise ErrConflict is returned.
	Update(ctx context.Context, n *model.Notification) error

	// Delete cancels a scheduled notification. ErrConflict is returned if it is no longer scheduled.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListOverdue returns scheduled notifications whose ScheduledAt is before the given instant.
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]*model.Notification, error)
}

// NotificationCache defines the contract for a caching layer.
type NotificationCache interface {
	// Get retrieves an item from the cache.
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// Set adds an item to the cache for a specified duration
	Set(ctx context.Context, n *model.Notification, expiration time.Duration) error

	// Delete removes an item from the cache.
	Delete(ctx context.Context, id uuid.UUID) error
}

// NotificationQueue defines the contract for interacting with a delayed job queue.
// This provides an abstraction over a system like RabbitMQ.
type NotificationQueue interface {
	// Publish schedules a notification for delayed processing.
	Publish(ctx context.Context, n *model.Notification) error

	// PublishNow hands a notification straight to the workers, bypassing every delay queue.
	PublishNow(ctx context.Context, n *model.Notification) error

	// PublishRetry schedules a notification for a retry attempt with a specific delay.
	PublishRetry(ctx context.Context, n *model.Notification, retryDelay time.Duration) error

	// PublishDeferred parks a notification that is outside its periods until the delay elapses.
	PublishDeferred(ctx context.Context, n *model.Notification, delay time.Duration) error
}
