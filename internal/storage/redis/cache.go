package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/ilindan-dev/windowed-notifier/pkg/keybuilder"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Ensure NotificationCache implements the interface
var _ repo.NotificationCache = (*NotificationCache)(nil)

// cachedNotification is the JSON document stored under a notification key.
// Periods go through their own codec, so a corrupted entry fails validation on read.
type cachedNotification struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
	Periods       []model.Period  `json:"periods,omitempty"`
	Parameters    map[string]any  `json:"parameters,omitempty"`
	Status        model.Status    `json:"status"`
	Attempts      int             `json:"attempts"`
	AuthorID      *string         `json:"authorId,omitempty"`
	ScheduledAt   time.Time       `json:"scheduledAt"`
	SentAt        *time.Time      `json:"sentAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toCached(n *model.Notification) cachedNotification {
	return cachedNotification{
		ID:            n.ID,
		Type:          n.Type,
		Configuration: n.Configuration,
		Periods:       n.Periods,
		Parameters:    n.Parameters,
		Status:        n.Status,
		Attempts:      n.Attempts,
		AuthorID:      n.AuthorID,
		ScheduledAt:   n.ScheduledAt,
		SentAt:        n.SentAt,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func (c cachedNotification) toModel() *model.Notification {
	return &model.Notification{
		ID:            c.ID,
		Type:          c.Type,
		Configuration: c.Configuration,
		Periods:       c.Periods,
		Parameters:    c.Parameters,
		Status:        c.Status,
		Attempts:      c.Attempts,
		AuthorID:      c.AuthorID,
		ScheduledAt:   c.ScheduledAt,
		SentAt:        c.SentAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// NotificationCache implements the domain.NotificationCache interface
// using the standard go-redis client.
type NotificationCache struct {
	redis  goredis.Cmdable
	logger zerolog.Logger
}

// NewNotificationCache creates a new instance of the NotificationCache.
func NewNotificationCache(logger *zerolog.Logger, redis *goredis.Client) *NotificationCache {
	return newNotificationCache(logger, redis)
}

func newNotificationCache(logger *zerolog.Logger, redis goredis.Cmdable) *NotificationCache {
	return &NotificationCache{
		redis:  redis,
		logger: logger.With().Str("layer", "redis_cache").Logger(),
	}
}

// Get retrieves an item from the cache.
func (c *NotificationCache) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	key := keybuilder.NotificationKey(id)
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.logger.Debug().Str("key", key).Str("cache", "miss").Msg("notification not found in cache")
			return nil, repo.ErrNotFound
		}
		c.logger.Error().Err(err).Str("key", key).Msg("failed to get key from redis")
		return nil, err
	}

	var cached cachedNotification
	if err := json.Unmarshal(val, &cached); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("failed to unmarshal notification from cache")
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	c.logger.Debug().Str("key", key).Str("cache", "hit").Msg("notification found in cache")
	return cached.toModel(), nil
}

// Set adds an item to the cache for a specified duration.
func (c *NotificationCache) Set(ctx context.Context, n *model.Notification, expiration time.Duration) error {
	key := keybuilder.NotificationKey(n.ID)
	nBytes, err := json.Marshal(toCached(n))
	if err != nil {
		c.logger.Error().Err(err).Stringer("id", n.ID).Msg("failed to marshal notification for cache")
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := c.redis.Set(ctx, key, nBytes, expiration).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("failed to set key in redis")
		return err
	}

	c.logger.Debug().Str("key", key).Dur("ttl", expiration).Msg("notification set in cache")
	return nil
}

// Delete removes an item from the cache.
func (c *NotificationCache) Delete(ctx context.Context, id uuid.UUID) error {
	key := keybuilder.NotificationKey(id)
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("failed to delete key from redis")
		return err
	}

	c.logger.Debug().Str("key", key).Msg("deleted key from redis")
	return nil
}
