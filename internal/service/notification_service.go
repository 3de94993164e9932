package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/rs/zerolog"
)

var (
	// ErrUnsupportedType is returned when no notifier handles the requested type.
	ErrUnsupportedType = errors.New("unsupported notification type")
	// ErrNotCancellable is returned when cancelling a notification that is no longer scheduled.
	ErrNotCancellable = errors.New("notification is not scheduled")
)

// NotifierRegistry is the part of the dispatcher the service validates requests against.
type NotifierRegistry interface {
	Supports(notificationType string) bool
	ValidateConfiguration(notificationType string, raw json.RawMessage) error
}

// CreateParams carries the fields of a notification to schedule.
type CreateParams struct {
	Type          string
	Configuration json.RawMessage
	Periods       []model.PeriodConfig
	Parameters    map[string]any
	ScheduledAt   time.Time
	AuthorID      *string
}

// Eligibility is the outcome of an eligibility check.
type Eligibility struct {
	Eligible bool
	At       time.Time
	// MatchedPeriod is the index of the first period including At, or -1.
	MatchedPeriod int
}

// NotificationService encapsulates the business logic for managing notifications.
// It orchestrates the repository and the queue.
type NotificationService struct {
	repo     repo.NotificationRepository
	queue    repo.NotificationQueue
	registry NotifierRegistry
	logger   zerolog.Logger
	now      func() time.Time
}

func NewNotificationService(
	repo repo.NotificationRepository,
	queue repo.NotificationQueue,
	registry NotifierRegistry,
	logger *zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		repo:     repo,
		queue:    queue,
		registry: registry,
		logger:   logger.With().Str("layer", "service").Logger(),
		now:      time.Now,
	}
}

// CreateNotification orchestrates the creation of a new notification.
// It validates type, configuration and periods, saves the notification, and publishes it to the queue.
func (s *NotificationService) CreateNotification(ctx context.Context, params CreateParams) (*model.Notification, error) {
	s.logger.Info().Str("type", params.Type).Msg("creating new notification")

	if err := s.validateType(params.Type); err != nil {
		return nil, err
	}
	if err := s.registry.ValidateConfiguration(params.Type, params.Configuration); err != nil {
		s.logger.Warn().Err(err).Str("type", params.Type).Msg("invalid configuration")
		return nil, err
	}
	periods, err := model.NewPeriods(params.Periods)
	if err != nil {
		s.logger.Warn().Err(err).Msg("invalid periods")
		return nil, err
	}

	scheduledAt := params.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = s.now()
	}
	notification := model.NewNotification(params.Type, params.Configuration, periods, params.Parameters, scheduledAt.UTC(), params.AuthorID)

	createdNotification, err := s.repo.Save(ctx, notification)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to save notification")
		return nil, err
	}
	s.logger.Info().Stringer("id", createdNotification.ID).Msg("notification saved successfully")

	err = s.queue.Publish(ctx, createdNotification)
	if err != nil {
		s.logger.Error().Err(err).Stringer("id", createdNotification.ID).Msg("CRITICAL: failed to publish notification to queue after saving")
		return nil, fmt.Errorf("failed to schedule notification: %w", err)
	}
	s.logger.Info().Stringer("id", createdNotification.ID).Msg("notification published to queue")

	return createdNotification, nil
}

// GetNotificationByID retrieves a notification by its ID.
// The repository decorator handles the cache-aside logic transparently.
func (s *NotificationService) GetNotificationByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Stringer("id", id).Msg("failed to get notification by id")
		return nil, err
	}
	return n, nil
}

// UpdateNotification is used by the consumer to update the status after a send attempt.
// The repository decorator will handle cache invalidation.
func (s *NotificationService) UpdateNotification(ctx context.Context, n *model.Notification) error {
	n.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, n); err != nil {
		s.logger.Error().Err(err).Stringer("id", n.ID).Msg("failed to update notification")
		return err
	}
	return nil
}

// CancelNotification cancels a scheduled notification.
func (s *NotificationService) CancelNotification(ctx context.Context, id uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Stringer("notification_id", id).Msg("can't get notification")
		return err
	}

	if notification.Status != model.StatusScheduled {
		s.logger.Warn().Stringer("notification_id", id).Str("status", string(notification.Status)).Msg("can't cancel notification")
		return fmt.Errorf("%w: status is %s", ErrNotCancellable, notification.Status)
	}

	s.logger.Info().Stringer("notification_id", id).Msg("cancel notification")
	if err := s.repo.Delete(ctx, id); err != nil {
		// Sent or cancelled between the read above and the write.
		if errors.Is(err, repo.ErrConflict) {
			return fmt.Errorf("%w: %w", ErrNotCancellable, err)
		}
		return err
	}
	return nil
}

// CheckEligibility evaluates ad-hoc periods for notificationType at the given instant.
// A zero at means now.
func (s *NotificationService) CheckEligibility(notificationType string, periodCfgs []model.PeriodConfig, at time.Time) (*Eligibility, error) {
	if err := s.validateType(notificationType); err != nil {
		return nil, err
	}
	periods, err := model.NewPeriods(periodCfgs)
	if err != nil {
		return nil, err
	}
	return s.evaluate(periods, at), nil
}

// CheckNotificationEligibility evaluates a stored notification's periods at the given instant.
func (s *NotificationService) CheckNotificationEligibility(ctx context.Context, id uuid.UUID, at time.Time) (*Eligibility, error) {
	n, err := s.GetNotificationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.evaluate(n.Periods, at), nil
}

func (s *NotificationService) evaluate(periods []model.Period, at time.Time) *Eligibility {
	if at.IsZero() {
		at = s.now()
	}
	result := &Eligibility{At: at, MatchedPeriod: -1}
	if len(periods) == 0 {
		result.Eligible = true
		return result
	}
	for i, p := range periods {
		if p.IsIncluded(at) {
			result.Eligible = true
			result.MatchedPeriod = i
			break
		}
	}
	return result
}

// RequeueOverdue republishes up to limit scheduled notifications whose
// ScheduledAt is more than grace in the past, which means their queue message was lost
// or is stuck behind a longer delay. They go straight to the workers.
// It returns how many were requeued.
func (s *NotificationService) RequeueOverdue(ctx context.Context, grace time.Duration, limit int) (int, error) {
	now := s.now().UTC()
	overdue, err := s.repo.ListOverdue(ctx, now.Add(-grace), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue notifications: %w", err)
	}

	requeued := 0
	for _, n := range overdue {
		n.ScheduledAt = now
		if err := s.UpdateNotification(ctx, n); err != nil {
			// Cancelled, sent or deleted since it was listed.
			if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrConflict) {
				continue
			}
			return requeued, err
		}
		if err := s.queue.PublishNow(ctx, n); err != nil {
			s.logger.Error().Err(err).Stringer("id", n.ID).Msg("failed to republish overdue notification")
			return requeued, fmt.Errorf("failed to republish %s: %w", n.ID, err)
		}
		requeued++
	}

	if requeued > 0 {
		s.logger.Info().Int("count", requeued).Msg("requeued overdue notifications")
	}
	return requeued, nil
}

func (s *NotificationService) validateType(notificationType string) error {
	if notificationType == "" || !s.registry.Supports(notificationType) {
		s.logger.Warn().Str("type", notificationType).Msg("unsupported notification type")
		return fmt.Errorf("%w: %q", ErrUnsupportedType, notificationType)
	}
	return nil
}
