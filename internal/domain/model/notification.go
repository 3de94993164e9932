package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a notification.
type Status string

const (
	StatusScheduled Status = "scheduled" // The notification is waiting for its time and window.
	StatusSent      Status = "sent"      // The notification has been successfully sent.
	StatusFailed    Status = "failed"    // The notification failed to send after all retry attempts.
	StatusCancelled Status = "cancelled" // The notification was cancelled by a user request.
)

// Notification is the core business entity of the application.
// It carries no DB tags; Configuration is opaque to everything but the notifier of the matching Type.
type Notification struct {
	ID   uuid.UUID
	Type string // Discriminator selecting the notifier, e.g. "email".

	// Configuration is the channel-specific payload, parsed only by the notifier handling Type.
	Configuration json.RawMessage

	// Periods restrict when the notification may fire. Empty means always.
	Periods []Period

	// Parameters feed the channel's templates.
	Parameters map[string]any

	Status   Status
	Attempts int
	AuthorID *string // Optional: ID of the user or system that created the notification.

	ScheduledAt time.Time
	SentAt      *time.Time // Pointer to allow null value.
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewNotification is a factory function for a freshly scheduled notification.
func NewNotification(
	notificationType string,
	configuration json.RawMessage,
	periods []Period,
	parameters map[string]any,
	scheduledAt time.Time,
	authorID *string,
) *Notification {
	now := time.Now().UTC()
	return &Notification{
		ID:            uuid.New(),
		Type:          notificationType,
		Configuration: configuration,
		Periods:       periods,
		Parameters:    parameters,
		Status:        StatusScheduled,
		Attempts:      0,
		AuthorID:      authorID,
		ScheduledAt:   scheduledAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanNotify reports whether the notification may fire at the given instant:
// true when it has no periods or when at least one period includes at.
func (n *Notification) CanNotify(at time.Time) bool {
	return CanNotify(n.Periods, at)
}

// CanNotify is the eligibility test over a list of periods.
func CanNotify(periods []Period, at time.Time) bool {
	if len(periods) == 0 {
		return true
	}
	now := clock()
	for _, p := range periods {
		if p.includes(at, now) {
			return true
		}
	}
	return false
}
