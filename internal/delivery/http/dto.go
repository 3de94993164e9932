package http

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/ilindan-dev/windowed-notifier/internal/service"
)

// CreateNotificationRequest defines the structure for a new notification request.
// It uses `json` tags for unmarshalling and `binding` for validation with Gin.
// Configuration is opaque here; the notifier of Type validates it.
type CreateNotificationRequest struct {
	Type          string               `json:"type" binding:"required"`
	Configuration json.RawMessage      `json:"configuration"`
	Periods       []model.PeriodConfig `json:"periods"`
	Parameters    map[string]any       `json:"parameters"`
	ScheduledAt   *time.Time           `json:"scheduled_at"`
	AuthorID      *string              `json:"author_id,omitempty"`
}

func (r CreateNotificationRequest) toParams() service.CreateParams {
	params := service.CreateParams{
		Type:          r.Type,
		Configuration: r.Configuration,
		Periods:       r.Periods,
		Parameters:    r.Parameters,
		AuthorID:      r.AuthorID,
	}
	if r.ScheduledAt != nil {
		params.ScheduledAt = *r.ScheduledAt
	}
	return params
}

// NotificationResponse defines the structure for a standard notification response.
// We don't expose all internal fields to the client.
type NotificationResponse struct {
	ID            uuid.UUID            `json:"id"`
	Type          string               `json:"type"`
	Status        string               `json:"status"`
	Configuration json.RawMessage      `json:"configuration,omitempty"`
	Periods       []model.PeriodConfig `json:"periods"`
	Parameters    map[string]any       `json:"parameters,omitempty"`
	Attempts      int                  `json:"attempts"`
	ScheduledAt   time.Time            `json:"scheduled_at"`
	SentAt        *time.Time           `json:"sent_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// EligibilityRequest asks whether a notification of Type with Periods may fire at At.
// A missing At means now.
type EligibilityRequest struct {
	Type    string               `json:"type" binding:"required"`
	Periods []model.PeriodConfig `json:"periods"`
	At      *time.Time           `json:"at"`
}

// EligibilityResponse reports the outcome of an eligibility check.
type EligibilityResponse struct {
	Eligible      bool      `json:"eligible"`
	At            time.Time `json:"at"`
	MatchedPeriod *int      `json:"matched_period,omitempty"`
}

// NotifiersResponse lists the notification types the service can deliver.
type NotifiersResponse struct {
	Types []string `json:"types"`
}

// ErrorResponse defines a standard structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// toNotificationResponse is a helper function to map the domain model to the DTO.
func toNotificationResponse(n *model.Notification) NotificationResponse {
	periods := make([]model.PeriodConfig, 0, len(n.Periods))
	for _, p := range n.Periods {
		periods = append(periods, p.Config())
	}
	return NotificationResponse{
		ID:            n.ID,
		Type:          n.Type,
		Status:        string(n.Status),
		Configuration: n.Configuration,
		Periods:       periods,
		Parameters:    n.Parameters,
		Attempts:      n.Attempts,
		ScheduledAt:   n.ScheduledAt,
		SentAt:        n.SentAt,
		CreatedAt:     n.CreatedAt,
	}
}

func toEligibilityResponse(e *service.Eligibility) EligibilityResponse {
	resp := EligibilityResponse{Eligible: e.Eligible, At: e.At}
	if e.MatchedPeriod >= 0 {
		idx := e.MatchedPeriod
		resp.MatchedPeriod = &idx
	}
	return resp
}
