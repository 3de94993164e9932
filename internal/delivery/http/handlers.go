package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/ilindan-dev/windowed-notifier/internal/notifiers"
	"github.com/ilindan-dev/windowed-notifier/internal/service"
	"github.com/rs/zerolog"
)

type Handlers struct {
	service    *service.NotificationService
	dispatcher *notifiers.Dispatcher
	logger     zerolog.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *service.NotificationService, dispatcher *notifiers.Dispatcher, logger *zerolog.Logger) *Handlers {
	return &Handlers{
		service:    service,
		dispatcher: dispatcher,
		logger:     logger.With().Str("layer", "http_handler").Logger(),
	}
}

// RegisterRoutes sets up the routing for the notification API.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/notifications", h.CreateNotification)
		api.GET("/notifications/:id", h.GetNotificationByID)
		api.DELETE("/notifications/:id", h.CancelNotification)
		api.GET("/notifications/:id/eligibility", h.GetNotificationEligibility)
		api.POST("/eligibility", h.CheckEligibility)
		api.GET("/notifiers", h.ListNotifiers)
	}
}

// CreateNotification handles the HTTP request for creating a new notification.
func (h *Handlers) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if !h.bind(c, &req) {
		return
	}

	notification, err := h.service.CreateNotification(c.Request.Context(), req.toParams())
	if err != nil {
		h.writeError(c, err, "failed to create notification")
		return
	}

	c.JSON(http.StatusCreated, toNotificationResponse(notification))
}

// GetNotificationByID handles the HTTP request to retrieve a notification.
func (h *Handlers) GetNotificationByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	notification, err := h.service.GetNotificationByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to retrieve notification")
		return
	}

	c.JSON(http.StatusOK, toNotificationResponse(notification))
}

// CancelNotification handles the HTTP request to cancel a notification.
func (h *Handlers) CancelNotification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.CancelNotification(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to cancel notification")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetNotificationEligibility evaluates a stored notification's periods at ?at= (RFC 3339), default now.
func (h *Handlers) GetNotificationEligibility(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var at time.Time
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid 'at' timestamp, expected RFC 3339", Field: "at"})
			return
		}
		at = parsed
	}

	result, err := h.service.CheckNotificationEligibility(c.Request.Context(), id, at)
	if err != nil {
		h.writeError(c, err, "failed to check eligibility")
		return
	}

	c.JSON(http.StatusOK, toEligibilityResponse(result))
}

// CheckEligibility evaluates ad-hoc periods without storing anything.
func (h *Handlers) CheckEligibility(c *gin.Context) {
	var req EligibilityRequest
	if !h.bind(c, &req) {
		return
	}

	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	result, err := h.service.CheckEligibility(req.Type, req.Periods, at)
	if err != nil {
		h.writeError(c, err, "failed to check eligibility")
		return
	}

	c.JSON(http.StatusOK, toEligibilityResponse(result))
}

// ListNotifiers returns the registered notification types.
func (h *Handlers) ListNotifiers(c *gin.Context) {
	c.JSON(http.StatusOK, NotifiersResponse{Types: h.dispatcher.Types()})
}

func (h *Handlers) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

// writeError maps domain errors to HTTP statuses. Unexpected errors are logged and hidden behind msg.
func (h *Handlers) writeError(c *gin.Context, err error, msg string) {
	var cfgErr *model.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: cfgErr.Field})
	case errors.Is(err, service.ErrUnsupportedType), errors.Is(err, notifiers.ErrUnknownType):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: "type"})
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrDuplicateRecord), errors.Is(err, service.ErrNotCancellable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid notification ID format", Field: "id"})
		return uuid.Nil, false
	}
	return id, true
}
