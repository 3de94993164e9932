package notifiers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/rs/zerolog"
)

// ModeProduction enables real channel notifiers. Any other mode logs instead of sending.
const ModeProduction = "production"

// defaultSendTimeout bounds a single channel send.
const defaultSendTimeout = 30 * time.Second

var (
	// ErrUnknownType is returned when no notifier is registered for a notification's type.
	ErrUnknownType = errors.New("no notifier registered for type")
	// ErrOutsidePeriod is returned when a notification is not inside any of its periods.
	ErrOutsidePeriod = errors.New("notification is outside its periods")
	// ErrRateLimited is returned when the type's send budget is exhausted.
	ErrRateLimited = errors.New("notification type is rate limited")
	// ErrNilNotification is returned when dispatching a nil notification.
	ErrNilNotification = errors.New("notification is nil")
)

// Dispatcher is a composite notifier registry that routes notifications to the
// notifier registered for their type.
type Dispatcher struct {
	notifiers   map[string]Notifier
	gate        *Gate
	limiter     *typeRateLimiter
	sendTimeout time.Duration
	logger      zerolog.Logger
}

// NewDispatcher creates a new Dispatcher and initializes channel-specific notifiers
// based on the application's configuration mode.
func NewDispatcher(cfg *config.Config, renderer *Renderer, logger *zerolog.Logger) (*Dispatcher, error) {
	log := logger.With().Str("component", "dispatcher").Logger()
	log.Info().Str("mode", cfg.Notifiers.Mode).Msg("initializing notifiers")

	d := newDispatcher(NewGate(), newTypeRateLimiter(cfg.Notifiers.RateLimitPerMinute), log)
	if cfg.Notifiers.SendTimeout > 0 {
		d.sendTimeout = cfg.Notifiers.SendTimeout
	}

	// Every known type starts with a LogNotifier as a fallback.
	for _, t := range []string{TypeEmail, TypeTelegram, TypeWebhook, TypeLog} {
		d.Register(NewLogNotifier(t, logger))
	}

	// If in "production" mode, try to override the defaults with real notifiers.
	if cfg.Notifiers.Mode == ModeProduction {
		if cfg.Notifiers.Email.Host != "" {
			d.Register(NewEmailNotifier(cfg.Notifiers.Email, renderer, logger))
			log.Info().Msg("email notifier enabled")
		}
		if cfg.Notifiers.Telegram.BotToken != "" {
			tgNotifier, err := NewTelegramNotifier(cfg.Notifiers.Telegram, renderer, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
			}
			d.Register(tgNotifier)
			log.Info().Msg("telegram notifier enabled")
		}
		if cfg.Notifiers.Webhook.Enabled {
			d.Register(NewWebhookNotifier(cfg.Notifiers.Webhook, renderer, logger))
			log.Info().Msg("webhook notifier enabled")
		}
	}

	return d, nil
}

func newDispatcher(gate *Gate, limiter *typeRateLimiter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		gate:        gate,
		limiter:     limiter,
		sendTimeout: defaultSendTimeout,
		logger:      logger,
	}
}

// Register adds n under its type, replacing any notifier already registered for it.
// Registration is not synchronized and must happen before the dispatcher is shared.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Type()] = n
}

// Types returns the registered notification types in sorted order.
func (d *Dispatcher) Types() []string {
	var types []string
	for t := range d.notifiers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Supports reports whether a notifier is registered for notificationType.
func (d *Dispatcher) Supports(notificationType string) bool {
	_, ok := d.notifiers[notificationType]
	return ok
}

// configurationParsers hold the schema check of each built-in type.
var configurationParsers = map[string]func(json.RawMessage) error{
	TypeEmail: func(raw json.RawMessage) error {
		_, err := ParseEmailConfiguration(raw)
		return err
	},
	TypeTelegram: func(raw json.RawMessage) error {
		_, err := ParseTelegramConfiguration(raw)
		return err
	},
	TypeWebhook: func(raw json.RawMessage) error {
		_, err := ParseWebhookConfiguration(raw)
		return err
	},
}

// ValidateConfiguration checks raw against the schema of notificationType.
// Types without a known schema accept any configuration.
func (d *Dispatcher) ValidateConfiguration(notificationType string, raw json.RawMessage) error {
	if !d.Supports(notificationType) {
		return fmt.Errorf("%w: %s", ErrUnknownType, notificationType)
	}
	if parse, ok := configurationParsers[notificationType]; ok {
		return parse(raw)
	}
	return nil
}

// Eligible reports whether n would be sent if dispatched now.
func (d *Dispatcher) Eligible(n *model.Notification) bool {
	if n == nil {
		return false
	}
	notifier, ok := d.notifiers[n.Type]
	if !ok {
		return false
	}
	return d.gate.Eligible(notifier, n)
}

// Dispatch sends n through the notifier registered for its type and waits for the result.
// It fails with ErrUnknownType, ErrOutsidePeriod or ErrRateLimited before anything is sent.
//
// Once handed to a channel, a send is not interrupted by ctx: SMTP and Telegram cannot
// abort a delivery in flight, so Dispatch reports the real outcome, bounded by the send timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return ErrNilNotification
	}
	notifier, ok := d.notifiers[n.Type]
	if !ok {
		d.logger.Error().Str("type", n.Type).Msg("no notifier found for type")
		dispatchTotal.WithLabelValues("unknown", outcomeUnknownType).Inc()
		return fmt.Errorf("%w: %s", ErrUnknownType, n.Type)
	}

	if !d.gate.Eligible(notifier, n) {
		dispatchTotal.WithLabelValues(n.Type, outcomeOutsidePeriod).Inc()
		return ErrOutsidePeriod
	}

	if !d.limiter.Allow(n.Type) {
		d.logger.Debug().Str("type", n.Type).Msg("notification type rate limited")
		dispatchTotal.WithLabelValues(n.Type, outcomeRateLimited).Inc()
		return ErrRateLimited
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	start := time.Now()
	err := notifier.Send(sendCtx, n, sendParameters(n)).Wait(sendCtx)
	dispatchDuration.WithLabelValues(n.Type).Observe(time.Since(start).Seconds())
	if err != nil {
		dispatchTotal.WithLabelValues(n.Type, outcomeFailed).Inc()
		return err
	}

	dispatchTotal.WithLabelValues(n.Type, outcomeSent).Inc()
	return nil
}

// sendParameters copies the notification's parameters and adds its id and
// schedule unless the caller supplied values under those names.
func sendParameters(n *model.Notification) map[string]any {
	params := make(map[string]any, len(n.Parameters)+2)
	maps.Copy(params, n.Parameters)
	if _, ok := params["notificationId"]; !ok {
		params["notificationId"] = n.ID.String()
	}
	if _, ok := params["scheduledAt"]; !ok {
		params["scheduledAt"] = n.ScheduledAt
	}
	return params
}
