package notifiers

import (
	"context"
	"fmt"

	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
)

// Well-known notification types.
const (
	TypeEmail    = "email"
	TypeTelegram = "telegram"
	TypeWebhook  = "webhook"
	TypeLog      = "log"
)

// Notifier defines the interface for any notification sending service.
// Send must complete without effect when the notification's type is not the notifier's own.
type Notifier interface {
	// Type returns the notification type this notifier handles.
	Type() string

	// Send dispatches the notification. The returned Completion resolves once delivery is done.
	Send(ctx context.Context, n *model.Notification, params map[string]any) *Completion
}

// Sender is the channel-specific half of a notifier: it delivers a notification
// that has already passed the type check.
type Sender interface {
	DoSend(ctx context.Context, n *model.Notification, params map[string]any) error
}

// Base implements Send for channel notifiers by embedding: it performs the type
// check and forwards matching notifications to the channel's DoSend.
type Base struct {
	notificationType string
	sender           Sender
}

// NewBase binds a notification type to the sender that delivers it.
func NewBase(notificationType string, sender Sender) Base {
	return Base{notificationType: notificationType, sender: sender}
}

// Type implements Notifier.
func (b Base) Type() string {
	return b.notificationType
}

// CanHandle reports whether n is of this notifier's type.
func (b Base) CanHandle(n *model.Notification) bool {
	return n != nil && b.notificationType == n.Type
}

// Send implements Notifier. A type mismatch resolves immediately with no error.
func (b Base) Send(ctx context.Context, n *model.Notification, params map[string]any) *Completion {
	if !b.CanHandle(n) {
		return Completed(nil)
	}
	if b.sender == nil {
		return Completed(fmt.Errorf("notifier %q has no sender", b.notificationType))
	}
	return Go(func() error {
		return b.sender.DoSend(ctx, n, params)
	})
}
