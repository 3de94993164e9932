package notifiers

import (
	"context"

	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/rs/zerolog"
)

// LogNotifier is a mock notifier that implements the Notifier interface.
// It simply logs the notification details to the console instead of sending them
// through a real channel. In log_only mode one is registered for every type.
type LogNotifier struct {
	Base
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier handling the given notification type.
func NewLogNotifier(notificationType string, logger *zerolog.Logger) *LogNotifier {
	n := &LogNotifier{
		logger: logger.With().Str("component", "log_notifier").Str("type", notificationType).Logger(),
	}
	n.Base = NewBase(notificationType, n)
	return n
}

// DoSend implements Sender.
func (n *LogNotifier) DoSend(_ context.Context, notification *model.Notification, params map[string]any) error {
	n.logger.Info().
		Stringer("notification_id", notification.ID).
		RawJSON("configuration", rawOrNull(notification.Configuration)).
		Fields(map[string]any{"parameters": params}).
		Int("periods", len(notification.Periods)).
		Msg(">>> MOCK SEND: Notification dispatched")

	return nil
}

func rawOrNull(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
