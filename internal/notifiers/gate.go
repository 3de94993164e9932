package notifiers

import (
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
)

// Gate combines the two checks a notification must pass before it is sent:
// its type must match the notifier's, and one of its periods must include the current instant.
type Gate struct {
	now func() time.Time
}

// NewGate creates a Gate evaluating periods against the wall clock.
func NewGate() *Gate {
	return &Gate{now: time.Now}
}

// TypeMatches reports whether notifier handles n's type.
func (g *Gate) TypeMatches(notifier Notifier, n *model.Notification) bool {
	return notifier != nil && n != nil && notifier.Type() == n.Type
}

// CanNotify reports whether n is inside one of its periods right now.
func (g *Gate) CanNotify(n *model.Notification) bool {
	return n.CanNotify(g.now())
}

// Eligible is TypeMatches && CanNotify.
func (g *Gate) Eligible(notifier Notifier, n *model.Notification) bool {
	return g.TypeMatches(notifier, n) && g.CanNotify(n)
}
