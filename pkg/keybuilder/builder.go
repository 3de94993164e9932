package keybuilder

import (
	"strings"

	"github.com/google/uuid"
)

const (
	Namespace    string = "windowed-notifier"
	Notification string = "notification"
	Separator    string = ":"
)

// Build joins the namespace and parts into a single cache key.
func Build(parts ...string) string {
	return strings.Join(append([]string{Namespace}, parts...), Separator)
}

// NotificationKey is the cache key of a single notification.
func NotificationKey(id uuid.UUID) string {
	return Build(Notification, id.String())
}
