package rabbitmq

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	n := model.NewNotification("email", nil, nil, nil, time.Now().Add(time.Hour), nil)
	n.Attempts = 2

	msg, err := newPublishing(n, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "90000", msg.Expiration)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, n.ID.String(), msg.MessageId)
	assert.Equal(t, "email", msg.Type)

	decoded, err := DecodeMessage(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, n.ID, decoded.ID)
	assert.Equal(t, 2, decoded.Attempts)
	assert.True(t, n.ScheduledAt.Equal(decoded.ScheduledAt))
}

func TestNewPublishing_PastDelayIsImmediate(t *testing.T) {
	n := model.NewNotification("email", nil, nil, nil, time.Now().Add(-time.Hour), nil)

	msg, err := newPublishing(n, time.Until(n.ScheduledAt))
	require.NoError(t, err)
	assert.Empty(t, msg.Expiration)
}

func TestExchangeFor(t *testing.T) {
	tests := []struct {
		name     string
		exchange string
		delay    time.Duration
		want     string
	}{
		{name: "future schedule waits", exchange: WaitExchange, delay: time.Hour, want: WaitExchange},
		{name: "retry backoff", exchange: RetryExchange, delay: 10 * time.Second, want: RetryExchange},
		{name: "deferral", exchange: DeferralExchange, delay: time.Minute, want: DeferralExchange},
		{name: "due now skips the wait queue", exchange: WaitExchange, delay: 0, want: NotificationsExchange},
		{name: "overdue skips the wait queue", exchange: WaitExchange, delay: -time.Hour, want: NotificationsExchange},
		{name: "immediate", exchange: NotificationsExchange, delay: 0, want: NotificationsExchange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exchangeFor(tt.exchange, tt.delay))
		})
	}
}

func TestDecodeMessage_Rejects(t *testing.T) {
	_, err := DecodeMessage([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`{"type":"email"}`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`{"id":"` + uuid.New().String() + `","type":"email"}`))
	assert.NoError(t, err)
}
