package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLogger = zerolog.Nop()

type memoryRepository struct {
	items      map[uuid.UUID]*model.Notification
	overdue    []*model.Notification
	before     time.Time
	saveErr    error
	updateErrs map[uuid.UUID]error
	// beforeDelete runs between the service's read and its cancel.
	beforeDelete func()
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{items: map[uuid.UUID]*model.Notification{}, updateErrs: map[uuid.UUID]error{}}
}

func (r *memoryRepository) Save(_ context.Context, n *model.Notification) (*model.Notification, error) {
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.items[n.ID] = n
	return n, nil
}

func (r *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	n, ok := r.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return n, nil
}

// Update and Delete only touch rows that are still scheduled, like the SQL they stand in for.
func (r *memoryRepository) Update(_ context.Context, n *model.Notification) error {
	if err := r.updateErrs[n.ID]; err != nil {
		return err
	}
	stored, ok := r.items[n.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Status != model.StatusScheduled {
		return repo.ErrConflict
	}
	r.items[n.ID] = n
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	if r.beforeDelete != nil {
		r.beforeDelete()
	}
	n, ok := r.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	if n.Status != model.StatusScheduled {
		return repo.ErrConflict
	}
	n.Status = model.StatusCancelled
	return nil
}

func (r *memoryRepository) ListOverdue(_ context.Context, before time.Time, limit int) ([]*model.Notification, error) {
	r.before = before
	if len(r.overdue) > limit {
		return r.overdue[:limit], nil
	}
	return r.overdue, nil
}

type recordingQueue struct {
	published []*model.Notification
	immediate []*model.Notification
	err       error
}

func (q *recordingQueue) Publish(_ context.Context, n *model.Notification) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, n)
	return nil
}

func (q *recordingQueue) PublishNow(_ context.Context, n *model.Notification) error {
	if q.err != nil {
		return q.err
	}
	q.immediate = append(q.immediate, n)
	return nil
}

func (q *recordingQueue) PublishRetry(context.Context, *model.Notification, time.Duration) error {
	return nil
}

func (q *recordingQueue) PublishDeferred(context.Context, *model.Notification, time.Duration) error {
	return nil
}

type staticRegistry map[string]error

func (r staticRegistry) Supports(t string) bool {
	_, ok := r[t]
	return ok
}

func (r staticRegistry) ValidateConfiguration(t string, _ json.RawMessage) error {
	return r[t]
}

var fixedNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) // Monday

func newTestService() (*NotificationService, *memoryRepository, *recordingQueue) {
	r := newMemoryRepository()
	q := &recordingQueue{}
	registry := staticRegistry{
		"email":    nil,
		"telegram": &model.ConfigurationError{Field: "chatId", Value: 0, Err: errors.New("chat id is required")},
	}
	s := NewNotificationService(r, q, registry, &nopLogger)
	s.now = func() time.Time { return fixedNow }
	return s, r, q
}

func secondsOf(h int) *int {
	v := h * 3600
	return &v
}

func TestCreateNotification(t *testing.T) {
	s, r, q := newTestService()
	author := "ops"
	at := fixedNow.Add(time.Hour)

	n, err := s.CreateNotification(context.Background(), CreateParams{
		Type:          "email",
		Configuration: json.RawMessage(`{"to":["a@example.com"]}`),
		Periods:       []model.PeriodConfig{{Days: []int{1, 2}, ZoneID: "UTC", BeginHour: secondsOf(9), EndHour: secondsOf(17)}},
		Parameters:    map[string]any{"api": "billing"},
		ScheduledAt:   at,
		AuthorID:      &author,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusScheduled, n.Status)
	assert.Equal(t, at, n.ScheduledAt)
	require.Len(t, n.Periods, 1)
	assert.Equal(t, []int{1, 2}, n.Periods[0].Days())
	assert.Contains(t, r.items, n.ID)
	require.Len(t, q.published, 1)
	assert.Same(t, n, q.published[0])
}

func TestCreateNotification_DefaultsToNow(t *testing.T) {
	s, _, _ := newTestService()

	n, err := s.CreateNotification(context.Background(), CreateParams{Type: "email"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, n.ScheduledAt)
	assert.Nil(t, n.Periods)
}

func TestCreateNotification_FailsFast(t *testing.T) {
	tests := []struct {
		name   string
		params CreateParams
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown type",
			params: CreateParams{Type: "sms"},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrUnsupportedType) },
		},
		{
			name:   "empty type",
			params: CreateParams{},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrUnsupportedType) },
		},
		{
			name:   "invalid configuration",
			params: CreateParams{Type: "telegram"},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, model.ErrInvalidConfiguration) },
		},
		{
			name:   "invalid period",
			params: CreateParams{Type: "email", Periods: []model.PeriodConfig{{Days: []int{8}}}},
			check: func(t *testing.T, err error) {
				var cfgErr *model.ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "days", cfgErr.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r, q := newTestService()
			_, err := s.CreateNotification(context.Background(), tt.params)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, r.items)
			assert.Empty(t, q.published)
		})
	}
}

func TestCreateNotification_PublishFailure(t *testing.T) {
	s, _, q := newTestService()
	q.err = errors.New("channel closed")

	_, err := s.CreateNotification(context.Background(), CreateParams{Type: "email"})
	assert.ErrorContains(t, err, "failed to schedule notification")
}

func TestCancelNotification(t *testing.T) {
	s, r, _ := newTestService()
	n := model.NewNotification("email", nil, nil, nil, fixedNow, nil)
	r.items[n.ID] = n

	require.NoError(t, s.CancelNotification(context.Background(), n.ID))
	assert.Equal(t, model.StatusCancelled, n.Status)

	assert.ErrorIs(t, s.CancelNotification(context.Background(), n.ID), ErrNotCancellable)
	assert.ErrorIs(t, s.CancelNotification(context.Background(), uuid.New()), repo.ErrNotFound)
}

func TestCancelNotification_SentWhileCancelling(t *testing.T) {
	s, r, _ := newTestService()
	n := model.NewNotification("email", nil, nil, nil, fixedNow, nil)
	r.items[n.ID] = n
	r.beforeDelete = func() { n.Status = model.StatusSent }

	err := s.CancelNotification(context.Background(), n.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.ErrorIs(t, err, repo.ErrConflict)
	assert.Equal(t, model.StatusSent, n.Status)
}

func TestCheckEligibility(t *testing.T) {
	s, _, _ := newTestService()
	weekdays := model.PeriodConfig{Days: []int{1, 2, 3, 4, 5}, ZoneID: "UTC", BeginHour: secondsOf(9), EndHour: secondsOf(17)}
	nights := model.PeriodConfig{ZoneID: "UTC", BeginHour: secondsOf(0), EndHour: secondsOf(6)}

	got, err := s.CheckEligibility("email", []model.PeriodConfig{nights, weekdays}, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Eligible)
	assert.Equal(t, 1, got.MatchedPeriod)
	assert.Equal(t, fixedNow, got.At)

	saturday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	got, err = s.CheckEligibility("email", []model.PeriodConfig{weekdays}, saturday)
	require.NoError(t, err)
	assert.False(t, got.Eligible)
	assert.Equal(t, -1, got.MatchedPeriod)

	got, err = s.CheckEligibility("email", nil, saturday)
	require.NoError(t, err)
	assert.True(t, got.Eligible)

	_, err = s.CheckEligibility("email", []model.PeriodConfig{{ZoneID: "Nowhere/Land"}}, saturday)
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)

	_, err = s.CheckEligibility("sms", nil, saturday)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCheckNotificationEligibility(t *testing.T) {
	s, r, _ := newTestService()
	begin, end := 1*3600, 2*3600
	n := model.NewNotification("email", nil, []model.Period{model.MustPeriod(model.PeriodConfig{ZoneID: "UTC", BeginHour: &begin, EndHour: &end})}, nil, fixedNow, nil)
	r.items[n.ID] = n

	got, err := s.CheckNotificationEligibility(context.Background(), n.ID, fixedNow)
	require.NoError(t, err)
	assert.False(t, got.Eligible)

	got, err = s.CheckNotificationEligibility(context.Background(), n.ID, time.Date(2024, 3, 4, 1, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, got.Eligible)
	assert.Equal(t, 0, got.MatchedPeriod)

	_, err = s.CheckNotificationEligibility(context.Background(), uuid.New(), fixedNow)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRequeueOverdue(t *testing.T) {
	s, r, q := newTestService()
	stale := model.NewNotification("email", nil, nil, nil, fixedNow.Add(-time.Hour), nil)
	gone := model.NewNotification("email", nil, nil, nil, fixedNow.Add(-time.Hour), nil)
	r.items[stale.ID] = stale
	r.overdue = []*model.Notification{stale, gone}
	r.updateErrs[gone.ID] = repo.ErrNotFound

	count, err := s.RequeueOverdue(context.Background(), 10*time.Minute, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, fixedNow.Add(-10*time.Minute), r.before)
	assert.Equal(t, fixedNow, stale.ScheduledAt)
	assert.Empty(t, q.published)
	require.Len(t, q.immediate, 1)
	assert.Same(t, stale, q.immediate[0])
}

func TestRequeueOverdue_SkipsCancelledSinceListed(t *testing.T) {
	s, r, q := newTestService()
	stored := model.NewNotification("email", nil, nil, nil, fixedNow.Add(-time.Hour), nil)
	listed := *stored
	r.items[stored.ID] = stored
	r.overdue = []*model.Notification{&listed}

	// The cancel lands after the sweep listed the row.
	require.NoError(t, s.CancelNotification(context.Background(), stored.ID))

	count, err := s.RequeueOverdue(context.Background(), 10*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, q.immediate)
	assert.Equal(t, model.StatusCancelled, r.items[stored.ID].Status)
}

func TestRequeueOverdue_PublishFailure(t *testing.T) {
	s, r, q := newTestService()
	n := model.NewNotification("email", nil, nil, nil, fixedNow.Add(-time.Hour), nil)
	r.items[n.ID] = n
	r.overdue = []*model.Notification{n}
	q.err = errors.New("broker down")

	count, err := s.RequeueOverdue(context.Background(), time.Minute, 10)
	assert.Error(t, err)
	assert.Equal(t, 0, count)
}
