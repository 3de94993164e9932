package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	repo "github.com/ilindan-dev/windowed-notifier/internal/domain/repository"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Ensure NotificationRepository implements the interface
var _ repo.NotificationRepository = (*NotificationRepository)(nil)

const notificationColumns = `id, type, configuration, periods, parameters, status, attempts,
	author_id, scheduled_at, sent_at, created_at, updated_at`

const (
	insertNotification = `INSERT INTO notifications
	(id, type, configuration, periods, parameters, status, attempts, author_id, scheduled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + notificationColumns

	selectNotificationByID = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	// Status transitions only ever start from 'scheduled', so both writes are guarded on it.
	updateNotificationStatus = `UPDATE notifications
SET status = $2, attempts = $3, scheduled_at = $4, sent_at = $5, updated_at = now()
WHERE id = $1 AND status = 'scheduled'
RETURNING id`

	cancelNotification = `UPDATE notifications
SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND status = 'scheduled'
RETURNING id`

	selectNotificationStatus = `SELECT status FROM notifications WHERE id = $1`

	selectOverdue = `SELECT ` + notificationColumns + ` FROM notifications
WHERE status = 'scheduled' AND scheduled_at < $1
ORDER BY scheduled_at
LIMIT $2`
)

// NotificationRepository implements the domain.repository.NotificationRepository interface
// using PostgreSQL as a backend.
type NotificationRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewNotificationRepository creates a new instance of the NotificationRepository
func NewNotificationRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *NotificationRepository {
	return &NotificationRepository{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_repository").Logger(),
	}
}

// Save persists a new notification and returns the created object with DB-generated fields.
func (r *NotificationRepository) Save(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	params, err := toRow(n)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to map domain model to db params")
		return nil, err
	}

	created, err := scanNotification(r.pool.QueryRow(ctx, insertNotification,
		params.ID, params.Type, params.Configuration, params.Periods, params.Parameters,
		params.Status, params.Attempts, params.AuthorID, params.ScheduledAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, repo.ErrDuplicateRecord
		}
		r.logger.Err(err).Msg("cannot create notification")
		return nil, fmt.Errorf("postgres: CreateNotification failed: %w", err)
	}

	return created, nil
}

// GetByID retrieves a notification by its unique ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	n, err := scanNotification(r.pool.QueryRow(ctx, selectNotificationByID, pgtype.UUID{Bytes: id, Valid: true}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn().Stringer("id", id).Msg("notification not found by id")
			return nil, repo.ErrNotFound
		}
		r.logger.Err(err).Str("method", "GetByID").Msg("cannot get notification")
		return nil, fmt.Errorf("postgres: GetNotificationByID failed: %w", err)
	}

	return n, nil
}

// Update updates the mutable fields of a notification.
func (r *NotificationRepository) Update(ctx context.Context, n *model.Notification) error {
	params := toUpdateParams(n)

	var id pgtype.UUID
	err := r.pool.QueryRow(ctx, updateNotificationStatus,
		params.ID, params.Status, params.Attempts, params.ScheduledAt, params.SentAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missedTransition(ctx, n.ID, "update")
		}
		r.logger.Err(err).Stringer("id", n.ID).Msg("cannot update notification")
		return fmt.Errorf("postgres: UpdateNotificationStatus failed: %w", err)
	}
	return nil
}

// Delete performs a "soft delete" on a notification by setting its status to 'cancelled'.
func (r *NotificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var returned pgtype.UUID
	err := r.pool.QueryRow(ctx, cancelNotification, pgtype.UUID{Bytes: id, Valid: true}).Scan(&returned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missedTransition(ctx, id, "cancel")
		}
		r.logger.Err(err).Stringer("id", id).Msg("cannot cancel notification")
		return fmt.Errorf("postgres: CancelNotification failed: %w", err)
	}
	return nil
}

// missedTransition explains why a guarded write touched no row.
func (r *NotificationRepository) missedTransition(ctx context.Context, id uuid.UUID, op string) error {
	var status string
	err := r.pool.QueryRow(ctx, selectNotificationStatus, pgtype.UUID{Bytes: id, Valid: true}).Scan(&status)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Err(err).Stringer("id", id).Msg("cannot read notification status")
		return fmt.Errorf("postgres: %s: read status failed: %w", op, err)
	}
	missErr := classifyMissedTransition(status)
	r.logger.Warn().Err(missErr).Stringer("id", id).Str("op", op).Msg("notification is not scheduled")
	return missErr
}

// classifyMissedTransition maps the stored status of a row a guarded write skipped.
// An empty status means the row does not exist.
func classifyMissedTransition(status string) error {
	if status == "" {
		return repo.ErrNotFound
	}
	return fmt.Errorf("%w: status is %s", repo.ErrConflict, status)
}

// ListOverdue returns up to limit scheduled notifications due before the given instant, oldest first.
func (r *NotificationRepository) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*model.Notification, error) {
	rows, err := r.pool.Query(ctx, selectOverdue, pgtype.Timestamptz{Time: before, Valid: true}, limit)
	if err != nil {
		r.logger.Err(err).Msg("cannot list overdue notifications")
		return nil, fmt.Errorf("postgres: ListOverdue failed: %w", err)
	}

	notifications, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Notification, error) {
		return scanNotification(row)
	})
	if err != nil {
		r.logger.Err(err).Msg("cannot scan overdue notifications")
		return nil, fmt.Errorf("postgres: ListOverdue failed: %w", err)
	}
	return notifications, nil
}

// === Mapper Functions ===

// notificationRow is the database shape of a notification.
type notificationRow struct {
	ID            pgtype.UUID
	Type          string
	Configuration []byte
	Periods       []byte
	Parameters    []byte
	Status        string
	Attempts      int16
	AuthorID      pgtype.Text
	ScheduledAt   pgtype.Timestamptz
	SentAt        pgtype.Timestamptz
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// updateParams carries the mutable columns of a notification.
type updateParams struct {
	ID          pgtype.UUID
	Status      string
	Attempts    int16
	ScheduledAt pgtype.Timestamptz
	SentAt      pgtype.Timestamptz
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var dbn notificationRow
	if err := row.Scan(
		&dbn.ID, &dbn.Type, &dbn.Configuration, &dbn.Periods, &dbn.Parameters, &dbn.Status, &dbn.Attempts,
		&dbn.AuthorID, &dbn.ScheduledAt, &dbn.SentAt, &dbn.CreatedAt, &dbn.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return toDomainModel(&dbn)
}

// toRow safely converts a domain model to its database row.
func toRow(n *model.Notification) (notificationRow, error) {
	if n.Type == "" {
		return notificationRow{}, errors.New("notification type is required")
	}

	row := notificationRow{
		ID:            pgtype.UUID{Bytes: n.ID, Valid: true},
		Type:          n.Type,
		Configuration: []byte("null"),
		Periods:       []byte("[]"),
		Parameters:    []byte("{}"),
		Status:        string(n.Status),
		Attempts:      int16(n.Attempts),
		ScheduledAt:   pgtype.Timestamptz{Time: n.ScheduledAt, Valid: true},
		CreatedAt:     pgtype.Timestamptz{Time: n.CreatedAt, Valid: !n.CreatedAt.IsZero()},
		UpdatedAt:     pgtype.Timestamptz{Time: n.UpdatedAt, Valid: !n.UpdatedAt.IsZero()},
	}
	if len(n.Configuration) > 0 {
		if !json.Valid(n.Configuration) {
			return notificationRow{}, errors.New("notification configuration is not valid JSON")
		}
		row.Configuration = n.Configuration
	}
	if len(n.Periods) > 0 {
		periods, err := json.Marshal(n.Periods)
		if err != nil {
			return notificationRow{}, fmt.Errorf("failed to marshal periods: %w", err)
		}
		row.Periods = periods
	}
	if len(n.Parameters) > 0 {
		params, err := json.Marshal(n.Parameters)
		if err != nil {
			return notificationRow{}, fmt.Errorf("failed to marshal parameters: %w", err)
		}
		row.Parameters = params
	}
	if n.AuthorID != nil {
		row.AuthorID = pgtype.Text{String: *n.AuthorID, Valid: true}
	}
	if n.SentAt != nil {
		row.SentAt = pgtype.Timestamptz{Time: *n.SentAt, Valid: true}
	}
	return row, nil
}

// toUpdateParams converts a domain model to the parameters for updating.
func toUpdateParams(n *model.Notification) updateParams {
	params := updateParams{
		ID:          pgtype.UUID{Bytes: n.ID, Valid: true},
		Status:      string(n.Status),
		Attempts:    int16(n.Attempts),
		ScheduledAt: pgtype.Timestamptz{Time: n.ScheduledAt, Valid: true},
	}
	if n.SentAt != nil {
		params.SentAt = pgtype.Timestamptz{Time: *n.SentAt, Valid: true}
	}
	return params
}

// toDomainModel safely converts a database row to a domain model.
// Stored periods are re-validated on the way out.
func toDomainModel(dbn *notificationRow) (*model.Notification, error) {
	if dbn == nil {
		return nil, errors.New("cannot convert nil db notification")
	}
	domainModel := &model.Notification{
		ID:          dbn.ID.Bytes,
		Type:        dbn.Type,
		Status:      model.Status(dbn.Status),
		Attempts:    int(dbn.Attempts),
		ScheduledAt: dbn.ScheduledAt.Time,
		CreatedAt:   dbn.CreatedAt.Time,
		UpdatedAt:   dbn.UpdatedAt.Time,
	}
	if len(dbn.Configuration) > 0 && string(dbn.Configuration) != "null" {
		domainModel.Configuration = json.RawMessage(dbn.Configuration)
	}
	if len(dbn.Periods) > 0 {
		if err := json.Unmarshal(dbn.Periods, &domainModel.Periods); err != nil {
			return nil, fmt.Errorf("stored periods of %s: %w", uuid.UUID(dbn.ID.Bytes), err)
		}
		if len(domainModel.Periods) == 0 {
			domainModel.Periods = nil
		}
	}
	if len(dbn.Parameters) > 0 && string(dbn.Parameters) != "{}" {
		if err := json.Unmarshal(dbn.Parameters, &domainModel.Parameters); err != nil {
			return nil, fmt.Errorf("stored parameters of %s: %w", uuid.UUID(dbn.ID.Bytes), err)
		}
	}
	if dbn.AuthorID.Valid {
		domainModel.AuthorID = &dbn.AuthorID.String
	}
	if dbn.SentAt.Valid {
		domainModel.SentAt = &dbn.SentAt.Time
	}
	return domainModel, nil
}
