package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
)

var (
	ErrWebhookEventNotFound      = errors.New("webhook event not found")
	ErrWebhookEventAlreadyExists = errors.New("webhook event already exists")
)

const webhookEventColumns = `
	id, event_id, event_type, kind, customer_id, checkout_session_id, payload_json,
	status, attempts, next_attempt_at, last_error, received_at, processed_at, updated_at
`

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create records a verified delivery. The unique event_id makes a provider
// redelivery return ErrWebhookEventAlreadyExists.
func (r *WebhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			event_id, event_type, kind, customer_id, checkout_session_id, payload_json,
			status, attempts, next_attempt_at, last_error, received_at, processed_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.EventType,
		event.Kind,
		nullableValue(event.CustomerID),
		nullableValue(event.CheckoutSessionID),
		event.Payload,
		event.Status,
		event.Attempts,
		nullableValue(event.NextAttemptAt),
		nullableValue(event.LastError),
		event.ReceivedAt,
		nullableValue(event.ProcessedAt),
		event.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrWebhookEventAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}

func (r *WebhookEventRepository) FindByEventID(ctx context.Context, eventID string) (*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE event_id = ? LIMIT 1`

	event := &entity.WebhookEvent{}
	if err := scanWebhookEvent(r.db.QueryRowContext(ctx, query, eventID), event); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return event, nil
}

// Claim moves an event to processing and counts the attempt. It reports false
// when another worker owns the event or it is already terminal. Processing rows
// untouched since staleBefore are treated as abandoned and can be claimed again.
func (r *WebhookEventRepository) Claim(ctx context.Context, eventID string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE webhook_events SET
			status = ?,
			attempts = attempts + 1,
			updated_at = ?
		WHERE event_id = ?
			AND (
				status IN (?, ?)
				OR (status = ? AND updated_at <= ?)
			)
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.WebhookEventProcessing,
		now,
		eventID,
		entity.WebhookEventPending,
		entity.WebhookEventFailed,
		entity.WebhookEventProcessing,
		staleBefore,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID string, now time.Time) error {
	query := `
		UPDATE webhook_events SET
			status = ?,
			next_attempt_at = NULL,
			last_error = NULL,
			processed_at = ?,
			updated_at = ?
		WHERE event_id = ?
	`
	return r.execOne(ctx, query, entity.WebhookEventProcessed, now, now, eventID)
}

// MarkFailed stores the failure. A nil nextAttemptAt parks the event until an
// operator replays it.
func (r *WebhookEventRepository) MarkFailed(ctx context.Context, eventID, lastErr string, nextAttemptAt *time.Time, now time.Time) error {
	query := `
		UPDATE webhook_events SET
			status = ?,
			next_attempt_at = ?,
			last_error = ?,
			updated_at = ?
		WHERE event_id = ?
	`
	return r.execOne(ctx, query, entity.WebhookEventFailed, nullableValue(nextAttemptAt), lastErr, now, eventID)
}

func (r *WebhookEventRepository) ResetForReplay(ctx context.Context, eventID string, now time.Time) error {
	query := `
		UPDATE webhook_events SET
			status = ?,
			attempts = 0,
			next_attempt_at = NULL,
			last_error = NULL,
			processed_at = NULL,
			updated_at = ?
		WHERE event_id = ?
	`
	return r.execOne(ctx, query, entity.WebhookEventPending, now, eventID)
}

// ListDue returns events that need another processing attempt: failures whose
// retry time has come, and pending or processing rows left behind since staleBefore.
func (r *WebhookEventRepository) ListDue(ctx context.Context, now, staleBefore time.Time, limit int32) ([]*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events
		WHERE (status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?)
			OR (status IN (?, ?) AND updated_at <= ?)
		ORDER BY received_at ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query,
		entity.WebhookEventFailed,
		now,
		entity.WebhookEventPending,
		entity.WebhookEventProcessing,
		staleBefore,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.WebhookEvent, 0)
	for rows.Next() {
		event := &entity.WebhookEvent{}
		if err := scanWebhookEvent(rows, event); err != nil {
			return nil, err
		}
		items = append(items, event)
	}

	return items, rows.Err()
}

// DeleteTerminalBefore prunes processed and skipped events received before cutoff.
func (r *WebhookEventRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int32) (int64, error) {
	query := `
		DELETE FROM webhook_events
		WHERE status IN (?, ?) AND received_at < ?
		ORDER BY received_at ASC
		LIMIT ?
	`

	result, err := r.db.ExecContext(ctx, query, entity.WebhookEventProcessed, entity.WebhookEventSkipped, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *WebhookEventRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	if ok, err := affectedOne(result); err != nil {
		return err
	} else if !ok {
		return ErrWebhookEventNotFound
	}
	return nil
}

func scanWebhookEvent(row rowScanner, event *entity.WebhookEvent) error {
	var (
		customerID        sql.Null[string]
		checkoutSessionID sql.Null[string]
		nextAttemptAt     sql.Null[time.Time]
		lastError         sql.Null[string]
		processedAt       sql.Null[time.Time]
	)

	err := row.Scan(
		&event.ID,
		&event.EventID,
		&event.EventType,
		&event.Kind,
		&customerID,
		&checkoutSessionID,
		&event.Payload,
		&event.Status,
		&event.Attempts,
		&nextAttemptAt,
		&lastError,
		&event.ReceivedAt,
		&processedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return err
	}

	event.CustomerID = ptrFromNull(customerID)
	event.CheckoutSessionID = ptrFromNull(checkoutSessionID)
	event.NextAttemptAt = ptrFromNull(nextAttemptAt)
	event.LastError = ptrFromNull(lastError)
	event.ProcessedAt = ptrFromNull(processedAt)
	return nil
}
