package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

// Rows left in processing longer than this are considered abandoned by a crashed worker.
const processingLease = 5 * time.Minute

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, 0, $5, $5
		)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE (status IN ('pending', 'retry') AND (retry_at IS NULL OR retry_at <= NOW()))
			   OR (status = 'processing' AND updated_at < $2)
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count, retry_at,
		          created_at, processed_at, updated_at
	`
	var events []*model.OutboxEvent
	staleBefore := time.Now().UTC().Add(-processingLease)
	if err := r.db.SelectContext(ctx, &events, query, limit, staleBefore); err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = 'processed', error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return requireRow(result, "outbox event")
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'retry',
			error_message = $2,
			retry_count = retry_count + 1,
			retry_at = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, errorMessage, retryAt)
	if err != nil {
		return fmt.Errorf("failed to schedule outbox retry: %w", err)
	}
	return requireRow(result, "outbox event")
}

func (r *outboxRepository) MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errorMessage string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO outbox_events_deadletter (
				event_id, event_type, payload, error_message, retry_count, last_retry_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`
		if _, err := tx.ExecContext(ctx, insert, event.ID, event.EventType, []byte(event.Payload),
			errorMessage, event.RetryCount, event.RetryAt); err != nil {
			return fmt.Errorf("failed to insert dead letter: %w", err)
		}

		update := `
			UPDATE outbox_events
			SET status = 'failed', error_message = $2, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, update, event.ID, errorMessage); err != nil {
			return fmt.Errorf("failed to mark outbox event failed: %w", err)
		}
		return nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
