package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/jackc/pgx/v5"
)

var messageColumns = []string{
	"id",
	"message_id",
	"order_id",
	"event_type",
	"exchange",
	"routing_key",
	"payload",
	"content_type",
	"attempts",
	"max_attempts",
	"last_error",
	"created_at",
	"publish_after",
}

// OutboxRepository implements the outbox repository for PostgreSQL.
type OutboxRepository struct {
	conn postgres.Conn
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(conn postgres.Conn) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
	}
}

// Insert stores msg. A repeated message id is ignored.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.Message) error {
	query, args, err := sq.Insert("outbox").
		Columns(messageColumns[1:]...).
		Values(
			msg.MessageID,
			msg.OrderID,
			msg.EventType,
			msg.Exchange,
			msg.RoutingKey,
			msg.Payload,
			msg.ContentType,
			msg.Attempts,
			msg.MaxAttempts,
			msg.LastError,
			msg.CreatedAt,
			msg.PublishAfter,
		).
		Suffix("ON CONFLICT (message_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outbox message %s: %w", msg.MessageID, err)
	}

	return nil
}

// GetDue returns messages with attempts left whose publish_after is not later than now.
func (r *OutboxRepository) GetDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]outbox.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("outbox").
		Where(sq.LtOrEq{"publish_after": now}).
		Where("attempts < max_attempts").
		OrderBy("publish_after ASC", "id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox messages: %w", err)
	}

	return messages, nil
}

func scanMessage(row pgx.CollectableRow) (outbox.Message, error) {
	var m outbox.Message
	err := row.Scan(
		&m.ID,
		&m.MessageID,
		&m.OrderID,
		&m.EventType,
		&m.Exchange,
		&m.RoutingKey,
		&m.Payload,
		&m.ContentType,
		&m.Attempts,
		&m.MaxAttempts,
		&m.LastError,
		&m.CreatedAt,
		&m.PublishAfter,
	)

	return m, err
}

// Delete removes a published message.
func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("outbox").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete outbox message %d: %w", id, err)
	}

	return nil
}

// ScheduleRetry stores the outcome of a failed publish attempt.
func (r *OutboxRepository) ScheduleRetry(ctx context.Context, id int64, retry outbox.Retry) error {
	query, args, err := sq.Update("outbox").
		SetMap(map[string]any{
			"attempts":      retry.Attempts,
			"last_error":    retry.LastError,
			"publish_after": retry.PublishAfter,
		}).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to schedule retry of outbox message %d: %w", id, err)
	}

	return nil
}
