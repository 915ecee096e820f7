package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
)

var intentColumns = []string{
	"id",
	"order_id",
	"kind",
	"payload",
	"retry_count",
	"max_retries",
	"last_error",
	"created_at",
	"updated_at",
	"next_retry_at",
}

// IntentRepository implements the fulfillment intent repository for PostgreSQL.
type IntentRepository struct {
	conn postgres.Conn
}

// NewIntentRepository creates a new intent repository.
func NewIntentRepository(conn postgres.Conn) *IntentRepository {
	return &IntentRepository{
		conn: conn,
	}
}

// Insert adds a new intent.
func (r *IntentRepository) Insert(
	ctx context.Context,
	in intent.FulfillmentIntent,
) (intent.FulfillmentIntent, error) {
	query, args, err := sq.Insert("fulfillment_intents").
		Columns(intentColumns[1:]...).
		Values(
			in.OrderID,
			string(in.Kind),
			in.Payload,
			in.RetryCount,
			in.MaxRetries,
			in.LastError,
			in.CreatedAt,
			in.UpdatedAt,
			in.NextRetryAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return intent.FulfillmentIntent{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&in.ID); err != nil {
		return intent.FulfillmentIntent{}, fmt.Errorf("failed to insert intent: %w", err)
	}

	return in, nil
}

// GetPending retrieves intents that are due for a retry.
func (r *IntentRepository) GetPending(
	ctx context.Context,
	limit int,
) ([]intent.FulfillmentIntent, error) {
	query, args, err := sq.Select(intentColumns...).
		From("fulfillment_intents").
		Where(sq.LtOrEq{"next_retry_at": time.Now()}).
		Where(sq.Expr("retry_count < max_retries")).
		OrderBy("next_retry_at ASC", "id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intents: %w", err)
	}
	defer rows.Close()

	var intents []intent.FulfillmentIntent
	for rows.Next() {
		var (
			in   intent.FulfillmentIntent
			kind string
		)
		err := rows.Scan(
			&in.ID,
			&in.OrderID,
			&kind,
			&in.Payload,
			&in.RetryCount,
			&in.MaxRetries,
			&in.LastError,
			&in.CreatedAt,
			&in.UpdatedAt,
			&in.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		in.Kind = intent.Kind(kind)
		intents = append(intents, in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intents: %w", err)
	}

	return intents, nil
}

// Delete removes an intent after its side effect succeeded.
func (r *IntentRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("fulfillment_intents").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete intent: %w", err)
	}

	return nil
}

// UpdateRetry updates retry count and error information.
func (r *IntentRepository) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	query, args, err := sq.Update("fulfillment_intents").
		Set("retry_count", retryCount).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update intent: %w", err)
	}

	return nil
}
