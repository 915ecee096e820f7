package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
)

// MaterializationRepository stores one row per order whose delivery items exist.
type MaterializationRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewMaterializationRepository creates a new materialization marker repository.
func NewMaterializationRepository(conn postgres.Conn) *MaterializationRepository {
	return &MaterializationRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Claim inserts the marker of an order. It reports false when another
// transaction already claimed it.
func (r *MaterializationRepository) Claim(
	ctx context.Context,
	orderID int64,
	itemCount int,
	at time.Time,
) (bool, error) {
	return claim(ctx, r.conn, r.sb.Insert("order_materializations").
		Columns("order_id", "item_count", "created_at").
		Values(orderID, itemCount, at))
}

// StockReductionRepository stores one ledger row per order whose stock was reduced.
type StockReductionRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewStockReductionRepository creates a new stock reduction ledger repository.
func NewStockReductionRepository(conn postgres.Conn) *StockReductionRepository {
	return &StockReductionRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Claim inserts the ledger entry of an order. It reports false when the
// stock of the order was already reduced.
func (r *StockReductionRepository) Claim(
	ctx context.Context,
	orderID int64,
	units int,
	at time.Time,
) (bool, error) {
	return claim(ctx, r.conn, r.sb.Insert("stock_reductions").
		Columns("order_id", "units", "created_at").
		Values(orderID, units, at))
}

func claim(ctx context.Context, conn postgres.Conn, insert sq.InsertBuilder) (bool, error) {
	sql, args, err := insert.Suffix("ON CONFLICT (order_id) DO NOTHING").ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build claim query: %w", err)
	}

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to claim order marker: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
