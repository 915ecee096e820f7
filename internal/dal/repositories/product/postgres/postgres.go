package postgresrepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/jackc/pgx/v5"
)

// PostgresProductRepository represents a Postgres product stock repository.
type PostgresProductRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresProductRepository creates a new Postgres product repository.
func NewPostgresProductRepository(conn postgres.Conn) *PostgresProductRepository {
	return &PostgresProductRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Decrement subtracts the given quantities from product stock in one statement.
// Rows are locked in id order. Unknown product ids are ignored.
func (r *PostgresProductRepository) Decrement(
	ctx context.Context,
	quantities map[int64]int,
) ([]product.Product, error) {
	if len(quantities) == 0 {
		return []product.Product{}, nil
	}

	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	qty := make([]int32, len(ids))
	for i, id := range ids {
		qty[i] = int32(quantities[id])
	}

	sql := `
		UPDATE products p
		SET quantity = p.quantity - v.qty, updated_at = $3
		FROM unnest($1::bigint[], $2::int[]) AS v(id, qty)
		WHERE p.id = v.id
		RETURNING p.id, p.name, p.quantity, p.updated_at
	`

	rows, err := r.conn.Query(ctx, sql, ids, qty, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to decrement product stock: %w", err)
	}

	return scanProducts(rows)
}

// GetByIDs returns the products with the given ids.
func (r *PostgresProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	sql, args, err := r.sb.Select("id", "name", "quantity", "updated_at").
		From("products").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]product.Product, error) {
	defer rows.Close()

	var result []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
