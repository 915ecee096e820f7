package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
)

// PostgresAddressRepository represents a Postgres address repository.
type PostgresAddressRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresAddressRepository creates a new Postgres address repository.
func NewPostgresAddressRepository(conn postgres.Conn) *PostgresAddressRepository {
	return &PostgresAddressRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert inserts an address and returns it with its ID.
func (r *PostgresAddressRepository) Insert(ctx context.Context, a address.Address) (address.Address, error) {
	sql, args, err := r.sb.Insert("addresses").
		Columns(
			"user_id",
			"created_by",
			"label",
			"line1",
			"line2",
			"city",
			"state",
			"postal_code",
			"phone",
			"latitude",
			"longitude",
			"created_at",
			"updated_at",
		).
		Values(
			a.UserID,
			a.CreatedBy,
			a.Label,
			a.Line1,
			a.Line2,
			a.City,
			a.State,
			a.PostalCode,
			a.Phone,
			a.Latitude,
			a.Longitude,
			a.CreatedAt,
			a.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return address.Address{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&a.ID); err != nil {
		return address.Address{}, fmt.Errorf("failed to insert address: %w", err)
	}

	return a, nil
}
