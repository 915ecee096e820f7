package postgresrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var deliveryItemColumns = []string{
	"id",
	"order_id",
	"user_id",
	"menu_item_id",
	"quantity",
	"delivery_date",
	"delivery_time_slot",
	"address_id",
	"status",
	"delivery_note",
	"created_at",
	"updated_at",
}

// DeliveryItemDal represents delivery item data access layer model.
type DeliveryItemDal struct {
	Id               int64     `db:"id"`
	OrderId          int64     `db:"order_id"`
	UserId           int64     `db:"user_id"`
	MenuItemId       int64     `db:"menu_item_id"`
	Quantity         int       `db:"quantity"`
	DeliveryDate     time.Time `db:"delivery_date"`
	DeliveryTimeSlot string    `db:"delivery_time_slot"`
	AddressId        int64     `db:"address_id"`
	Status           string    `db:"status"`
	DeliveryNote     string    `db:"delivery_note"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// ToModel converts DeliveryItemDal to service layer DeliveryItem model.
func (d *DeliveryItemDal) ToModel() deliveryitem.DeliveryItem {
	return deliveryitem.DeliveryItem{
		ID:               d.Id,
		OrderID:          d.OrderId,
		UserID:           d.UserId,
		MenuItemID:       d.MenuItemId,
		Quantity:         d.Quantity,
		DeliveryDate:     d.DeliveryDate,
		DeliveryTimeSlot: meal.Slot(d.DeliveryTimeSlot),
		AddressID:        d.AddressId,
		Status:           deliveryitem.Status(d.Status),
		DeliveryNote:     d.DeliveryNote,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func scanDeliveryItems(rows pgx.Rows) ([]deliveryitem.DeliveryItem, error) {
	defer rows.Close()

	var result []deliveryitem.DeliveryItem
	for rows.Next() {
		var (
			dal                  DeliveryItemDal
			deliveryDate         pgtype.Date
			createdAt, updatedAt pgtype.Timestamptz
		)

		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.UserId,
			&dal.MenuItemId,
			&dal.Quantity,
			&deliveryDate,
			&dal.DeliveryTimeSlot,
			&dal.AddressId,
			&dal.Status,
			&dal.DeliveryNote,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery item: %w", err)
		}

		dal.DeliveryDate = deliveryDate.Time
		dal.CreatedAt = createdAt.Time
		dal.UpdatedAt = updatedAt.Time

		result = append(result, dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// PostgresDeliveryItemRepository represents a Postgres delivery item repository.
type PostgresDeliveryItemRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresDeliveryItemRepository creates a new Postgres delivery item repository.
func NewPostgresDeliveryItemRepository(conn postgres.Conn) *PostgresDeliveryItemRepository {
	return &PostgresDeliveryItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CountByOrder returns the number of delivery items of an order.
func (r *PostgresDeliveryItemRepository) CountByOrder(ctx context.Context, orderID int64) (int, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		From("delivery_items").
		Where(sq.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count delivery items: %w", err)
	}

	return count, nil
}

// BulkInsert inserts delivery items in one statement and returns them with IDs.
// Columns are passed as parallel arrays and zipped with unnest.
func (r *PostgresDeliveryItemRepository) BulkInsert(
	ctx context.Context,
	items []deliveryitem.DeliveryItem,
) ([]deliveryitem.DeliveryItem, error) {
	if len(items) == 0 {
		return []deliveryitem.DeliveryItem{}, nil
	}

	n := len(items)
	var (
		orderIDs   = make([]int64, n)
		userIDs    = make([]int64, n)
		menuIDs    = make([]int64, n)
		quantities = make([]int32, n)
		dates      = make([]pgtype.Date, n)
		slots      = make([]string, n)
		addressIDs = make([]int64, n)
		statuses   = make([]string, n)
		notes      = make([]string, n)
		createdAt  = make([]pgtype.Timestamptz, n)
		updatedAt  = make([]pgtype.Timestamptz, n)
	)
	for i, it := range items {
		orderIDs[i] = it.OrderID
		userIDs[i] = it.UserID
		menuIDs[i] = it.MenuItemID
		quantities[i] = int32(it.Quantity)
		dates[i] = pgtype.Date{Time: it.DeliveryDate, Valid: true}
		slots[i] = it.DeliveryTimeSlot.String()
		addressIDs[i] = it.AddressID
		statuses[i] = string(it.Status)
		notes[i] = it.DeliveryNote
		createdAt[i] = pgtype.Timestamptz{Time: it.CreatedAt, Valid: true}
		updatedAt[i] = pgtype.Timestamptz{Time: it.UpdatedAt, Valid: true}
	}

	sql := `
		INSERT INTO delivery_items (order_id, user_id, menu_item_id, quantity, delivery_date, delivery_time_slot, address_id, status, delivery_note, created_at, updated_at)
		SELECT * FROM unnest(
			$1::bigint[], $2::bigint[], $3::bigint[], $4::int[], $5::date[], $6::text[],
			$7::bigint[], $8::text[], $9::text[], $10::timestamptz[], $11::timestamptz[]
		)
		RETURNING ` + strings.Join(deliveryItemColumns, ", ")

	rows, err := r.conn.Query(ctx, sql,
		orderIDs, userIDs, menuIDs, quantities, dates, slots,
		addressIDs, statuses, notes, createdAt, updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert delivery items: %w", err)
	}

	return scanDeliveryItems(rows)
}

// Query retrieves delivery items based on filter criteria.
func (r *PostgresDeliveryItemRepository) Query(
	ctx context.Context,
	filter *deliveryitem.QueryDeliveryItemsModel,
) ([]deliveryitem.DeliveryItem, error) {
	query := r.sb.Select(deliveryItemColumns...).
		From("delivery_items").
		OrderBy("delivery_date", "id")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	if len(filter.UserIds) > 0 {
		query = query.Where(sq.Eq{"user_id": filter.UserIds})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if !filter.From.IsZero() {
		query = query.Where(sq.GtOrEq{"delivery_date": pgtype.Date{Time: filter.From, Valid: true}})
	}

	if !filter.To.IsZero() {
		query = query.Where(sq.LtOrEq{"delivery_date": pgtype.Date{Time: filter.To, Valid: true}})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery items: %w", err)
	}

	return scanDeliveryItems(rows)
}

// UpdateStatus sets the status of the given delivery items and returns how many were updated.
func (r *PostgresDeliveryItemRepository) UpdateStatus(
	ctx context.Context,
	ids []int64,
	status deliveryitem.Status,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sql, args, err := r.sb.Update("delivery_items").
		Set("status", string(status)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update delivery item status: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
