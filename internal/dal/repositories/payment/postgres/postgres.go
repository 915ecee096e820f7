package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerr"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var paymentColumns = []string{
	"id",
	"user_id",
	"order_id",
	"payment_method",
	"payment_amount",
	"payment_date",
	"receipt_url",
	"external_receipt_url",
	"uploaded_receipt_type",
	"payment_status",
	"created_at",
	"updated_at",
}

// PaymentDal represents payment data access layer model
type PaymentDal struct {
	Id                  int64           `db:"id"`
	UserId              int64           `db:"user_id"`
	OrderId             int64           `db:"order_id"`
	PaymentMethod       string          `db:"payment_method"`
	PaymentAmount       decimal.Decimal `db:"payment_amount"`
	PaymentDate         *time.Time      `db:"payment_date"`
	ReceiptUrl          string          `db:"receipt_url"`
	ExternalReceiptUrl  string          `db:"external_receipt_url"`
	UploadedReceiptType string          `db:"uploaded_receipt_type"`
	PaymentStatus       string          `db:"payment_status"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// ToModel converts PaymentDal to service layer Payment model
func (p *PaymentDal) ToModel() payment.Payment {
	return payment.Payment{
		ID:                  p.Id,
		UserID:              p.UserId,
		OrderID:             p.OrderId,
		Method:              payment.Method(p.PaymentMethod),
		Amount:              p.PaymentAmount,
		PaymentDate:         p.PaymentDate,
		ReceiptURL:          p.ReceiptUrl,
		ExternalReceiptURL:  p.ExternalReceiptUrl,
		UploadedReceiptType: payment.ReceiptType(p.UploadedReceiptType),
		Status:              payment.Status(p.PaymentStatus),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func (p *PaymentDal) scanTargets() []any {
	return []any{
		&p.Id,
		&p.UserId,
		&p.OrderId,
		&p.PaymentMethod,
		&p.PaymentAmount,
		&p.PaymentDate,
		&p.ReceiptUrl,
		&p.ExternalReceiptUrl,
		&p.UploadedReceiptType,
		&p.PaymentStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

// PostgresPaymentRepository represents a Postgres payment repository.
type PostgresPaymentRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresPaymentRepository creates a new Postgres payment repository.
func NewPostgresPaymentRepository(conn postgres.Conn) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert inserts a payment and returns it with its ID.
func (r *PostgresPaymentRepository) Insert(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	sql, args, err := r.sb.Insert("payments").
		Columns(paymentColumns[1:]...).
		Values(
			p.UserID,
			p.OrderID,
			string(p.Method),
			p.Amount,
			p.PaymentDate,
			p.ReceiptURL,
			p.ExternalReceiptURL,
			string(p.UploadedReceiptType),
			string(p.Status),
			p.CreatedAt,
			p.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return payment.Payment{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&p.ID); err != nil {
		return payment.Payment{}, fmt.Errorf("failed to insert payment: %w", err)
	}

	return p, nil
}

// GetByID retrieves a payment by its ID.
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (payment.Payment, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByOrderID retrieves the first payment of an order.
func (r *PostgresPaymentRepository) GetByOrderID(ctx context.Context, orderID int64) (payment.Payment, error) {
	return r.getOne(ctx, sq.Eq{"order_id": orderID})
}

func (r *PostgresPaymentRepository) getOne(ctx context.Context, pred sq.Eq) (payment.Payment, error) {
	sql, args, err := r.sb.Select(paymentColumns...).
		From("payments").
		Where(pred).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return payment.Payment{}, fmt.Errorf("failed to build query: %w", err)
	}

	var dal PaymentDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Payment{}, dalerr.ErrNotFound
		}

		return payment.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}

	return dal.ToModel(), nil
}

// Confirm attaches receipt data to a payment and marks it confirmed.
// Empty receipt fields keep their stored value.
func (r *PostgresPaymentRepository) Confirm(
	ctx context.Context,
	id int64,
	c payment.Confirmation,
) (payment.Payment, error) {
	sql, args, err := r.sb.Update("payments").
		Set("receipt_url", sq.Expr("COALESCE(NULLIF(?, ''), receipt_url)", c.ReceiptURL)).
		Set("external_receipt_url", sq.Expr("COALESCE(NULLIF(?, ''), external_receipt_url)", c.ExternalReceiptURL)).
		Set("uploaded_receipt_type", sq.Expr("COALESCE(NULLIF(?, ''), uploaded_receipt_type)", string(c.ReceiptType))).
		Set("payment_date", c.PaymentDate).
		Set("payment_status", string(payment.StatusConfirmed)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(paymentColumns, ", ")).
		ToSql()
	if err != nil {
		return payment.Payment{}, fmt.Errorf("failed to build update query: %w", err)
	}

	var dal PaymentDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Payment{}, dalerr.ErrNotFound
		}

		return payment.Payment{}, fmt.Errorf("failed to confirm payment: %w", err)
	}

	return dal.ToModel(), nil
}

// InsertReceipt stores receipt metadata of a payment.
func (r *PostgresPaymentRepository) InsertReceipt(ctx context.Context, rc payment.Receipt) (payment.Receipt, error) {
	sql, args, err := r.sb.Insert("payment_receipts").
		Columns("payment_id", "url", "receipt_type", "created_at").
		Values(rc.PaymentID, rc.URL, string(rc.ReceiptType), rc.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return payment.Receipt{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&rc.ID); err != nil {
		return payment.Receipt{}, fmt.Errorf("failed to insert payment receipt: %w", err)
	}

	return rc, nil
}

// ListReceipts returns the receipts of a payment in upload order.
func (r *PostgresPaymentRepository) ListReceipts(ctx context.Context, paymentID int64) ([]payment.Receipt, error) {
	sql, args, err := r.sb.Select("id", "payment_id", "url", "receipt_type", "created_at").
		From("payment_receipts").
		Where(sq.Eq{"payment_id": paymentID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment receipts: %w", err)
	}
	defer rows.Close()

	var result []payment.Receipt
	for rows.Next() {
		var (
			rc    payment.Receipt
			rtype string
		)
		if err := rows.Scan(&rc.ID, &rc.PaymentID, &rc.URL, &rtype, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment receipt: %w", err)
		}
		rc.ReceiptType = payment.ReceiptType(rtype)
		result = append(result, rc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
