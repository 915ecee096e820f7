package ipaymentrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
)

// IPaymentRepository is an interface for payment repository.
type IPaymentRepository interface {
	Insert(ctx context.Context, p payment.Payment) (payment.Payment, error)
	// GetByID returns dalerr.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id int64) (payment.Payment, error)
	// GetByOrderID returns dalerr.ErrNotFound when the order has no payment.
	GetByOrderID(ctx context.Context, orderID int64) (payment.Payment, error)
	Confirm(ctx context.Context, id int64, c payment.Confirmation) (payment.Payment, error)
	InsertReceipt(ctx context.Context, r payment.Receipt) (payment.Receipt, error)
	ListReceipts(ctx context.Context, paymentID int64) ([]payment.Receipt, error)
}
