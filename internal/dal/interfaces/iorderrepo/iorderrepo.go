package iorderrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
)

// IOrderRepository is an interface for order repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	// GetByID returns dalerr.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id int64) (order.Order, error)
	UpdateStatus(ctx context.Context, id int64, status order.Status) error
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}
