package ideliveryitemrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
)

// IDeliveryItemRepository is an interface for delivery item repository.
type IDeliveryItemRepository interface {
	CountByOrder(ctx context.Context, orderID int64) (int, error)
	BulkInsert(ctx context.Context, items []deliveryitem.DeliveryItem) ([]deliveryitem.DeliveryItem, error)
	Query(
		ctx context.Context,
		filter *deliveryitem.QueryDeliveryItemsModel,
	) ([]deliveryitem.DeliveryItem, error)
	// UpdateStatus returns the number of updated rows.
	UpdateStatus(ctx context.Context, ids []int64, status deliveryitem.Status) (int, error)
}
