package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerr"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultPageSize = 50

// OrderDetails is an order together with its payment and delivery items.
type OrderDetails struct {
	Order         order.Order                 `json:"order"`
	Payment       *payment.Payment            `json:"payment"`
	DeliveryItems []deliveryitem.DeliveryItem `json:"deliveryItems"`
}

// ListOrdersQuery filters orders. Page starts at 1.
type ListOrdersQuery struct {
	Ids      []int64
	UserIds  []int64
	Page     int
	PageSize int
}

// CancelResult reports a cancellation.
type CancelResult struct {
	CancelledCount int  `json:"cancelledCount"`
	OrderCancelled bool `json:"orderCancelled"`
}

// OrderService is a service for reading orders and managing their delivery items.
type OrderService struct {
	newUOW uow.Factory
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *OrderService) {
		s.newUOW = f
	}
}

// GetOrder returns an order with its payment, if any, and its delivery items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (OrderDetails, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID))

	repos := s.newUOW()

	o, err := repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return OrderDetails{}, fmt.Errorf("%w: %d", errs.ErrOrderNotFound, orderID)
		}

		return OrderDetails{}, fmt.Errorf("failed to get order: %w", err)
	}

	details := OrderDetails{Order: o}

	p, err := repos.Payments().GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		details.Payment = &p
	case !errors.Is(err, dalerr.ErrNotFound):
		return OrderDetails{}, fmt.Errorf("failed to get payment of order: %w", err)
	}

	items, err := repos.DeliveryItems().Query(ctx, &deliveryitem.QueryDeliveryItemsModel{
		OrderIds: []int64{orderID},
	})
	if err != nil {
		return OrderDetails{}, fmt.Errorf("failed to get delivery items: %w", err)
	}
	details.DeliveryItems = nonNil(items)

	return details, nil
}

// ListOrders retrieves orders with their delivery items based on filter.
func (s *OrderService) ListOrders(ctx context.Context, q ListOrdersQuery) ([]OrderDetails, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ListOrders")
	defer span.End()

	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	repos := s.newUOW()

	orders, err := repos.Orders().Query(ctx, &order.QueryOrdersModel{
		Ids:     q.Ids,
		UserIds: q.UserIds,
		Limit:   q.PageSize,
		Offset:  (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	if len(orders) == 0 {
		return []OrderDetails{}, nil
	}

	itemQuery := &deliveryitem.QueryDeliveryItemsModel{}
	for _, o := range orders {
		itemQuery.OrderIds = append(itemQuery.OrderIds, o.ID)
	}
	items, err := repos.DeliveryItems().Query(ctx, itemQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery items: %w", err)
	}

	byOrder := make(map[int64][]deliveryitem.DeliveryItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	out := make([]OrderDetails, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderDetails{Order: o, DeliveryItems: nonNil(byOrder[o.ID])})
	}

	return out, nil
}

// ListDeliveryItems returns the delivery items matching filter.
func (s *OrderService) ListDeliveryItems(
	ctx context.Context,
	filter deliveryitem.QueryDeliveryItemsModel,
) ([]deliveryitem.DeliveryItem, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ListDeliveryItems")
	defer span.End()

	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, errs.Validation("to", "must not be before from")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}

	items, err := s.newUOW().DeliveryItems().Query(ctx, &filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery items: %w", err)
	}

	return nonNil(items), nil
}

// UpdateDeliveryItemStatus sets the status of one delivery item. An order whose
// items end up all cancelled is cancelled in the same transaction.
func (s *OrderService) UpdateDeliveryItemStatus(
	ctx context.Context,
	itemID int64,
	status deliveryitem.Status,
) (deliveryitem.DeliveryItem, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.UpdateDeliveryItemStatus")
	defer span.End()
	span.SetAttributes(attribute.Int64("delivery_item_id", itemID), attribute.String("status", string(status)))

	if _, err := deliveryitem.ParseStatus(string(status)); err != nil {
		return deliveryitem.DeliveryItem{}, errs.Validation("status", err.Error())
	}

	var updated deliveryitem.DeliveryItem

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		items, err := work.DeliveryItems().Query(ctx, &deliveryitem.QueryDeliveryItemsModel{Ids: []int64{itemID}})
		if err != nil {
			return fmt.Errorf("failed to get delivery item: %w", err)
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: %d", errs.ErrDeliveryItemNotFound, itemID)
		}

		if _, err := work.DeliveryItems().UpdateStatus(ctx, []int64{itemID}, status); err != nil {
			return fmt.Errorf("failed to update delivery item status: %w", err)
		}
		updated = items[0]
		updated.Status = status

		if status != deliveryitem.StatusCancelled {
			return nil
		}

		_, err = cascadeCancel(ctx, work, updated.OrderID)

		return err
	})
	if err != nil {
		return deliveryitem.DeliveryItem{}, err
	}

	return updated, nil
}

// CancelDeliveryItems cancels the listed delivery items of an order, or all of
// them when none are listed. Stock is never restored.
func (s *OrderService) CancelDeliveryItems(
	ctx context.Context,
	orderID int64,
	itemIDs []int64,
) (CancelResult, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.CancelDeliveryItems")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID), attribute.Int("requested", len(itemIDs)))

	var res CancelResult

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		if _, err := work.Orders().GetByID(ctx, orderID); err != nil {
			if errors.Is(err, dalerr.ErrNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrOrderNotFound, orderID)
			}

			return fmt.Errorf("failed to get order: %w", err)
		}

		items, err := work.DeliveryItems().Query(ctx, &deliveryitem.QueryDeliveryItemsModel{OrderIds: []int64{orderID}})
		if err != nil {
			return fmt.Errorf("failed to get delivery items: %w", err)
		}

		ids, err := selectItems(items, itemIDs)
		if err != nil {
			return err
		}

		if len(ids) > 0 {
			if res.CancelledCount, err = work.DeliveryItems().UpdateStatus(ctx, ids, deliveryitem.StatusCancelled); err != nil {
				return fmt.Errorf("failed to cancel delivery items: %w", err)
			}
		}

		if len(items) == 0 {
			if err := work.Orders().UpdateStatus(ctx, orderID, order.StatusCancelled); err != nil {
				return fmt.Errorf("failed to cancel order: %w", err)
			}
			res.OrderCancelled = true

			return nil
		}

		res.OrderCancelled, err = cascadeCancel(ctx, work, orderID)

		return err
	})
	if err != nil {
		return CancelResult{}, err
	}

	slog.Info("Delivery items cancelled",
		"order_id", orderID,
		"count", res.CancelledCount,
		"order_cancelled", res.OrderCancelled)

	return res, nil
}

// selectItems returns the ids of items to cancel. Requested ids must belong to the order.
func selectItems(items []deliveryitem.DeliveryItem, requested []int64) ([]int64, error) {
	if len(requested) == 0 {
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			if it.Status != deliveryitem.StatusCancelled {
				ids = append(ids, it.ID)
			}
		}

		return ids, nil
	}

	owned := make(map[int64]bool, len(items))
	for _, it := range items {
		owned[it.ID] = true
	}

	ids := make([]int64, 0, len(requested))
	seen := make(map[int64]bool, len(requested))
	for _, id := range requested {
		if !owned[id] {
			return nil, fmt.Errorf("%w: %d", errs.ErrDeliveryItemNotFound, id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// cascadeCancel cancels the order when every one of its delivery items is cancelled.
func cascadeCancel(ctx context.Context, work uow.Repositories, orderID int64) (bool, error) {
	items, err := work.DeliveryItems().Query(ctx, &deliveryitem.QueryDeliveryItemsModel{OrderIds: []int64{orderID}})
	if err != nil {
		return false, fmt.Errorf("failed to get delivery items: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	for _, it := range items {
		if it.Status != deliveryitem.StatusCancelled {
			return false, nil
		}
	}

	if err := work.Orders().UpdateStatus(ctx, orderID, order.StatusCancelled); err != nil {
		return false, fmt.Errorf("failed to cancel order: %w", err)
	}
	slog.Info("Order cancelled, all delivery items cancelled", "order_id", orderID)

	return true, nil
}

func nonNil(items []deliveryitem.DeliveryItem) []deliveryitem.DeliveryItem {
	if items == nil {
		return []deliveryitem.DeliveryItem{}
	}

	return items
}
