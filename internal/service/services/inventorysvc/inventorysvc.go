package inventorysvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/expansion"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ReduceStockCommand asks for the stock of an order to be reduced.
type ReduceStockCommand struct {
	OrderID int64
	Spec    orderspec.OrderSpec
}

// ReductionResult reports the outcome of a stock reduction.
type ReductionResult struct {
	// AlreadyReduced is set when the order's stock had been reduced before.
	AlreadyReduced bool
	Units          map[int64]int
	Products       []product.Product
	// BelowZero lists products whose stock is negative after the reduction.
	BelowZero []int64
}

// InventoryService keeps product stock in line with materialized orders.
type InventoryService struct {
	newUOW uow.Factory
	now    func() time.Time
}

// option is a function that configures the InventoryService.
type option func(*InventoryService)

// MustNewInventoryService creates a new InventoryService.
func MustNewInventoryService(opts ...option) *InventoryService {
	s := &InventoryService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("inventorysvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory for the InventoryService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *InventoryService) {
		s.newUOW = f
	}
}

// ReduceStock decrements product stock by the quantities planned for the order,
// skipped meals excluded. An order reduces stock at most once: the reduction is
// recorded in a ledger row claimed in the same transaction as the decrement.
// Stock may go negative.
func (s *InventoryService) ReduceStock(ctx context.Context, cmd ReduceStockCommand) (ReductionResult, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.ReduceStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", cmd.OrderID))

	plan := expansion.Build(cmd.Spec)
	units := plan.UnitsByProduct()
	result := ReductionResult{Units: units}
	if len(units) == 0 {
		return result, nil
	}

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		claimed, err := work.StockReductions().Claim(ctx, cmd.OrderID, plan.Units(), s.now())
		if err != nil {
			return err
		}
		if !claimed {
			result.AlreadyReduced = true

			return nil
		}

		result.Products, err = work.Products().Decrement(ctx, units)

		return err
	})
	if err != nil {
		return ReductionResult{}, fmt.Errorf("failed to reduce stock: %w", err)
	}

	if result.AlreadyReduced {
		slog.Info("Stock already reduced for order", "order_id", cmd.OrderID)

		return result, nil
	}

	for _, p := range result.Products {
		if p.Quantity < 0 {
			result.BelowZero = append(result.BelowZero, p.ID)
			slog.Warn("Product stock below zero",
				"order_id", cmd.OrderID,
				"product_id", p.ID,
				"quantity", p.Quantity)
		}
	}

	slog.Info("Stock reduced", "order_id", cmd.OrderID, "products", len(result.Products), "units", plan.Units())

	return result, nil
}
