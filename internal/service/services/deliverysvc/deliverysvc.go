package deliverysvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerr"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/event"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/expansion"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/intake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultOutboxRetries = 5

// Result reports the outcome of a materialization.
type Result struct {
	CreatedCount        int
	SkippedCount        int
	DeliveryItems       []deliveryitem.DeliveryItem
	AlreadyMaterialized bool
	ExistingCount       int
}

// DeliveryItemsCount returns how many delivery items the order has afterwards.
func (r Result) DeliveryItemsCount() int {
	if r.AlreadyMaterialized {
		return r.ExistingCount
	}

	return r.CreatedCount
}

// DeliveryService materializes orders into delivery items.
type DeliveryService struct {
	newUOW        uow.Factory
	exchange      string
	queue         string
	outboxRetries int
	now           func() time.Time
}

// option is a function that configures the DeliveryService.
type option func(*DeliveryService)

// MustNewDeliveryService creates a new DeliveryService.
func MustNewDeliveryService(opts ...option) *DeliveryService {
	s := &DeliveryService{
		outboxRetries: defaultOutboxRetries,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("deliverysvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory for the DeliveryService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *DeliveryService) {
		s.newUOW = f
	}
}

// WithEventDestination sets where delivery item events are published.
// An empty exchange routes to queue through the default exchange.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventDestination(exchange, queue string, maxRetries int) option {
	return func(s *DeliveryService) {
		s.exchange = exchange
		s.queue = queue
		if maxRetries > 0 {
			s.outboxRetries = maxRetries
		}
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *DeliveryService) {
		s.now = now
	}
}

// MaterializeAfterPayment creates the delivery items of an existing order from raw
// order data. Orders that already have delivery items are reported as such.
func (s *DeliveryService) MaterializeAfterPayment(
	ctx context.Context,
	orderID int64,
	raw any,
) (Result, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "DeliveryService.MaterializeAfterPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID))

	repos := s.newUOW()

	o, err := repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %d", errs.ErrOrderNotFound, orderID)
		}

		return Result{}, fmt.Errorf("failed to get order: %w", err)
	}

	existing, err := repos.DeliveryItems().CountByOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count delivery items: %w", err)
	}
	if existing > 0 {
		slog.Info("Delivery items already exist", "order_id", orderID, "count", existing)

		return Result{AlreadyMaterialized: true, ExistingCount: existing}, nil
	}

	spec, err := intake.Normalize(raw,
		intake.WithDefaultUserID(o.UserID),
		intake.WithDefaultAddressID(o.DeliveryAddressID),
	)
	if err != nil {
		return Result{}, err
	}
	spec.UserID = o.UserID

	return s.Expand(ctx, orderID, spec)
}

// Expand persists the delivery items planned for spec under orderID, exactly once.
// The existing item count is checked before and again inside the creation
// transaction, which also claims the order's materialization marker. Losing the
// race is reported as an already materialized result, not as an error.
func (s *DeliveryService) Expand(ctx context.Context, orderID int64, spec orderspec.OrderSpec) (Result, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "DeliveryService.Expand")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID), attribute.String("strategy", string(spec.Strategy)))

	existing, err := s.newUOW().DeliveryItems().CountByOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count delivery items: %w", err)
	}
	if existing > 0 {
		return Result{AlreadyMaterialized: true, ExistingCount: existing}, nil
	}

	plan := expansion.Build(spec)
	if plan.Empty() {
		slog.Info("Nothing to deliver, every meal skipped", "order_id", orderID, "skipped", plan.Skipped)

		return Result{SkippedCount: plan.Skipped, DeliveryItems: []deliveryitem.DeliveryItem{}}, nil
	}

	now := s.now()
	items := plan.Items(orderID, spec.UserID, spec.DeliveryNote, now)

	work := s.newUOW()
	err = uow.Run(ctx, work, func(ctx context.Context) error {
		count, err := work.DeliveryItems().CountByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to recount delivery items: %w", err)
		}
		if count > 0 {
			return errs.ErrAlreadyMaterialized
		}

		claimed, err := work.Materializations().Claim(ctx, orderID, len(items), now)
		if err != nil {
			return err
		}
		if !claimed {
			return errs.ErrAlreadyMaterialized
		}

		items, err = work.DeliveryItems().BulkInsert(ctx, items)
		if err != nil {
			return err
		}

		if err := work.Orders().UpdateStatus(ctx, orderID, order.StatusConfirmed); err != nil {
			if errors.Is(err, dalerr.ErrNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrOrderNotFound, orderID)
			}

			return err
		}

		msg, err := s.createdEvent(orderID, spec.UserID, items, plan.Skipped, now)
		if err != nil {
			return err
		}

		return work.Outbox().Insert(ctx, msg)
	})
	if errors.Is(err, errs.ErrAlreadyMaterialized) {
		existing, cErr := s.newUOW().DeliveryItems().CountByOrder(ctx, orderID)
		if cErr != nil {
			return Result{}, fmt.Errorf("failed to count delivery items: %w", cErr)
		}
		slog.Info("Delivery items created concurrently", "order_id", orderID, "count", existing)

		return Result{AlreadyMaterialized: true, ExistingCount: existing}, nil
	}
	if err != nil {
		return Result{}, err
	}

	slog.Info("Delivery items created",
		"order_id", orderID,
		"created", len(items),
		"skipped", plan.Skipped)

	return Result{
		CreatedCount:  len(items),
		SkippedCount:  plan.Skipped,
		DeliveryItems: items,
	}, nil
}

func (s *DeliveryService) createdEvent(
	orderID, userID int64,
	items []deliveryitem.DeliveryItem,
	skipped int,
	now time.Time,
) (outbox.Message, error) {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	payload, err := json.Marshal(event.DeliveryItemsCreated{
		OrderID:         orderID,
		UserID:          userID,
		CreatedCount:    len(items),
		SkippedCount:    skipped,
		DeliveryItemIDs: ids,
		OccurredAt:      now,
	})
	if err != nil {
		return outbox.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := event.RoutingKeyDeliveryItemsCreated
	if s.exchange == "" {
		routingKey = s.queue
	}

	return outbox.Message{
		MessageID:    uuid.NewString(),
		OrderID:      orderID,
		EventType:    event.RoutingKeyDeliveryItemsCreated,
		Exchange:     s.exchange,
		RoutingKey:   routingKey,
		Payload:      payload,
		ContentType:  "application/json",
		MaxAttempts:  s.outboxRetries,
		CreatedAt:    now,
		PublishAfter: now,
	}, nil
}
