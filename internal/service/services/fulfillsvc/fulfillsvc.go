// Package fulfillsvc runs the side effects recorded as fulfillment intents
// after an order and its payment are committed.
package fulfillsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/deliverysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/expansion"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotMaterialized is returned for stock intents of orders without delivery items yet.
var ErrNotMaterialized = errors.New("order has no delivery items yet")

type materializer interface {
	Expand(ctx context.Context, orderID int64, spec orderspec.OrderSpec) (deliverysvc.Result, error)
}

type stockReducer interface {
	ReduceStock(ctx context.Context, cmd inventorysvc.ReduceStockCommand) (inventorysvc.ReductionResult, error)
}

// FulfillService executes and settles fulfillment intents.
type FulfillService struct {
	newUOW       uow.Factory
	materializer materializer
	reducer      stockReducer
	retryBase    time.Duration
	now          func() time.Time
}

// option is a function that configures the FulfillService.
type option func(*FulfillService)

// MustNewFulfillService creates a new FulfillService.
func MustNewFulfillService(opts ...option) *FulfillService {
	s := &FulfillService{
		retryBase: 30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil || s.materializer == nil || s.reducer == nil {
		panic("fulfillsvc: unit of work, materializer and stock reducer are required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory for the FulfillService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *FulfillService) {
		s.newUOW = f
	}
}

// WithMaterializer sets the delivery item materializer.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMaterializer(m materializer) option {
	return func(s *FulfillService) {
		s.materializer = m
	}
}

// WithStockReducer sets the inventory reconciler.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStockReducer(r stockReducer) option {
	return func(s *FulfillService) {
		s.reducer = r
	}
}

// WithRetryBase sets the base interval of the exponential retry backoff.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetryBase(d time.Duration) option {
	return func(s *FulfillService) {
		if d > 0 {
			s.retryBase = d
		}
	}
}

// NewIntent builds the intent of kind for an order specification. The intent
// is first due for reconciliation grace after now, leaving the request path
// time to execute it.
func NewIntent(
	orderID int64,
	kind intent.Kind,
	spec orderspec.OrderSpec,
	maxRetries int,
	now time.Time,
	grace time.Duration,
) (intent.FulfillmentIntent, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return intent.FulfillmentIntent{}, fmt.Errorf("failed to marshal order spec: %w", err)
	}

	return intent.FulfillmentIntent{
		OrderID:     orderID,
		Kind:        kind,
		Payload:     payload,
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now.Add(grace),
	}, nil
}

// Execute runs intents in order and settles each one. Failures are logged and
// rescheduled, never returned. It reports how many intents succeeded.
func (s *FulfillService) Execute(ctx context.Context, intents []intent.FulfillmentIntent) int {
	succeeded := 0
	for _, in := range intents {
		err := s.Run(ctx, in)
		if err == nil {
			succeeded++
		}
		s.Settle(ctx, in, err)
	}

	return succeeded
}

// Run performs the side effect of one intent.
func (s *FulfillService) Run(ctx context.Context, in intent.FulfillmentIntent) error {
	ctx, span := otel.Tracer("service").Start(ctx, "FulfillService.Run")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", in.OrderID), attribute.String("kind", string(in.Kind)))

	var spec orderspec.OrderSpec
	if err := json.Unmarshal(in.Payload, &spec); err != nil {
		return fmt.Errorf("failed to unmarshal intent payload: %w", err)
	}

	switch in.Kind {
	case intent.KindMaterialize:
		_, err := s.materializer.Expand(ctx, in.OrderID, spec)

		return err
	case intent.KindReduceStock:
		count, err := s.newUOW().DeliveryItems().CountByOrder(ctx, in.OrderID)
		if err != nil {
			return fmt.Errorf("failed to count delivery items: %w", err)
		}
		if count == 0 && !expansion.Build(spec).Empty() {
			return ErrNotMaterialized
		}

		_, err = s.reducer.ReduceStock(ctx, inventorysvc.ReduceStockCommand{OrderID: in.OrderID, Spec: spec})

		return err
	default:
		return fmt.Errorf("unknown intent kind %q", in.Kind)
	}
}

// Settle deletes a succeeded intent or schedules the next attempt of a failed one.
func (s *FulfillService) Settle(ctx context.Context, in intent.FulfillmentIntent, runErr error) {
	repo := s.newUOW().Intents()

	if runErr == nil {
		if err := repo.Delete(ctx, in.ID); err != nil {
			slog.Error("Failed to delete fulfillment intent", "intent_id", in.ID, "error", err)
		}

		return
	}

	retryCount := in.RetryCount + 1
	backoff := time.Duration(math.Pow(2, float64(retryCount))) * s.retryBase
	nextRetryAt := s.now().Add(backoff)

	slog.Error("Fulfillment step failed, will retry",
		"intent_id", in.ID,
		"order_id", in.OrderID,
		"kind", in.Kind,
		"retry_count", retryCount,
		"next_retry", nextRetryAt,
		"error", runErr)

	if retryCount >= in.MaxRetries {
		slog.Error("Fulfillment intent exhausted its retries, manual reconciliation required",
			"intent_id", in.ID,
			"order_id", in.OrderID,
			"kind", in.Kind)
	}

	if err := repo.UpdateRetry(ctx, in.ID, retryCount, runErr.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update fulfillment intent", "intent_id", in.ID, "error", err)
	}
}
