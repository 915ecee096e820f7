package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/deliverysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessIntentsCompletesFulfillment(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 101, Quantity: 20})
	o := store.SeedOrder(order.Order{UserID: 7, DeliveryAddressID: 11, Status: order.StatusPaymentConfirmed})
	factory := store.Factory()

	spec := orderspec.OrderSpec{
		UserID:            7,
		SelectedDates:     []time.Time{time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
		OrderItems:        []orderspec.Item{{MenuItemID: 101, Quantity: 1}},
		OrderTimes:        []meal.Slot{meal.SlotBreakfast, meal.SlotLunch, meal.SlotDinner},
		DeliveryAddressID: 11,
		Strategy:          orderspec.StrategyFixedSlot,
	}
	payload, err := json.Marshal(spec)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	for _, kind := range []intent.Kind{intent.KindMaterialize, intent.KindReduceStock} {
		_, err := factory().Intents().Insert(context.Background(), intent.FulfillmentIntent{
			OrderID:     o.ID,
			Kind:        kind,
			Payload:     payload,
			RetryCount:  1,
			MaxRetries:  5,
			CreatedAt:   past,
			UpdatedAt:   past,
			NextRetryAt: past,
		})
		require.NoError(t, err)
	}

	fulfill := fulfillsvc.MustNewFulfillService(
		fulfillsvc.WithUnitOfWork(factory),
		fulfillsvc.WithMaterializer(deliverysvc.MustNewDeliveryService(deliverysvc.WithUnitOfWork(factory))),
		fulfillsvc.WithStockReducer(inventorysvc.MustNewInventoryService(inventorysvc.WithUnitOfWork(factory))),
	)
	w := NewWorker(factory, fulfill)

	assert.Equal(t, 2, w.processIntents(context.Background()))
	assert.Empty(t, store.Intents())

	n, err := factory().DeliveryItems().CountByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	products, err := factory().Products().GetByIDs(context.Background(), []int64{101})
	require.NoError(t, err)
	assert.Equal(t, 17, products[0].Quantity)

	assert.Zero(t, w.processIntents(context.Background()), "nothing left to reconcile")
}

type countingFulfiller struct {
	calls int
}

func (c *countingFulfiller) Execute(_ context.Context, intents []intent.FulfillmentIntent) int {
	c.calls++

	return len(intents)
}

func TestProcessIntentsSkipsIntentsNotDue(t *testing.T) {
	store := memory.NewStore()
	_, err := store.Factory()().Intents().Insert(context.Background(), intent.FulfillmentIntent{
		OrderID:     1,
		Kind:        intent.KindMaterialize,
		Payload:     []byte(`{}`),
		MaxRetries:  5,
		NextRetryAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	f := &countingFulfiller{}
	w := NewWorker(store.Factory(), f)

	assert.Zero(t, w.processIntents(context.Background()))
	assert.Zero(t, f.calls)
}
