package deliverysvc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/event"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 8, d, 0, 0, 0, 0, time.UTC)
}

func planSpec(userID int64, days int) orderspec.OrderSpec {
	dates := make([]time.Time, days)
	for i := range dates {
		dates[i] = day(1).AddDate(0, 0, i)
	}

	return orderspec.OrderSpec{
		UserID:            userID,
		SelectedDates:     dates,
		OrderItems:        []orderspec.Item{{MenuItemID: 101, Quantity: 1}},
		OrderTimes:        []meal.Slot{meal.SlotBreakfast, meal.SlotLunch, meal.SlotDinner},
		DeliveryAddressID: 11,
		Strategy:          orderspec.StrategyFixedSlot,
	}
}

func setup(t *testing.T) (*memory.Store, *DeliveryService, order.Order) {
	t.Helper()

	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: 7, DeliveryAddressID: 11, Status: order.StatusPaymentConfirmed})
	svc := MustNewDeliveryService(
		WithUnitOfWork(store.Factory()),
		WithEventDestination("", "fulfillment.events", 3),
	)

	return store, svc, o
}

func countItems(t *testing.T, store *memory.Store, orderID int64) int {
	t.Helper()

	n, err := store.Factory()().DeliveryItems().CountByOrder(context.Background(), orderID)
	require.NoError(t, err)

	return n
}

func TestExpandCreatesItemsAndConfirmsOrder(t *testing.T) {
	store, svc, o := setup(t)
	spec := planSpec(7, 3)
	spec.SkipMeals = map[string]map[meal.Type]bool{
		"2025-08-01": {meal.Breakfast: true},
		"2025-08-02": {meal.Lunch: true},
	}

	res, err := svc.Expand(context.Background(), o.ID, spec)
	require.NoError(t, err)

	assert.Equal(t, 7, res.CreatedCount)
	assert.Equal(t, 2, res.SkippedCount)
	assert.False(t, res.AlreadyMaterialized)
	require.Len(t, res.DeliveryItems, 7)
	for _, it := range res.DeliveryItems {
		assert.NotZero(t, it.ID)
		assert.Equal(t, int64(7), it.UserID)
		assert.Equal(t, deliveryitem.StatusPending, it.Status)
	}

	got, err := store.Factory()().Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)

	msgs := store.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "fulfillment.events", msgs[0].RoutingKey)
	assert.Equal(t, 3, msgs[0].MaxAttempts)
	assert.Equal(t, o.ID, msgs[0].OrderID)
	assert.Equal(t, event.RoutingKeyDeliveryItemsCreated, msgs[0].EventType)
	assert.NotEmpty(t, msgs[0].MessageID)

	var ev event.DeliveryItemsCreated
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ev))
	assert.Equal(t, o.ID, ev.OrderID)
	assert.Equal(t, 7, ev.CreatedCount)
	assert.Len(t, ev.DeliveryItemIDs, 7)
}

func TestExpandIsIdempotent(t *testing.T) {
	store, svc, o := setup(t)

	first, err := svc.Expand(context.Background(), o.ID, planSpec(7, 2))
	require.NoError(t, err)
	second, err := svc.Expand(context.Background(), o.ID, planSpec(7, 2))
	require.NoError(t, err)

	assert.Equal(t, 6, first.CreatedCount)
	assert.True(t, second.AlreadyMaterialized)
	assert.Equal(t, 6, second.ExistingCount)
	assert.Equal(t, 6, second.DeliveryItemsCount())
	assert.Equal(t, 6, countItems(t, store, o.ID))
	assert.Len(t, store.OutboxMessages(), 1)
}

func TestConcurrentExpandCreatesOnce(t *testing.T) {
	store, svc, o := setup(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := svc.Expand(context.Background(), o.ID, planSpec(7, 3))
			assert.NoError(t, err)
			assert.Equal(t, 9, res.DeliveryItemsCount())

			mu.Lock()
			created += res.CreatedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, created)
	assert.Equal(t, 9, countItems(t, store, o.ID))
}

func TestExpandHonorsClaimedMarker(t *testing.T) {
	store, svc, o := setup(t)

	claimed, err := store.Factory()().Materializations().Claim(context.Background(), o.ID, 3, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	res, err := svc.Expand(context.Background(), o.ID, planSpec(7, 1))
	require.NoError(t, err)

	assert.True(t, res.AlreadyMaterialized)
	assert.Zero(t, countItems(t, store, o.ID))
	assert.Empty(t, store.OutboxMessages())
}

func TestExpandAllSkippedIsNoop(t *testing.T) {
	store, svc, o := setup(t)
	spec := planSpec(7, 1)
	spec.SkipMeals = map[string]map[meal.Type]bool{
		"2025-08-01": {meal.Breakfast: true, meal.Lunch: true, meal.Dinner: true},
	}

	res, err := svc.Expand(context.Background(), o.ID, spec)
	require.NoError(t, err)

	assert.Zero(t, res.CreatedCount)
	assert.Equal(t, 3, res.SkippedCount)
	assert.Zero(t, countItems(t, store, o.ID))

	got, err := store.Factory()().Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaymentConfirmed, got.Status)
}

func TestExpandRollsBackOnFailure(t *testing.T) {
	store, svc, o := setup(t)
	store.Fail("outbox.insert", assert.AnError)

	_, err := svc.Expand(context.Background(), o.ID, planSpec(7, 1))
	require.ErrorIs(t, err, assert.AnError)

	assert.Zero(t, countItems(t, store, o.ID))
	got, err := store.Factory()().Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaymentConfirmed, got.Status)

	store.Fail("outbox.insert", nil)
	res, err := svc.Expand(context.Background(), o.ID, planSpec(7, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, res.CreatedCount, "marker claim was rolled back too")
}

func TestMaterializeAfterPaymentReportsExistingItems(t *testing.T) {
	store, svc, o := setup(t)

	_, err := svc.Expand(context.Background(), o.ID, planSpec(7, 30))
	require.NoError(t, err)

	res, err := svc.MaterializeAfterPayment(context.Background(), o.ID, `{"selectedDates":["2025-09-01"]}`)
	require.NoError(t, err)

	assert.True(t, res.AlreadyMaterialized)
	assert.Equal(t, 90, res.DeliveryItemsCount())
	assert.Equal(t, 90, countItems(t, store, o.ID))
}

func TestMaterializeAfterPaymentUsesOrderOwner(t *testing.T) {
	_, svc, o := setup(t)

	res, err := svc.MaterializeAfterPayment(context.Background(), o.ID, `{
		"userId": 999,
		"selectedDates": ["2025-08-01"],
		"orderItems": [{"menuItemId": 5, "mealType": "lunch", "quantity": 2}],
		"orderTimes": ["Noon"]
	}`)
	require.NoError(t, err)

	require.Len(t, res.DeliveryItems, 1)
	assert.Equal(t, int64(7), res.DeliveryItems[0].UserID)
	assert.Equal(t, int64(11), res.DeliveryItems[0].AddressID, "falls back to the order address")
	assert.Equal(t, 2, res.DeliveryItems[0].Quantity)
}

func TestMaterializeAfterPaymentErrors(t *testing.T) {
	_, svc, o := setup(t)

	_, err := svc.MaterializeAfterPayment(context.Background(), 404, `{}`)
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)

	_, err = svc.MaterializeAfterPayment(context.Background(), o.ID, `{"selectedDates": [`)
	assert.ErrorIs(t, err, errs.ErrMalformedInput)

	_, err = svc.MaterializeAfterPayment(context.Background(), o.ID, `{"selectedDates": []}`)
	assert.ErrorIs(t, err, errs.ErrValidation)
}
