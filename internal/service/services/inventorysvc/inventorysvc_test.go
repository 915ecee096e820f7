package inventorysvc

import (
	"context"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perItemSpec() orderspec.OrderSpec {
	return orderspec.OrderSpec{
		SelectedDates: []time.Time{
			time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC),
		},
		OrderItems: []orderspec.Item{
			{MenuItemID: 1, MealType: meal.Lunch, Quantity: 2},
			{MenuItemID: 2, MealType: meal.Dinner, Quantity: 1},
		},
		OrderTimes: []meal.Slot{meal.SlotLunch, meal.SlotDinner},
		SkipMeals:  map[string]map[meal.Type]bool{"2025-08-02": {meal.Dinner: true}},
		Strategy:   orderspec.StrategyPerItem,
	}
}

func stock(t *testing.T, store *memory.Store, ids ...int64) map[int64]int {
	t.Helper()

	products, err := store.Factory()().Products().GetByIDs(context.Background(), ids)
	require.NoError(t, err)

	out := map[int64]int{}
	for _, p := range products {
		out[p.ID] = p.Quantity
	}

	return out
}

func TestReduceStockExcludesSkippedMeals(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 1, Quantity: 10}, product.Product{ID: 2, Quantity: 10})
	svc := MustNewInventoryService(WithUnitOfWork(store.Factory()))

	res, err := svc.ReduceStock(context.Background(), ReduceStockCommand{OrderID: 9, Spec: perItemSpec()})
	require.NoError(t, err)

	assert.False(t, res.AlreadyReduced)
	assert.Equal(t, map[int64]int{1: 4, 2: 1}, res.Units)
	assert.Equal(t, map[int64]int{1: 6, 2: 9}, stock(t, store, 1, 2))
}

func TestReduceStockOncePerOrder(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 1, Quantity: 10}, product.Product{ID: 2, Quantity: 10})
	svc := MustNewInventoryService(WithUnitOfWork(store.Factory()))
	cmd := ReduceStockCommand{OrderID: 9, Spec: perItemSpec()}

	_, err := svc.ReduceStock(context.Background(), cmd)
	require.NoError(t, err)
	again, err := svc.ReduceStock(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, again.AlreadyReduced)
	assert.Equal(t, map[int64]int{1: 6, 2: 9}, stock(t, store, 1, 2))
}

func TestReduceStockAllowsNegative(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 1, Quantity: 1}, product.Product{ID: 2, Quantity: 5})
	svc := MustNewInventoryService(WithUnitOfWork(store.Factory()))

	res, err := svc.ReduceStock(context.Background(), ReduceStockCommand{OrderID: 9, Spec: perItemSpec()})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, res.BelowZero)
	assert.Equal(t, map[int64]int{1: -3, 2: 4}, stock(t, store, 1, 2))
}

func TestReduceStockFixedSlotCountsMaterializedSlots(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 101, Quantity: 100})
	svc := MustNewInventoryService(WithUnitOfWork(store.Factory()))

	spec := orderspec.OrderSpec{
		SelectedDates: []time.Time{
			time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC),
		},
		OrderItems: []orderspec.Item{{MenuItemID: 101, Quantity: 1}},
		OrderTimes: []meal.Slot{meal.SlotBreakfast, meal.SlotLunch, meal.SlotDinner},
		SkipMeals: map[string]map[meal.Type]bool{
			"2025-08-01": {meal.Breakfast: true},
			"2025-08-02": {meal.Lunch: true},
		},
		Strategy: orderspec.StrategyFixedSlot,
	}

	_, err := svc.ReduceStock(context.Background(), ReduceStockCommand{OrderID: 3, Spec: spec})
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{101: 93}, stock(t, store, 101))
}

func TestReduceStockFailureLeavesLedgerUnclaimed(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 1, Quantity: 10}, product.Product{ID: 2, Quantity: 10})
	svc := MustNewInventoryService(WithUnitOfWork(store.Factory()))
	cmd := ReduceStockCommand{OrderID: 9, Spec: perItemSpec()}

	store.Fail("products.decrement", assert.AnError)
	_, err := svc.ReduceStock(context.Background(), cmd)
	require.ErrorIs(t, err, assert.AnError)

	store.Fail("products.decrement", nil)
	res, err := svc.ReduceStock(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, res.AlreadyReduced)
	assert.Equal(t, map[int64]int{1: 6, 2: 9}, stock(t, store, 1, 2))
}
