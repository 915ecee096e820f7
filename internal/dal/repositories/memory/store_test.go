package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerr"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackDiscardsWrites(t *testing.T) {
	store := NewStore()
	u := store.Factory()()
	boom := errors.New("boom")

	err := uow.Run(context.Background(), u, func(ctx context.Context) error {
		if _, err := u.Orders().Insert(ctx, order.Order{UserID: 1, Status: order.StatusPending}); err != nil {
			return err
		}

		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.Orders())
}

func TestCommitPublishesWrites(t *testing.T) {
	store := NewStore()
	u := store.Factory()()

	var id int64
	err := uow.Run(context.Background(), u, func(ctx context.Context) error {
		o, err := u.Orders().Insert(ctx, order.Order{UserID: 1, Status: order.StatusPending})
		id = o.ID

		return err
	})
	require.NoError(t, err)

	got, err := store.Factory()().Orders().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
}

func TestGetByIDNotFound(t *testing.T) {
	_, err := NewStore().Factory()().Orders().GetByID(context.Background(), 42)

	assert.ErrorIs(t, err, dalerr.ErrNotFound)
}

func TestMarkerClaimsOnce(t *testing.T) {
	repos := NewStore().Factory()()
	ctx := context.Background()

	first, err := repos.Materializations().Claim(ctx, 7, 3, time.Now())
	require.NoError(t, err)
	second, err := repos.Materializations().Claim(ctx, 7, 3, time.Now())
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestDecrementAllowsNegativeStock(t *testing.T) {
	store := NewStore()
	store.SeedProducts(product.Product{ID: 101, Name: "thali", Quantity: 1})

	got, err := store.Factory()().Products().Decrement(context.Background(), map[int64]int{101: 3, 999: 1})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -2, got[0].Quantity)
}

func TestFaultInjection(t *testing.T) {
	store := NewStore()
	boom := errors.New("boom")
	store.Fail("orders.insert", boom)

	_, err := store.Factory()().Orders().Insert(context.Background(), order.Order{})
	require.ErrorIs(t, err, boom)

	store.Fail("orders.insert", nil)
	_, err = store.Factory()().Orders().Insert(context.Background(), order.Order{})
	assert.NoError(t, err)
}
