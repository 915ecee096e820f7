package paymentsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/currency"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderref"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/deliverysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actor = int64(7)

var now = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

type recordingFulfiller struct {
	calls [][]intent.FulfillmentIntent
}

func (r *recordingFulfiller) Execute(_ context.Context, intents []intent.FulfillmentIntent) int {
	r.calls = append(r.calls, intents)

	return len(intents)
}

func newSpec() orderspec.OrderSpec {
	return orderspec.OrderSpec{
		OrderDate:         time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		SelectedDates:     []time.Time{time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)},
		OrderItems:        []orderspec.Item{{MenuItemID: 101, Quantity: 1}},
		OrderTimes:        []meal.Slot{meal.SlotLunch, meal.SlotDinner},
		DeliveryAddressID: 11,
		TotalPrice:        decimal.NewFromInt(1200),
		Strategy:          orderspec.StrategyFixedSlot,
	}
}

func command(ref orderref.Ref) CreatePaymentCommand {
	return CreatePaymentCommand{
		Order:  ref,
		Method: payment.MethodUPI,
		Amount: decimal.NewFromInt(1200),
	}
}

func newService(store *memory.Store, f intentRunner) *PaymentService {
	svc := MustNewPaymentService(
		WithUnitOfWork(store.Factory()),
		WithFulfiller(f),
	)
	svc.now = func() time.Time { return now }

	return svc
}

func fullService(store *memory.Store) *PaymentService {
	factory := store.Factory()
	fulfill := fulfillsvc.MustNewFulfillService(
		fulfillsvc.WithUnitOfWork(factory),
		fulfillsvc.WithMaterializer(deliverysvc.MustNewDeliveryService(deliverysvc.WithUnitOfWork(factory))),
		fulfillsvc.WithStockReducer(inventorysvc.MustNewInventoryService(inventorysvc.WithUnitOfWork(factory))),
	)

	return newService(store, fulfill)
}

func TestCreatePaymentForExistingOrder(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusPending})
	f := &recordingFulfiller{}
	svc := newService(store, f)

	details, err := svc.CreatePayment(context.Background(), actor, command(orderref.Existing{ID: o.ID}))
	require.NoError(t, err)

	assert.False(t, details.OrderCreated)
	assert.Equal(t, o.ID, details.Payment.OrderID)
	assert.Equal(t, payment.StatusPending, details.Payment.Status)
	assert.Nil(t, details.Payment.PaymentDate)
	assert.Equal(t, order.StatusPending, details.Order.Status)
	assert.Empty(t, f.calls, "existing orders have no post steps")
	assert.Empty(t, store.Intents())
}

func TestCreatePaymentWithReceiptConfirms(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusPending})
	svc := newService(store, &recordingFulfiller{})

	cmd := command(orderref.Existing{ID: o.ID})
	cmd.ReceiptURL = "/uploads/receipts/r1.pdf"

	details, err := svc.CreatePayment(context.Background(), actor, cmd)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusConfirmed, details.Payment.Status)
	require.NotNil(t, details.Payment.PaymentDate)
	assert.Equal(t, now, *details.Payment.PaymentDate)
	assert.Equal(t, payment.ReceiptPDF, details.Payment.UploadedReceiptType)
	require.Len(t, details.Receipts, 1)
	assert.Equal(t, cmd.ReceiptURL, details.Receipts[0].URL)

	orders := store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, order.StatusPaymentConfirmed, orders[0].Status)
}

func TestCreatePaymentWithExternalReceiptStoresNoReceiptRow(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusPending})
	svc := newService(store, &recordingFulfiller{})

	cmd := command(orderref.Existing{ID: o.ID})
	cmd.ExternalReceiptURL = "https://bank.example/tx/1"

	details, err := svc.CreatePayment(context.Background(), actor, cmd)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusConfirmed, details.Payment.Status)
	assert.Empty(t, details.Receipts)
}

func TestCreatePaymentRejectsDuplicate(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusPending})
	svc := newService(store, &recordingFulfiller{})

	_, err := svc.CreatePayment(context.Background(), actor, command(orderref.Existing{ID: o.ID}))
	require.NoError(t, err)

	cmd := command(orderref.Existing{ID: o.ID})
	cmd.ReceiptURL = "/uploads/r.png"
	_, err = svc.CreatePayment(context.Background(), actor, cmd)
	require.ErrorIs(t, err, errs.ErrDuplicatePayment)

	assert.Len(t, store.Payments(), 1)
	assert.Equal(t, order.StatusPending, store.Orders()[0].Status, "rejected payment must not touch the order")
}

func TestCreatePaymentUnknownOrder(t *testing.T) {
	svc := newService(memory.NewStore(), &recordingFulfiller{})

	_, err := svc.CreatePayment(context.Background(), actor, command(orderref.Existing{ID: 404}))
	require.ErrorIs(t, err, errs.ErrOrderNotFound)
}

func TestCreatePaymentValidation(t *testing.T) {
	noDate := newSpec()
	noDate.OrderDate = time.Time{}
	noTimes := newSpec()
	noTimes.OrderTimes = nil
	noAddress := newSpec()
	noAddress.DeliveryAddressID = 0

	tests := []struct {
		name  string
		actor int64
		cmd   func() CreatePaymentCommand
		field string
	}{
		{"missing actor", 0, func() CreatePaymentCommand { return command(orderref.Existing{ID: 1}) }, "userId"},
		{"missing ref", actor, func() CreatePaymentCommand { return command(nil) }, "orderId"},
		{"bad order id", actor, func() CreatePaymentCommand { return command(orderref.Existing{ID: -1}) }, "orderId"},
		{"bad method", actor, func() CreatePaymentCommand {
			c := command(orderref.Existing{ID: 1})
			c.Method = "Cash"

			return c
		}, "paymentMethod"},
		{"zero amount", actor, func() CreatePaymentCommand {
			c := command(orderref.Existing{ID: 1})
			c.Amount = decimal.Zero

			return c
		}, "paymentAmount"},
		{"missing order date", actor, func() CreatePaymentCommand { return command(orderref.New{Spec: noDate}) }, "orderSpec.orderDate"},
		{"missing order times", actor, func() CreatePaymentCommand { return command(orderref.New{Spec: noTimes}) }, "orderSpec.orderTimes"},
		{"missing address", actor, func() CreatePaymentCommand {
			return command(orderref.Draft{Key: "draft-1", Spec: noAddress})
		}, "orderSpec.deliveryAddressId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			svc := newService(store, &recordingFulfiller{})

			_, err := svc.CreatePayment(context.Background(), tt.actor, tt.cmd())

			var vErr *errs.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Empty(t, store.Orders())
			assert.Empty(t, store.Payments())
		})
	}
}

func TestCreatePaymentForNewOrderRecordsIntents(t *testing.T) {
	store := memory.NewStore()
	f := &recordingFulfiller{}
	svc := newService(store, f)

	details, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: newSpec()}))
	require.NoError(t, err)

	assert.True(t, details.OrderCreated)
	assert.NotZero(t, details.Order.ID)
	assert.Equal(t, actor, details.Order.UserID, "owner defaults to the actor")
	assert.Equal(t, order.StatusPending, details.Order.Status)
	assert.Equal(t, "1200", details.Order.TotalPrice.String())
	assert.Equal(t, currency.Default, details.Order.Currency)

	require.Len(t, f.calls, 1)
	require.Len(t, f.calls[0], 2)
	assert.Equal(t, intent.KindMaterialize, f.calls[0][0].Kind)
	assert.Equal(t, intent.KindReduceStock, f.calls[0][1].Kind)
	for _, in := range f.calls[0] {
		assert.Equal(t, details.Order.ID, in.OrderID)
		assert.NotZero(t, in.ID)
		assert.Equal(t, now.Add(defaultIntentGrace), in.NextRetryAt)
	}
	assert.Len(t, store.Intents(), 2, "recording fulfiller leaves intents in place")
}

func TestNewIntentsAreNotPendingDuringGrace(t *testing.T) {
	store := memory.NewStore()
	f := &recordingFulfiller{}
	svc := MustNewPaymentService(
		WithUnitOfWork(store.Factory()),
		WithFulfiller(f),
		WithIntentGrace(time.Hour),
	)

	_, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: newSpec()}))
	require.NoError(t, err)
	require.Len(t, store.Intents(), 2)

	pending, err := store.Factory()().Intents().GetPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "the reconciler must not race the request path")
}

func TestCreatePaymentCreatesInlineAddressForOwner(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, &recordingFulfiller{})

	spec := newSpec()
	spec.UserID = 42
	spec.DeliveryAddressID = 0
	spec.Address = &address.Input{Line1: "1 MG Road", City: "Pune", PostalCode: "411001"}

	details, err := svc.CreatePayment(context.Background(), actor, command(orderref.Draft{Key: "draft-9", Spec: spec}))
	require.NoError(t, err)

	addrs := store.Addresses()
	require.Len(t, addrs, 1)
	assert.Equal(t, int64(42), addrs[0].UserID)
	assert.Equal(t, actor, addrs[0].CreatedBy)
	assert.Equal(t, addrs[0].ID, details.Order.DeliveryAddressID)
	assert.Equal(t, int64(42), details.Order.UserID)
	assert.Equal(t, actor, details.Payment.UserID)
}

func TestCreatePaymentAddressFailure(t *testing.T) {
	store := memory.NewStore()
	store.Fail("addresses.insert", errors.New("geocoder down"))
	svc := newService(store, &recordingFulfiller{})

	spec := newSpec()
	spec.DeliveryAddressID = 0
	spec.Address = &address.Input{Line1: "1 MG Road", City: "Pune", PostalCode: "411001"}

	_, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: spec}))
	require.ErrorIs(t, err, errs.ErrAddressResolution)
	assert.Empty(t, store.Orders())
}

func TestCreatePaymentIsAtomic(t *testing.T) {
	store := memory.NewStore()
	store.Fail("payments.insert", errors.New("disk full"))
	f := &recordingFulfiller{}
	svc := newService(store, f)

	spec := newSpec()
	spec.DeliveryAddressID = 0
	spec.Address = &address.Input{Line1: "1 MG Road", City: "Pune", PostalCode: "411001"}

	_, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: spec}))
	require.Error(t, err)

	assert.Empty(t, store.Orders())
	assert.Empty(t, store.Payments())
	assert.Empty(t, store.Addresses())
	assert.Empty(t, store.Intents())
	assert.Empty(t, f.calls)
}

func TestCreatePaymentRunsFulfillment(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 101, Quantity: 10})
	svc := fullService(store)

	cmd := command(orderref.New{Spec: newSpec()})
	cmd.ReceiptURL = "/uploads/r.jpg"

	details, err := svc.CreatePayment(context.Background(), actor, cmd)
	require.NoError(t, err)

	n, err := store.Factory()().DeliveryItems().CountByOrder(context.Background(), details.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	products, err := store.Factory()().Products().GetByIDs(context.Background(), []int64{101})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 6, products[0].Quantity)

	assert.Empty(t, store.Intents())
	assert.Equal(t, order.StatusConfirmed, store.Orders()[0].Status)
}

func TestCreatePaymentSurvivesFulfillmentFailure(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 101, Quantity: 10})
	store.Fail("delivery_items.bulk_insert", errors.New("connection reset"))
	svc := fullService(store)

	details, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: newSpec()}))
	require.NoError(t, err, "post steps never fail the payment")
	assert.NotZero(t, details.Payment.ID)

	intents := store.Intents()
	require.Len(t, intents, 2, "failed steps stay recorded for reconciliation")
	for _, in := range intents {
		assert.Equal(t, 1, in.RetryCount)
		assert.NotEmpty(t, in.LastError)
	}
	assert.Len(t, store.Payments(), 1)
}

func TestAttachReceipt(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusPending})
	svc := newService(store, &recordingFulfiller{})

	created, err := svc.CreatePayment(context.Background(), actor, command(orderref.Existing{ID: o.ID}))
	require.NoError(t, err)

	details, err := svc.AttachReceipt(context.Background(), created.Payment.ID, AttachReceiptCommand{
		ReceiptURL: "/uploads/r.png",
	})
	require.NoError(t, err)

	assert.Equal(t, payment.StatusConfirmed, details.Payment.Status)
	assert.Equal(t, payment.ReceiptImage, details.Payment.UploadedReceiptType)
	require.NotNil(t, details.Payment.PaymentDate)
	require.Len(t, details.Receipts, 1)
	assert.Equal(t, order.StatusPaymentConfirmed, details.Order.Status)
}

func TestAttachReceiptKeepsItemDerivedOrderStatus(t *testing.T) {
	store := memory.NewStore()
	store.SeedProducts(product.Product{ID: 101, Quantity: 10})
	svc := fullService(store)
	orders := ordersvc.MustNewOrderService(ordersvc.WithUnitOfWork(store.Factory()))

	t.Run("confirmed order is not downgraded", func(t *testing.T) {
		created, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: newSpec()}))
		require.NoError(t, err)

		details, err := svc.AttachReceipt(context.Background(), created.Payment.ID, AttachReceiptCommand{
			ReceiptURL: "/uploads/r.png",
		})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusConfirmed, details.Payment.Status)
		assert.Equal(t, order.StatusConfirmed, details.Order.Status)
	})

	t.Run("cancelled order stays cancelled", func(t *testing.T) {
		created, err := svc.CreatePayment(context.Background(), actor, command(orderref.New{Spec: newSpec()}))
		require.NoError(t, err)

		res, err := orders.CancelDeliveryItems(context.Background(), created.Order.ID, nil)
		require.NoError(t, err)
		require.True(t, res.OrderCancelled)
		require.Equal(t, 4, res.CancelledCount)

		details, err := svc.AttachReceipt(context.Background(), created.Payment.ID, AttachReceiptCommand{
			ExternalReceiptURL: "https://bank.example/tx/1",
		})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusConfirmed, details.Payment.Status)
		assert.Equal(t, order.StatusCancelled, details.Order.Status)
	})
}

func TestCreatePaymentKeepsCancelledOrder(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusCancelled})
	svc := newService(store, &recordingFulfiller{})

	cmd := command(orderref.Existing{ID: o.ID})
	cmd.ReceiptURL = "/uploads/r.pdf"

	details, err := svc.CreatePayment(context.Background(), actor, cmd)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, details.Order.Status)
	assert.Equal(t, order.StatusCancelled, store.Orders()[0].Status)
}

func TestAttachReceiptTwice(t *testing.T) {
	store := memory.NewStore()
	o := store.SeedOrder(order.Order{UserID: actor, Status: order.StatusPending})
	svc := newService(store, &recordingFulfiller{})

	created, err := svc.CreatePayment(context.Background(), actor, command(orderref.Existing{ID: o.ID}))
	require.NoError(t, err)

	first, err := svc.AttachReceipt(context.Background(), created.Payment.ID, AttachReceiptCommand{ReceiptURL: "/uploads/r.png"})
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(time.Hour) }

	again, err := svc.AttachReceipt(context.Background(), created.Payment.ID, AttachReceiptCommand{ReceiptURL: "/uploads/r.png"})
	require.NoError(t, err)
	assert.Len(t, again.Receipts, 1)
	assert.Equal(t, first.Payment.PaymentDate, again.Payment.PaymentDate)

	_, err = svc.AttachReceipt(context.Background(), created.Payment.ID, AttachReceiptCommand{ReceiptURL: "/uploads/other.png"})
	require.ErrorIs(t, err, errs.ErrReceiptAlreadyAttached)
}

func TestAttachReceiptErrors(t *testing.T) {
	svc := newService(memory.NewStore(), &recordingFulfiller{})

	_, err := svc.AttachReceipt(context.Background(), 1, AttachReceiptCommand{})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.AttachReceipt(context.Background(), 99, AttachReceiptCommand{ExternalReceiptURL: "https://x"})
	require.ErrorIs(t, err, errs.ErrPaymentNotFound)
}

func TestGetPaymentNotFound(t *testing.T) {
	svc := newService(memory.NewStore(), &recordingFulfiller{})

	_, err := svc.GetPayment(context.Background(), 5)
	require.ErrorIs(t, err, errs.ErrPaymentNotFound)
}
