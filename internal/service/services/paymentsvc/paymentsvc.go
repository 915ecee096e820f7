package paymentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerr"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/currency"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderref"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillsvc"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultIntentRetries = 5
	defaultIntentGrace   = 30 * time.Second
)

// CreatePaymentCommand is a payment together with the order it pays for.
// ReceiptURL is the stored location of an uploaded receipt file.
type CreatePaymentCommand struct {
	Order              orderref.Ref
	Method             payment.Method
	Amount             decimal.Decimal
	ReceiptURL         string
	ReceiptType        payment.ReceiptType
	ExternalReceiptURL string
}

func (c *CreatePaymentCommand) hasReceipt() bool {
	return c.ReceiptURL != "" || c.ExternalReceiptURL != ""
}

// AttachReceiptCommand attaches a receipt to an existing payment.
type AttachReceiptCommand struct {
	ReceiptURL         string
	ReceiptType        payment.ReceiptType
	ExternalReceiptURL string
}

// PaymentDetails is a payment joined with its order summary and receipts.
type PaymentDetails struct {
	Payment  payment.Payment   `json:"payment"`
	Order    order.Order       `json:"order"`
	Receipts []payment.Receipt `json:"receipts"`
	// OrderCreated is set when the order was persisted together with the payment.
	OrderCreated bool `json:"orderCreated"`
}

type intentRunner interface {
	Execute(ctx context.Context, intents []intent.FulfillmentIntent) int
}

// PaymentService records payments and the orders they pay for.
type PaymentService struct {
	newUOW        uow.Factory
	fulfiller     intentRunner
	intentRetries int
	intentGrace   time.Duration
	now           func() time.Time
}

// option is a function that configures the PaymentService.
type option func(*PaymentService)

// MustNewPaymentService creates a new PaymentService.
func MustNewPaymentService(opts ...option) *PaymentService {
	s := &PaymentService{
		intentRetries: defaultIntentRetries,
		intentGrace:   defaultIntentGrace,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil || s.fulfiller == nil {
		panic("paymentsvc: unit of work and fulfiller are required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory for the PaymentService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *PaymentService) {
		s.newUOW = f
	}
}

// WithFulfiller sets the runner of post-commit fulfillment intents.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithFulfiller(f intentRunner) option {
	return func(s *PaymentService) {
		s.fulfiller = f
	}
}

// WithIntentRetries sets how often a failed fulfillment step is retried.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIntentRetries(n int) option {
	return func(s *PaymentService) {
		if n > 0 {
			s.intentRetries = n
		}
	}
}

// WithIntentGrace sets how long a new intent is left to the request path
// before the reconciler may pick it up.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIntentGrace(d time.Duration) option {
	return func(s *PaymentService) {
		if d > 0 {
			s.intentGrace = d
		}
	}
}

// CreatePayment records a payment and, for orders not persisted yet, the order
// itself, in one transaction. New orders also get their fulfillment intents in
// that transaction. The intents are executed after commit and their failures
// never fail the payment.
func (s *PaymentService) CreatePayment(
	ctx context.Context,
	actorID int64,
	cmd CreatePaymentCommand,
) (PaymentDetails, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.CreatePayment")
	defer span.End()

	if err := s.validate(actorID, &cmd); err != nil {
		return PaymentDetails{}, err
	}

	spec, created := orderref.SpecOf(cmd.Order)
	if created {
		if spec.UserID == 0 {
			spec.UserID = actorID
		}
		if err := validateNewOrder(&spec); err != nil {
			return PaymentDetails{}, err
		}
	}

	orderStatus := order.StatusPending
	paymentStatus := payment.StatusPending
	var paymentDate *time.Time
	now := s.now()
	if cmd.hasReceipt() {
		orderStatus = order.StatusPaymentConfirmed
		paymentStatus = payment.StatusConfirmed
		paymentDate = &now
	}

	var (
		details PaymentDetails
		intents []intent.FulfillmentIntent
	)

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		var o order.Order

		switch ref := cmd.Order.(type) {
		case orderref.Existing:
			var err error
			if o, err = s.existingOrder(ctx, work, ref.ID, orderStatus); err != nil {
				return err
			}
		case orderref.Draft, orderref.New:
			var err error
			if spec.DeliveryAddressID == 0 {
				if spec.DeliveryAddressID, err = createAddress(ctx, work, spec.UserID, actorID, spec.Address, now); err != nil {
					return err
				}
			}
			if o, err = work.Orders().Insert(ctx, newOrder(&spec, orderStatus, now)); err != nil {
				return fmt.Errorf("failed to create order: %w", err)
			}
		default:
			return errs.Validation("orderId", "or an order specification is required")
		}

		p, err := work.Payments().Insert(ctx, payment.Payment{
			UserID:              actorID,
			OrderID:             o.ID,
			Method:              cmd.Method,
			Amount:              cmd.Amount,
			PaymentDate:         paymentDate,
			ReceiptURL:          cmd.ReceiptURL,
			ExternalReceiptURL:  cmd.ExternalReceiptURL,
			UploadedReceiptType: cmd.ReceiptType,
			Status:              paymentStatus,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		details = PaymentDetails{Payment: p, Order: o, Receipts: []payment.Receipt{}, OrderCreated: created}

		if cmd.ReceiptURL != "" {
			rc, err := work.Payments().InsertReceipt(ctx, payment.Receipt{
				PaymentID:   p.ID,
				URL:         cmd.ReceiptURL,
				ReceiptType: cmd.ReceiptType,
				CreatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("failed to store receipt: %w", err)
			}
			details.Receipts = append(details.Receipts, rc)
		}

		if !created {
			return nil
		}

		for _, kind := range []intent.Kind{intent.KindMaterialize, intent.KindReduceStock} {
			in, err := fulfillsvc.NewIntent(o.ID, kind, spec, s.intentRetries, now, s.intentGrace)
			if err != nil {
				return err
			}
			if in, err = work.Intents().Insert(ctx, in); err != nil {
				return fmt.Errorf("failed to record fulfillment intent: %w", err)
			}
			intents = append(intents, in)
		}

		return nil
	})
	if err != nil {
		return PaymentDetails{}, err
	}

	span.SetAttributes(
		attribute.Int64("order_id", details.Order.ID),
		attribute.Int64("payment_id", details.Payment.ID),
	)
	slog.Info("Payment created",
		"payment_id", details.Payment.ID,
		"order_id", details.Order.ID,
		"status", details.Payment.Status,
		"order_created", created)

	if len(intents) > 0 {
		done := s.fulfiller.Execute(context.WithoutCancel(ctx), intents)
		if done < len(intents) {
			slog.Error("Fulfillment incomplete after payment, left for reconciliation",
				"order_id", details.Order.ID,
				"pending", len(intents)-done)
		}
	}

	return details, nil
}

func (s *PaymentService) validate(actorID int64, cmd *CreatePaymentCommand) error {
	if actorID <= 0 {
		return errs.Validation("userId", "is required")
	}
	if cmd.Order == nil {
		return errs.Validation("orderId", "or an order specification is required")
	}
	if ref, ok := cmd.Order.(orderref.Existing); ok && ref.ID <= 0 {
		return errs.Validation("orderId", "must be positive")
	}

	method, err := payment.ParseMethod(string(cmd.Method))
	if err != nil {
		return errs.Validation("paymentMethod", err.Error())
	}
	cmd.Method = method

	if !cmd.Amount.IsPositive() {
		return errs.Validation("paymentAmount", "must be positive")
	}

	cmd.ReceiptURL = strings.TrimSpace(cmd.ReceiptURL)
	cmd.ExternalReceiptURL = strings.TrimSpace(cmd.ExternalReceiptURL)
	if cmd.ReceiptURL != "" && cmd.ReceiptType == "" {
		cmd.ReceiptType = payment.ReceiptTypeFromURL(cmd.ReceiptURL)
	}

	return nil
}

func validateNewOrder(spec *orderspec.OrderSpec) error {
	if spec.OrderDate.IsZero() {
		return errs.Validation("orderSpec.orderDate", "is required")
	}
	if len(spec.OrderTimes) == 0 {
		return errs.Validation("orderSpec.orderTimes", "must not be empty")
	}
	if !spec.HasAddress() {
		return errs.Validation("orderSpec.deliveryAddressId", "or an address is required")
	}

	return nil
}

// existingOrder loads an order for a new payment, rejects a second payment and
// advances the order to status.
func (s *PaymentService) existingOrder(
	ctx context.Context,
	work uow.Repositories,
	orderID int64,
	status order.Status,
) (order.Order, error) {
	o, err := work.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return order.Order{}, fmt.Errorf("%w: %d", errs.ErrOrderNotFound, orderID)
		}

		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	existing, err := work.Payments().GetByOrderID(ctx, orderID)
	if err == nil {
		return order.Order{}, fmt.Errorf("%w: order %d has payment %d", errs.ErrDuplicatePayment, orderID, existing.ID)
	}
	if !errors.Is(err, dalerr.ErrNotFound) {
		return order.Order{}, fmt.Errorf("failed to check existing payment: %w", err)
	}

	next, err := advanceOrder(ctx, work, o, status)
	if err != nil {
		return order.Order{}, err
	}
	if next != o.Status {
		o.Status = next
		o.UpdatedAt = s.now()
	}

	return o, nil
}

// advanceOrder moves o towards status without going back in its lifecycle and
// persists the result. An order whose delivery items are all cancelled is cancelled.
func advanceOrder(ctx context.Context, work uow.Repositories, o order.Order, status order.Status) (order.Status, error) {
	items, err := work.DeliveryItems().Query(ctx, &deliveryitem.QueryDeliveryItemsModel{OrderIds: []int64{o.ID}})
	if err != nil {
		return "", fmt.Errorf("failed to get delivery items: %w", err)
	}

	next := o.Status.Advance(status)
	if allCancelled(items) {
		next = order.StatusCancelled
	}
	if next == o.Status {
		return next, nil
	}

	if err := work.Orders().UpdateStatus(ctx, o.ID, next); err != nil {
		return "", fmt.Errorf("failed to update order status: %w", err)
	}

	return next, nil
}

func allCancelled(items []deliveryitem.DeliveryItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Status != deliveryitem.StatusCancelled {
			return false
		}
	}

	return true
}

// createAddress persists an inline delivery address for the customer on behalf of actor.
func createAddress(
	ctx context.Context,
	work uow.Repositories,
	userID, actorID int64,
	in *address.Input,
	now time.Time,
) (int64, error) {
	if in == nil {
		return 0, errs.Validation("orderSpec.address", "is required")
	}

	a, err := work.Addresses().Insert(ctx, address.Address{
		UserID:     userID,
		CreatedBy:  actorID,
		Label:      in.Label,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Phone:      in.Phone,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errs.ErrAddressResolution, err)
	}

	return a.ID, nil
}

func newOrder(spec *orderspec.OrderSpec, status order.Status, now time.Time) order.Order {
	return order.Order{
		UserID:            spec.UserID,
		OrderDate:         spec.OrderDate,
		OrderTimes:        spec.OrderTimes,
		TotalPrice:        currency.Default.Round(spec.TotalPrice),
		Currency:          currency.Default,
		DeliveryAddressID: spec.DeliveryAddressID,
		Status:            status,
		DeliveryNote:      spec.DeliveryNote,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// AttachReceipt confirms a payment with a receipt and moves its order to Payment_Confirmed.
// Attaching the receipt a payment was confirmed with again changes nothing.
func (s *PaymentService) AttachReceipt(
	ctx context.Context,
	paymentID int64,
	cmd AttachReceiptCommand,
) (PaymentDetails, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.AttachReceipt")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment_id", paymentID))

	cmd.ReceiptURL = strings.TrimSpace(cmd.ReceiptURL)
	cmd.ExternalReceiptURL = strings.TrimSpace(cmd.ExternalReceiptURL)
	if cmd.ReceiptURL == "" && cmd.ExternalReceiptURL == "" {
		return PaymentDetails{}, errs.Validation("receipt", "a receipt or externalReceiptUrl is required")
	}
	if cmd.ReceiptURL != "" && cmd.ReceiptType == "" {
		cmd.ReceiptType = payment.ReceiptTypeFromURL(cmd.ReceiptURL)
	}

	now := s.now()
	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		p, err := work.Payments().GetByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, dalerr.ErrNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrPaymentNotFound, paymentID)
			}

			return fmt.Errorf("failed to get payment: %w", err)
		}

		if p.Status == payment.StatusConfirmed {
			if p.ReceiptURL == cmd.ReceiptURL && p.ExternalReceiptURL == cmd.ExternalReceiptURL {
				return nil
			}

			return fmt.Errorf("%w: payment %d", errs.ErrReceiptAlreadyAttached, p.ID)
		}

		if _, err := work.Payments().Confirm(ctx, p.ID, payment.Confirmation{
			ReceiptURL:         cmd.ReceiptURL,
			ExternalReceiptURL: cmd.ExternalReceiptURL,
			ReceiptType:        cmd.ReceiptType,
			PaymentDate:        now,
		}); err != nil {
			return fmt.Errorf("failed to confirm payment: %w", err)
		}

		if cmd.ReceiptURL != "" {
			if _, err := work.Payments().InsertReceipt(ctx, payment.Receipt{
				PaymentID:   p.ID,
				URL:         cmd.ReceiptURL,
				ReceiptType: cmd.ReceiptType,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("failed to store receipt: %w", err)
			}
		}

		o, err := work.Orders().GetByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("failed to get order of payment: %w", err)
		}
		_, err = advanceOrder(ctx, work, o, order.StatusPaymentConfirmed)

		return err
	})
	if err != nil {
		return PaymentDetails{}, err
	}

	slog.Info("Receipt attached", "payment_id", paymentID)

	return s.GetPayment(ctx, paymentID)
}

// GetPayment returns a payment with its order summary and receipts.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (PaymentDetails, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.GetPayment")
	defer span.End()

	repos := s.newUOW()

	p, err := repos.Payments().GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return PaymentDetails{}, fmt.Errorf("%w: %d", errs.ErrPaymentNotFound, paymentID)
		}

		return PaymentDetails{}, fmt.Errorf("failed to get payment: %w", err)
	}

	o, err := repos.Orders().GetByID(ctx, p.OrderID)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("failed to get order of payment: %w", err)
	}

	receipts, err := repos.Payments().ListReceipts(ctx, p.ID)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("failed to list receipts: %w", err)
	}
	if receipts == nil {
		receipts = []payment.Receipt{}
	}

	return PaymentDetails{Payment: p, Order: o, Receipts: receipts}, nil
}
