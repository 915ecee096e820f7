package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerr"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iaddressrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ideliveryitemrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iintentrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/imarkerrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ipaymentrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

var errTxStarted = errors.New("transaction already started")

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository {
	return orderRepo{u}
}

func (u *unitOfWork) Payments() ipaymentrepo.IPaymentRepository {
	return paymentRepo{u}
}

func (u *unitOfWork) DeliveryItems() ideliveryitemrepo.IDeliveryItemRepository {
	return deliveryItemRepo{u}
}

func (u *unitOfWork) Products() iproductrepo.IProductRepository {
	return productRepo{u}
}

func (u *unitOfWork) Addresses() iaddressrepo.IAddressRepository {
	return addressRepo{u}
}

func (u *unitOfWork) Materializations() imarkerrepo.IMaterializationRepository {
	return materializationRepo{u}
}

func (u *unitOfWork) StockReductions() imarkerrepo.IStockReductionRepository {
	return stockReductionRepo{u}
}

func (u *unitOfWork) Outbox() ioutboxrepo.IOutboxRepository {
	return outboxRepo{u}
}

func (u *unitOfWork) Intents() iintentrepo.IIntentRepository {
	return intentRepo{u}
}

type orderRepo struct{ u *unitOfWork }

func (r orderRepo) Insert(_ context.Context, o order.Order) (order.Order, error) {
	err := r.u.with("orders.insert", func(s *state) error {
		o.ID = s.nextID()
		s.orders[o.ID] = o

		return nil
	})

	return o, err
}

func (r orderRepo) GetByID(_ context.Context, id int64) (order.Order, error) {
	var o order.Order
	err := r.u.with("orders.get", func(s *state) error {
		var ok bool
		if o, ok = s.orders[id]; !ok {
			return dalerr.ErrNotFound
		}

		return nil
	})

	return o, err
}

func (r orderRepo) UpdateStatus(_ context.Context, id int64, status order.Status) error {
	return r.u.with("orders.update_status", func(s *state) error {
		o, ok := s.orders[id]
		if !ok {
			return dalerr.ErrNotFound
		}
		o.Status = status
		o.UpdatedAt = time.Now()
		s.orders[id] = o

		return nil
	})
}

func (r orderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	var out []order.Order
	err := r.u.with("orders.query", func(s *state) error {
		for _, o := range sortedValues(s.orders, func(o order.Order) int64 { return o.ID }) {
			if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, o.ID) {
				continue
			}
			if len(filter.UserIds) > 0 && !slices.Contains(filter.UserIds, o.UserID) {
				continue
			}
			out = append(out, o)
		}
		out = page(out, filter.Limit, filter.Offset)

		return nil
	})

	return out, err
}

type paymentRepo struct{ u *unitOfWork }

func (r paymentRepo) Insert(_ context.Context, p payment.Payment) (payment.Payment, error) {
	err := r.u.with("payments.insert", func(s *state) error {
		p.ID = s.nextID()
		s.payments[p.ID] = p

		return nil
	})

	return p, err
}

func (r paymentRepo) GetByID(_ context.Context, id int64) (payment.Payment, error) {
	var p payment.Payment
	err := r.u.with("payments.get", func(s *state) error {
		var ok bool
		if p, ok = s.payments[id]; !ok {
			return dalerr.ErrNotFound
		}

		return nil
	})

	return p, err
}

func (r paymentRepo) GetByOrderID(_ context.Context, orderID int64) (payment.Payment, error) {
	var p payment.Payment
	err := r.u.with("payments.get_by_order", func(s *state) error {
		for _, candidate := range sortedValues(s.payments, func(p payment.Payment) int64 { return p.ID }) {
			if candidate.OrderID == orderID {
				p = candidate

				return nil
			}
		}

		return dalerr.ErrNotFound
	})

	return p, err
}

func (r paymentRepo) Confirm(_ context.Context, id int64, c payment.Confirmation) (payment.Payment, error) {
	var p payment.Payment
	err := r.u.with("payments.confirm", func(s *state) error {
		var ok bool
		if p, ok = s.payments[id]; !ok {
			return dalerr.ErrNotFound
		}
		if c.ReceiptURL != "" {
			p.ReceiptURL = c.ReceiptURL
		}
		if c.ExternalReceiptURL != "" {
			p.ExternalReceiptURL = c.ExternalReceiptURL
		}
		if c.ReceiptType != "" {
			p.UploadedReceiptType = c.ReceiptType
		}
		date := c.PaymentDate
		p.PaymentDate = &date
		p.Status = payment.StatusConfirmed
		p.UpdatedAt = time.Now()
		s.payments[id] = p

		return nil
	})

	return p, err
}

func (r paymentRepo) InsertReceipt(_ context.Context, rc payment.Receipt) (payment.Receipt, error) {
	err := r.u.with("payments.insert_receipt", func(s *state) error {
		rc.ID = s.nextID()
		s.receipts[rc.ID] = rc

		return nil
	})

	return rc, err
}

func (r paymentRepo) ListReceipts(_ context.Context, paymentID int64) ([]payment.Receipt, error) {
	var out []payment.Receipt
	err := r.u.with("payments.list_receipts", func(s *state) error {
		for _, rc := range sortedValues(s.receipts, func(rc payment.Receipt) int64 { return rc.ID }) {
			if rc.PaymentID == paymentID {
				out = append(out, rc)
			}
		}

		return nil
	})

	return out, err
}

type deliveryItemRepo struct{ u *unitOfWork }

func (r deliveryItemRepo) CountByOrder(_ context.Context, orderID int64) (int, error) {
	var n int
	err := r.u.with("delivery_items.count", func(s *state) error {
		for _, it := range s.items {
			if it.OrderID == orderID {
				n++
			}
		}

		return nil
	})

	return n, err
}

func (r deliveryItemRepo) BulkInsert(
	_ context.Context,
	items []deliveryitem.DeliveryItem,
) ([]deliveryitem.DeliveryItem, error) {
	out := make([]deliveryitem.DeliveryItem, len(items))
	err := r.u.with("delivery_items.bulk_insert", func(s *state) error {
		for i, it := range items {
			it.ID = s.nextID()
			s.items[it.ID] = it
			out[i] = it
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r deliveryItemRepo) Query(
	_ context.Context,
	filter *deliveryitem.QueryDeliveryItemsModel,
) ([]deliveryitem.DeliveryItem, error) {
	var out []deliveryitem.DeliveryItem
	err := r.u.with("delivery_items.query", func(s *state) error {
		for _, it := range s.items {
			if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, it.ID) {
				continue
			}
			if len(filter.OrderIds) > 0 && !slices.Contains(filter.OrderIds, it.OrderID) {
				continue
			}
			if len(filter.UserIds) > 0 && !slices.Contains(filter.UserIds, it.UserID) {
				continue
			}
			if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, it.Status) {
				continue
			}
			if !filter.From.IsZero() && it.DeliveryDate.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && it.DeliveryDate.After(filter.To) {
				continue
			}
			out = append(out, it)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].DeliveryDate.Equal(out[j].DeliveryDate) {
				return out[i].DeliveryDate.Before(out[j].DeliveryDate)
			}

			return out[i].ID < out[j].ID
		})
		out = page(out, filter.Limit, filter.Offset)

		return nil
	})

	return out, err
}

func (r deliveryItemRepo) UpdateStatus(
	_ context.Context,
	ids []int64,
	status deliveryitem.Status,
) (int, error) {
	var n int
	err := r.u.with("delivery_items.update_status", func(s *state) error {
		for _, id := range ids {
			it, ok := s.items[id]
			if !ok {
				continue
			}
			it.Status = status
			it.UpdatedAt = time.Now()
			s.items[id] = it
			n++
		}

		return nil
	})

	return n, err
}

type productRepo struct{ u *unitOfWork }

func (r productRepo) Decrement(_ context.Context, quantities map[int64]int) ([]product.Product, error) {
	var out []product.Product
	err := r.u.with("products.decrement", func(s *state) error {
		for id, qty := range quantities {
			p, ok := s.products[id]
			if !ok {
				continue
			}
			p.Quantity -= qty
			p.UpdatedAt = time.Now()
			s.products[id] = p
			out = append(out, p)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

		return nil
	})

	return out, err
}

func (r productRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	err := r.u.with("products.get", func(s *state) error {
		for _, p := range sortedValues(s.products, func(p product.Product) int64 { return p.ID }) {
			if slices.Contains(ids, p.ID) {
				out = append(out, p)
			}
		}

		return nil
	})

	return out, err
}

type addressRepo struct{ u *unitOfWork }

func (r addressRepo) Insert(_ context.Context, a address.Address) (address.Address, error) {
	err := r.u.with("addresses.insert", func(s *state) error {
		a.ID = s.nextID()
		s.addresses[a.ID] = a

		return nil
	})

	return a, err
}

type materializationRepo struct{ u *unitOfWork }

func (r materializationRepo) Claim(_ context.Context, orderID int64, itemCount int, _ time.Time) (bool, error) {
	var claimed bool
	err := r.u.with("materializations.claim", func(s *state) error {
		if _, ok := s.materializations[orderID]; ok {
			return nil
		}
		s.materializations[orderID] = itemCount
		claimed = true

		return nil
	})

	return claimed, err
}

type stockReductionRepo struct{ u *unitOfWork }

func (r stockReductionRepo) Claim(_ context.Context, orderID int64, units int, _ time.Time) (bool, error) {
	var claimed bool
	err := r.u.with("stock_reductions.claim", func(s *state) error {
		if _, ok := s.reductions[orderID]; ok {
			return nil
		}
		s.reductions[orderID] = units
		claimed = true

		return nil
	})

	return claimed, err
}

type outboxRepo struct{ u *unitOfWork }

func (r outboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	return r.u.with("outbox.insert", func(s *state) error {
		for _, m := range s.outbox {
			if m.MessageID == msg.MessageID {
				return nil
			}
		}
		msg.ID = s.nextID()
		s.outbox[msg.ID] = msg

		return nil
	})
}

func (r outboxRepo) GetDue(_ context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	var out []outbox.Message
	err := r.u.with("outbox.due", func(s *state) error {
		for _, m := range s.outbox {
			if m.Due(now) {
				out = append(out, m)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].PublishAfter.Equal(out[j].PublishAfter) {
				return out[i].ID < out[j].ID
			}

			return out[i].PublishAfter.Before(out[j].PublishAfter)
		})
		out = page(out, limit, 0)

		return nil
	})

	return out, err
}

func (r outboxRepo) Delete(_ context.Context, id int64) error {
	return r.u.with("outbox.delete", func(s *state) error {
		delete(s.outbox, id)

		return nil
	})
}

func (r outboxRepo) ScheduleRetry(_ context.Context, id int64, retry outbox.Retry) error {
	return r.u.with("outbox.schedule_retry", func(s *state) error {
		m, ok := s.outbox[id]
		if !ok {
			return nil
		}
		m.Attempts = retry.Attempts
		m.LastError = retry.LastError
		m.PublishAfter = retry.PublishAfter
		s.outbox[id] = m

		return nil
	})
}

type intentRepo struct{ u *unitOfWork }

func (r intentRepo) Insert(_ context.Context, in intent.FulfillmentIntent) (intent.FulfillmentIntent, error) {
	err := r.u.with("intents.insert", func(s *state) error {
		in.ID = s.nextID()
		s.intents[in.ID] = in

		return nil
	})

	return in, err
}

func (r intentRepo) GetPending(_ context.Context, limit int) ([]intent.FulfillmentIntent, error) {
	var out []intent.FulfillmentIntent
	err := r.u.with("intents.pending", func(s *state) error {
		now := time.Now()
		for _, in := range s.intents {
			if !in.NextRetryAt.After(now) && in.RetryCount < in.MaxRetries {
				out = append(out, in)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].NextRetryAt.Equal(out[j].NextRetryAt) {
				return out[i].NextRetryAt.Before(out[j].NextRetryAt)
			}

			return out[i].ID < out[j].ID
		})
		out = page(out, limit, 0)

		return nil
	})

	return out, err
}

func (r intentRepo) Delete(_ context.Context, id int64) error {
	return r.u.with("intents.delete", func(s *state) error {
		delete(s.intents, id)

		return nil
	})
}

func (r intentRepo) UpdateRetry(
	_ context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	return r.u.with("intents.update_retry", func(s *state) error {
		in, ok := s.intents[id]
		if !ok {
			return nil
		}
		in.RetryCount = retryCount
		in.LastError = lastError
		in.NextRetryAt = nextRetryAt
		in.UpdatedAt = time.Now()
		s.intents[id] = in

		return nil
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
