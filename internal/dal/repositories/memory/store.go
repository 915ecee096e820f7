// Package memory is an in-process storage driver. A unit of work holds the
// store lock from Begin to Commit or Rollback and works on a copy of the
// state, so transactions are serializable and rollback discards all writes.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

type state struct {
	seq              int64
	orders           map[int64]order.Order
	payments         map[int64]payment.Payment
	receipts         map[int64]payment.Receipt
	items            map[int64]deliveryitem.DeliveryItem
	products         map[int64]product.Product
	addresses        map[int64]address.Address
	materializations map[int64]int
	reductions       map[int64]int
	outbox           map[int64]outbox.Message
	intents          map[int64]intent.FulfillmentIntent
}

func newState() *state {
	return &state{
		orders:           map[int64]order.Order{},
		payments:         map[int64]payment.Payment{},
		receipts:         map[int64]payment.Receipt{},
		items:            map[int64]deliveryitem.DeliveryItem{},
		products:         map[int64]product.Product{},
		addresses:        map[int64]address.Address{},
		materializations: map[int64]int{},
		reductions:       map[int64]int{},
		outbox:           map[int64]outbox.Message{},
		intents:          map[int64]intent.FulfillmentIntent{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:              s.seq,
		orders:           maps.Clone(s.orders),
		payments:         maps.Clone(s.payments),
		receipts:         maps.Clone(s.receipts),
		items:            maps.Clone(s.items),
		products:         maps.Clone(s.products),
		addresses:        maps.Clone(s.addresses),
		materializations: maps.Clone(s.materializations),
		reductions:       maps.Clone(s.reductions),
		outbox:           maps.Clone(s.outbox),
		intents:          maps.Clone(s.intents),
	}
}

func (s *state) nextID() int64 {
	s.seq++

	return s.seq
}

// Store is the shared state of the memory driver.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		st:     newState(),
		faults: map[string]error{},
	}
}

// Factory returns a unit of work factory backed by the store.
func (s *Store) Factory() uow.Factory {
	return func() uow.UnitOfWork {
		return &unitOfWork{store: s}
	}
}

// Fail makes every later call of op return err until cleared with a nil err.
// Ops are named "<repository>.<method>", for example "payments.insert".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.faults, op)

		return
	}
	s.faults[op] = err
}

// SeedProducts stores products with the given ids and stock levels.
func (s *Store) SeedProducts(products ...product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		s.st.products[p.ID] = p
		if p.ID > s.st.seq {
			s.st.seq = p.ID
		}
	}
}

// SeedOrder stores an order and returns it with its id.
func (s *Store) SeedOrder(o order.Order) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.st.nextID()
	s.st.orders[o.ID] = o

	return o
}

// Intents returns every stored intent ordered by id.
func (s *Store) Intents() []intent.FulfillmentIntent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedValues(s.st.intents, func(in intent.FulfillmentIntent) int64 { return in.ID })
}

// OutboxMessages returns every stored outbox message ordered by id.
func (s *Store) OutboxMessages() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedValues(s.st.outbox, func(m outbox.Message) int64 { return m.ID })
}

// Payments returns every stored payment ordered by id.
func (s *Store) Payments() []payment.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedValues(s.st.payments, func(p payment.Payment) int64 { return p.ID })
}

// Orders returns every stored order ordered by id.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedValues(s.st.orders, func(o order.Order) int64 { return o.ID })
}

// Addresses returns every stored address ordered by id.
func (s *Store) Addresses() []address.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedValues(s.st.addresses, func(a address.Address) int64 { return a.ID })
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })

	return out
}

type unitOfWork struct {
	store *Store
	tx    *state
}

func (u *unitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if u.tx != nil {
		return nil, errTxStarted
	}

	u.store.mu.Lock()
	u.tx = u.store.st.clone()

	return ctx, nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	defer u.store.mu.Unlock()

	if err := u.store.faults["tx.commit"]; err != nil {
		u.tx = nil

		return err
	}
	u.store.st = u.tx
	u.tx = nil

	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

// with runs fn against the transaction state, or against the shared state
// under the store lock when no transaction is open.
func (u *unitOfWork) with(op string, fn func(s *state) error) error {
	if u.tx != nil {
		if err := u.store.faults[op]; err != nil {
			return err
		}

		return fn(u.tx)
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if err := u.store.faults[op]; err != nil {
		return err
	}

	return fn(u.store.st)
}
