package uow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iaddressrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ideliveryitemrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iintentrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/imarkerrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ipaymentrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	addressrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/address/postgres"
	deliveryitemrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/deliveryitem/postgres"
	intentrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/intent/postgres"
	markerrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/marker/postgres"
	orderrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/outbox/postgres"
	paymentrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/payment/postgres"
	productrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/product/postgres"
	"github.com/jackc/pgx/v5"
)

const defaultTimeout = 20 * time.Second

var errTxStarted = errors.New("transaction already started")

// Repositories exposes the repositories of a unit of work.
// Before Begin they run on the pool, afterwards inside the transaction.
type Repositories interface {
	Orders() iorderrepo.IOrderRepository
	Payments() ipaymentrepo.IPaymentRepository
	DeliveryItems() ideliveryitemrepo.IDeliveryItemRepository
	Products() iproductrepo.IProductRepository
	Addresses() iaddressrepo.IAddressRepository
	Materializations() imarkerrepo.IMaterializationRepository
	StockReductions() imarkerrepo.IStockReductionRepository
	Outbox() ioutboxrepo.IOutboxRepository
	Intents() iintentrepo.IIntentRepository
}

// UnitOfWork is a transaction together with its repositories.
type UnitOfWork interface {
	Transaction
	Repositories
}

// Factory creates a fresh unit of work per use.
type Factory func() UnitOfWork

type unitOfWork struct {
	client  *postgres.Client
	timeout time.Duration
	tx      pgx.Tx
	cancel  context.CancelFunc
}

// NewFactory returns a Factory of Postgres units of work whose transactions
// are aborted after timeout.
func NewFactory(client *postgres.Client, timeout time.Duration) Factory {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return func() UnitOfWork {
		return &unitOfWork{
			client:  client,
			timeout: timeout,
		}
	}
}

func (u *unitOfWork) conn() postgres.Conn {
	if u.tx != nil {
		return u.tx
	}

	return u.client.Pool()
}

// Begin starts a read committed transaction bounded by the unit timeout.
func (u *unitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if u.tx != nil {
		return nil, errTxStarted
	}

	txCtx, cancel := context.WithTimeout(ctx, u.timeout)
	tx, err := u.client.Pool().BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.cancel = cancel

	return txCtx, nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	defer u.release()

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	defer u.release()

	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return err
}

func (u *unitOfWork) release() {
	u.tx = nil
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
}

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository {
	return orderrepo.NewPostgresOrderRepository(u.conn())
}

func (u *unitOfWork) Payments() ipaymentrepo.IPaymentRepository {
	return paymentrepo.NewPostgresPaymentRepository(u.conn())
}

func (u *unitOfWork) DeliveryItems() ideliveryitemrepo.IDeliveryItemRepository {
	return deliveryitemrepo.NewPostgresDeliveryItemRepository(u.conn())
}

func (u *unitOfWork) Products() iproductrepo.IProductRepository {
	return productrepo.NewPostgresProductRepository(u.conn())
}

func (u *unitOfWork) Addresses() iaddressrepo.IAddressRepository {
	return addressrepo.NewPostgresAddressRepository(u.conn())
}

func (u *unitOfWork) Materializations() imarkerrepo.IMaterializationRepository {
	return markerrepo.NewMaterializationRepository(u.conn())
}

func (u *unitOfWork) StockReductions() imarkerrepo.IStockReductionRepository {
	return markerrepo.NewStockReductionRepository(u.conn())
}

func (u *unitOfWork) Outbox() ioutboxrepo.IOutboxRepository {
	return outboxrepo.NewOutboxRepository(u.conn())
}

func (u *unitOfWork) Intents() iintentrepo.IIntentRepository {
	return intentrepo.NewIntentRepository(u.conn())
}
