package iproductrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// IProductRepository is an interface for product stock repository.
type IProductRepository interface {
	// Decrement subtracts the quantities keyed by product id in one statement
	// and returns the updated products. Stock is allowed to go negative.
	Decrement(ctx context.Context, quantities map[int64]int) ([]product.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
}
