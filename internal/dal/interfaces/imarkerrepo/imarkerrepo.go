package imarkerrepo

import (
	"context"
	"time"
)

// IMaterializationRepository records orders whose delivery items were created.
type IMaterializationRepository interface {
	// Claim inserts the marker of orderID and reports false when it already exists.
	Claim(ctx context.Context, orderID int64, itemCount int, at time.Time) (bool, error)
}

// IStockReductionRepository records orders whose stock was reduced.
type IStockReductionRepository interface {
	// Claim inserts the ledger entry of orderID and reports false when it already exists.
	Claim(ctx context.Context, orderID int64, units int, at time.Time) (bool, error)
}
