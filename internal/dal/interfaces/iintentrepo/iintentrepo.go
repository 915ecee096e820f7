package iintentrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
)

// IIntentRepository defines the interface for fulfillment intent operations.
type IIntentRepository interface {
	// Insert adds a new intent and returns it with its id
	Insert(ctx context.Context, in intent.FulfillmentIntent) (intent.FulfillmentIntent, error)

	// GetPending retrieves intents that are due for a retry
	GetPending(ctx context.Context, limit int) ([]intent.FulfillmentIntent, error)

	// Delete removes an intent after its side effect succeeded
	Delete(ctx context.Context, id int64) error

	// UpdateRetry updates retry count and error information
	UpdateRetry(
		ctx context.Context,
		id int64,
		retryCount int,
		lastError string,
		nextRetryAt time.Time,
	) error
}
