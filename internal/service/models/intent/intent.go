package intent

import "time"

// Kind is the post-commit side effect an intent stands for.
type Kind string

const (
	KindMaterialize Kind = "materialize"
	KindReduceStock Kind = "reduce_stock"
)

// FulfillmentIntent is a side effect recorded durably before it is attempted.
// Payload holds the JSON-encoded order specification.
type FulfillmentIntent struct {
	ID          int64
	OrderID     int64
	Kind        Kind
	Payload     []byte
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NextRetryAt time.Time
}
