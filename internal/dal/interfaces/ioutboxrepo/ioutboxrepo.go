package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
)

// IOutboxRepository stores fulfillment events until they are published.
type IOutboxRepository interface {
	Insert(ctx context.Context, msg outbox.Message) error
	// GetDue returns up to limit messages whose publish time has come, oldest first.
	GetDue(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error)
	Delete(ctx context.Context, id int64) error
	ScheduleRetry(ctx context.Context, id int64, retry outbox.Retry) error
}
