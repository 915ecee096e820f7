package outbox

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

type publisher interface {
	Publish(exchange, routingKey string, p amqp.Publishing) error
}

// Worker publishes due fulfillment events from the outbox table to RabbitMQ.
type Worker struct {
	newUOW        uow.Factory
	publisher     publisher
	pollInterval  time.Duration
	batchSize     int
	concurrency   int
	retryInterval time.Duration
	now           func() time.Time
	stopCh        chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(newUOW uow.Factory, publisher publisher) *Worker {
	seconds := func(key string, def int) time.Duration {
		if v := viper.GetInt(key); v > 0 {
			return time.Duration(v) * time.Second
		}

		return time.Duration(def) * time.Second
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize <= 0 {
		batchSize = 100
	}

	concurrency := viper.GetInt("rabbitmq.outbox.concurrency")
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Worker{
		newUOW:        newUOW,
		publisher:     publisher,
		pollInterval:  seconds("rabbitmq.outbox.poll_interval_seconds", 10),
		batchSize:     batchSize,
		concurrency:   concurrency,
		retryInterval: seconds("rabbitmq.outbox.retry_interval_seconds", 30),
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start publishes due messages every poll interval until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.publishDue(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// publishDue publishes one batch of due messages and returns how many reached the broker.
func (w *Worker) publishDue(ctx context.Context) int {
	messages, err := w.newUOW().Outbox().GetDue(ctx, w.now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to get due outbox messages", "error", err)

		return 0
	}
	if len(messages) == 0 {
		return 0
	}

	var published atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)
	for _, msg := range messages {
		eg.Go(func() error {
			if w.deliver(egCtx, msg) {
				published.Add(1)
			}

			return nil
		})
	}
	_ = eg.Wait()

	slog.Info("Outbox batch processed", "due", len(messages), "published", published.Load())

	return int(published.Load())
}

func (w *Worker) deliver(ctx context.Context, msg outbox.Message) bool {
	repo := w.newUOW().Outbox()

	err := w.publisher.Publish(msg.Exchange, msg.RoutingKey, amqp.Publishing{
		MessageId:    msg.MessageID,
		Type:         msg.EventType,
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.CreatedAt,
		Body:         msg.Payload,
	})
	if err != nil {
		retry := outbox.Retry{
			Attempts:     msg.Attempts + 1,
			LastError:    err.Error(),
			PublishAfter: w.now().Add(w.retryInterval << msg.Attempts),
		}
		if retry.Exhausted(msg.MaxAttempts) {
			slog.Error("Outbox message exhausted publish attempts",
				"message_id", msg.MessageID, "order_id", msg.OrderID, "attempts", retry.Attempts, "error", err)
		} else {
			slog.Warn("Failed to publish outbox message, will retry",
				"message_id", msg.MessageID, "attempts", retry.Attempts, "publish_after", retry.PublishAfter, "error", err)
		}

		if err := repo.ScheduleRetry(ctx, msg.ID, retry); err != nil {
			slog.Error("Failed to schedule outbox retry", "message_id", msg.MessageID, "error", err)
		}

		return false
	}

	if err := repo.Delete(ctx, msg.ID); err != nil {
		slog.Error("Failed to delete published outbox message", "message_id", msg.MessageID, "error", err)
	}

	return true
}
