package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/intent"
	"github.com/spf13/viper"
)

// fulfiller runs fulfillment intents and settles their outcome.
type fulfiller interface {
	Execute(ctx context.Context, intents []intent.FulfillmentIntent) int
}

// Worker retries fulfillment intents left behind by failed post-payment steps.
type Worker struct {
	newUOW       uow.Factory
	fulfiller    fulfiller
	pollInterval time.Duration
	batchSize    int
	stopCh       chan struct{}
}

// NewWorker creates a new reconcile worker.
func NewWorker(
	newUOW uow.Factory,
	fulfiller fulfiller,
) *Worker {
	pollIntervalSeconds := viper.GetInt("reconcile.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 15
	}

	batchSize := viper.GetInt("reconcile.batch_size")
	if batchSize == 0 {
		batchSize = 50
	}

	return &Worker{
		newUOW:       newUOW,
		fulfiller:    fulfiller,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		stopCh:       make(chan struct{}),
	}
}

// Start begins retrying due intents.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Reconcile worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reconcile worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Reconcile worker stopped")

			return
		case <-ticker.C:
			w.processIntents(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processIntents runs one batch of due intents and reports how many succeeded.
// A stock reduction of an order that is not materialized yet fails and waits for
// its next attempt.
func (w *Worker) processIntents(ctx context.Context) int {
	intents, err := w.newUOW().Intents().GetPending(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending fulfillment intents", "error", err)

		return 0
	}

	if len(intents) == 0 {
		return 0
	}

	slog.Info("Reconciling fulfillment intents", "count", len(intents))

	done := w.fulfiller.Execute(ctx, intents)
	if done < len(intents) {
		slog.Warn("Some fulfillment intents are still failing", "failed", len(intents)-done)
	}

	return done
}
