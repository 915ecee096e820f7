package uow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
)

// Transaction is the transactional part of a unit of work.
// Begin returns the context every statement of the transaction must use.
type Transaction interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Run executes fn inside tx, committing when fn succeeds and rolling back otherwise.
// Deadline expiry is reported as errs.ErrTransactionTimeout.
func Run(ctx context.Context, tx Transaction, fn func(ctx context.Context) error) (err error) {
	txCtx, err := tx.Begin(ctx)
	if err != nil {
		return classify(ctx, err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(txCtx)); rbErr != nil {
			slog.Error("Failed to rollback transaction", "error", rbErr)
		}
		err = classify(txCtx, err)
	}()

	if err = fn(txCtx); err != nil {
		return err
	}

	if err = tx.Commit(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, errs.ErrTransactionTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", errs.ErrTransactionTimeout, err)
	}

	return err
}
