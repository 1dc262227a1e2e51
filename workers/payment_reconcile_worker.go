package workers

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler resolves deposit orders whose webhook never arrived.
type Reconciler interface {
	Reconcile(ctx context.Context, grace time.Duration) (int, error)
}

// PollPayments asks the gateway about stale PENDING orders on every tick.
func PollPayments(ctx context.Context, r Reconciler, logger *slog.Logger, pollInterval, grace time.Duration) {
	logger.Info("payment reconciliation started",
		slog.Duration("interval", pollInterval),
		slog.Duration("grace", grace),
	)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("payment reconciliation stopped")
			return
		case <-ticker.C:
			resolved, err := r.Reconcile(ctx, grace)
			if err != nil {
				logger.Warn("payment reconciliation failed", slog.Any("error", err))
				continue
			}
			if resolved > 0 {
				logger.Info("payment orders reconciled", slog.Int("resolved", resolved))
			}
		}
	}
}
