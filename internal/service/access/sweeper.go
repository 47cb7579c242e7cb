// internal/service/access/sweeper.go
package access

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiryStore is the subset of the entitlement store the sweeper writes.
type ExpiryStore interface {
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper periodically normalizes subscription rows whose period has
// ended. Lazy observation in the access engine remains authoritative; the
// sweep only keeps reporting queries honest.
type ExpirySweeper struct {
	subscriptionRepo ExpiryStore
	interval         time.Duration
	logger           *zap.Logger
}

func NewExpirySweeper(subscriptionRepo ExpiryStore, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpirySweeper{
		subscriptionRepo: subscriptionRepo,
		interval:         interval,
		logger:           logger,
	}
}

// Run sweeps until ctx is cancelled. Intended to run in its own goroutine.
func (w *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.subscriptionRepo.MarkExpired(sweepCtx, time.Now().UTC())
	if err != nil {
		w.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}

	if n > 0 {
		w.logger.Info("marked expired subscriptions", zap.Int64("count", n))
	}
}
