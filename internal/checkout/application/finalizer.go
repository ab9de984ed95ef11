package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Finalizer clears carts after their order has committed. The clear is
// deliberately outside the checkout transaction: the order stays committed
// even if the clear fails. A failed clear leaves the converted-cart marker
// in place and queues the cart for out-of-band retry, so re-checking-out
// an uncleared cart is rejected instead of duplicated.
type Finalizer struct {
	log      *slog.Logger
	carts    CartStore
	guard    ConversionGuard
	interval time.Duration
}

func NewFinalizer(log *slog.Logger, carts CartStore, guard ConversionGuard) *Finalizer {
	return &Finalizer{
		log:      log,
		carts:    carts,
		guard:    guard,
		interval: 2 * time.Second,
	}
}

// Finalize runs the post-commit step for one checkout. Best effort only.
func (f *Finalizer) Finalize(ctx context.Context, cartID, orderID uuid.UUID) {
	if err := f.guard.MarkConverted(ctx, cartID, orderID); err != nil {
		f.log.Error("mark converted failed", "cart_id", cartID, "order_id", orderID, "err", err)
	}
	if err := f.carts.Clear(ctx, cartID); err != nil {
		f.log.Warn("cart clear failed, queued for retry", "cart_id", cartID, "err", err)
		if err := f.guard.EnqueueRetry(ctx, cartID); err != nil {
			f.log.Error("enqueue cart clear retry failed", "cart_id", cartID, "err", err)
		}
		return
	}
	if err := f.guard.Forget(ctx, cartID); err != nil {
		f.log.Error("forget converted marker failed", "cart_id", cartID, "err", err)
	}
}

// Run drains the retry queue until the context is cancelled.
func (f *Finalizer) Run(ctx context.Context) error {
	t := time.NewTicker(f.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Info("cart finalizer stopping")
			return nil
		case <-t.C:
			for {
				cartID, ok, err := f.guard.DequeueRetry(ctx)
				if err != nil {
					f.log.Error("dequeue cart clear retry failed", "err", err)
					break
				}
				if !ok {
					break
				}
				if err := f.carts.Clear(ctx, cartID); err != nil {
					f.log.Warn("cart clear retry failed", "cart_id", cartID, "err", err)
					if err := f.guard.EnqueueRetry(ctx, cartID); err != nil {
						f.log.Error("re-enqueue cart clear retry failed", "cart_id", cartID, "err", err)
					}
					break
				}
				if err := f.guard.Forget(ctx, cartID); err != nil {
					f.log.Error("forget converted marker failed", "cart_id", cartID, "err", err)
				}
				f.log.Info("cart cleared on retry", "cart_id", cartID)
			}
		}
	}
}
