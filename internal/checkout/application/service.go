package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storekit/checkout-engine/internal/checkout/domain"
	"github.com/storekit/checkout-engine/pkg/metrics"
)

type CheckoutRequest struct {
	TenantID   int64
	CartID     uuid.UUID
	CustomerID *uuid.UUID
	Contact    domain.Contact
	Comment    string
}

type Service struct {
	log       *slog.Logger
	carts     CartStore
	store     CheckoutStore
	finalizer *Finalizer
	metrics   *metrics.CheckoutMetrics
}

func NewService(log *slog.Logger, carts CartStore, store CheckoutStore, finalizer *Finalizer, m *metrics.CheckoutMetrics) *Service {
	return &Service{
		log:       log,
		carts:     carts,
		store:     store,
		finalizer: finalizer,
		metrics:   m,
	}
}

// Checkout converts a cart into an order. The cart is read once up front;
// all stock checks and mutations happen inside the store's transaction, so
// a failure there takes no effect at all. The cart clear runs after the
// commit and never fails the checkout.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest, headers map[string]string, traceparent string) (domain.Order, error) {
	start := time.Now()

	converted, err := s.finalizer.guard.Converted(ctx, req.CartID)
	if err != nil {
		// The guard is advisory: if redis is down a duplicate order is
		// possible, but a checkout outage is worse.
		s.log.Error("conversion guard check failed", "cart_id", req.CartID, "err", err)
	} else if converted {
		s.metrics.Outcomes.WithLabelValues(metrics.OutcomeRejected).Inc()
		return domain.Order{}, domain.ErrCartConverted
	}

	snap, err := s.carts.Snapshot(ctx, req.TenantID, req.CartID)
	if err != nil {
		return domain.Order{}, err
	}
	if snap.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	draft := domain.NewDraft(req.TenantID, req.CustomerID, req.Contact, req.Comment, snap.Lines)

	order, err := s.store.CreateOrder(ctx, draft, snap.Lines, headers, traceparent)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.Outcomes.WithLabelValues(metrics.OutcomeConflict).Inc()
			s.log.Info("checkout rejected", "cart_id", req.CartID, "conflicts", len(conflict.Conflicts))
		} else {
			s.metrics.Outcomes.WithLabelValues(metrics.OutcomeFailure).Inc()
			s.log.Error("checkout transaction failed", "cart_id", req.CartID, "err", err)
		}
		return domain.Order{}, err
	}

	s.metrics.Outcomes.WithLabelValues(metrics.OutcomeCommitted).Inc()
	s.metrics.Duration.Observe(time.Since(start).Seconds())
	s.log.Info("order created", "order_id", order.ID, "cart_id", req.CartID, "amount", order.Amount)

	// The order is committed; post-commit work must survive the caller
	// hanging up. A cancelled request context here would drop the
	// converted marker and the retry enqueue along with the clear,
	// leaving the full cart open for a duplicate checkout.
	s.finalizer.Finalize(context.WithoutCancel(ctx), req.CartID, order.ID)
	return order, nil
}

func (s *Service) Order(ctx context.Context, tenantID int64, id uuid.UUID) (domain.Order, error) {
	return s.store.Order(ctx, tenantID, id)
}
