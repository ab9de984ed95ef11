package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/storekit/checkout-engine/internal/checkout/domain"
)

// CartStore is the cart collaborator: a one-shot snapshot read before the
// transaction and an idempotent clear after commit.
type CartStore interface {
	Snapshot(ctx context.Context, tenantID int64, cartID uuid.UUID) (domain.CartSnapshot, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// CheckoutStore runs the whole checkout transaction: lock and validate
// stock, decrement it, materialize the order and write the outbox event,
// all committed or rolled back together. A validation failure is returned
// as *domain.ConflictError; anything else is an infrastructure failure.
type CheckoutStore interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft, lines []domain.CartLine, headers map[string]string, traceparent string) (domain.Order, error)
	Order(ctx context.Context, tenantID int64, id uuid.UUID) (domain.Order, error)
}

// ConversionGuard records which carts already produced a committed order
// whose clear has not landed yet, plus the retry queue for those clears.
type ConversionGuard interface {
	Converted(ctx context.Context, cartID uuid.UUID) (bool, error)
	MarkConverted(ctx context.Context, cartID, orderID uuid.UUID) error
	Forget(ctx context.Context, cartID uuid.UUID) error
	EnqueueRetry(ctx context.Context, cartID uuid.UUID) error
	DequeueRetry(ctx context.Context) (uuid.UUID, bool, error)
}
