package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekit/checkout-engine/internal/checkout/domain"
)

// CartStore reads cart snapshots and clears carts. Snapshot takes no
// locks: it only decides whether a checkout proceeds.
type CartStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewCartStore(log *slog.Logger, pool *pgxpool.Pool) *CartStore {
	return &CartStore{log: log, pool: pool}
}

func (s *CartStore) Snapshot(ctx context.Context, tenantID int64, cartID uuid.UUID) (domain.CartSnapshot, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM carts WHERE tenant_id = $1 AND id = $2
	`, tenantID, cartID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CartSnapshot{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity, price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id
	`, cartID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	defer rows.Close()

	snap := domain.CartSnapshot{CartID: cartID, TenantID: tenantID}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Price); err != nil {
			return domain.CartSnapshot{}, err
		}
		snap.Lines = append(snap.Lines, l)
	}
	return snap, rows.Err()
}

// Clear removes the cart's items. Idempotent: clearing an already-empty
// cart is not an error.
func (s *CartStore) Clear(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
