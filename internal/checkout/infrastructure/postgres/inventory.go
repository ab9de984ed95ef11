package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storekit/checkout-engine/internal/checkout/domain"
)

// lockedProduct is one stock row as seen under the row lock. Name rides
// along so the materializer can snapshot it without a second read.
type lockedProduct struct {
	ID    int64
	Name  string
	Stock int
}

// lockProducts takes exclusive row locks on every product in ids, inside
// the caller's transaction. ids must already be in the deterministic lock
// order (ascending); the ORDER BY matches it so the database touches the
// rows in the same sequence. Missing products simply do not appear in the
// result, validation turns them into not-found conflicts.
func lockProducts(ctx context.Context, tx pgx.Tx, tenantID int64, ids []int64) (map[int64]lockedProduct, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE
	`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[int64]lockedProduct, len(ids))
	for rows.Next() {
		var p lockedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock); err != nil {
			return nil, err
		}
		locked[p.ID] = p
	}
	return locked, rows.Err()
}

// validateStock checks every requested product against its locked row and
// collects all failures instead of stopping at the first. ids carries the
// lock order so the conflict list is deterministic.
func validateStock(locked map[int64]lockedProduct, ids []int64, requested map[int64]int) *domain.ConflictError {
	var conflicts []domain.StockConflict
	for _, id := range ids {
		qty := requested[id]
		p, ok := locked[id]
		if !ok {
			conflicts = append(conflicts, domain.StockConflict{
				ProductID: id,
				Reason:    domain.ReasonNotFound,
			})
			continue
		}
		if p.Stock < qty {
			conflicts = append(conflicts, domain.StockConflict{
				ProductID: id,
				Reason:    domain.ReasonInsufficientStock,
				Available: p.Stock,
				Requested: qty,
			})
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return &domain.ConflictError{Conflicts: conflicts}
}

// decrementStock applies one validated decrement under the lock already
// held by the transaction. Validation guaranteed sufficiency, so an
// unmatched row here means the protocol was violated.
func decrementStock(ctx context.Context, tx pgx.Tx, tenantID, productID int64, qty int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("stock decrement touched %d rows for product %d", ct.RowsAffected(), productID)
	}
	return nil
}
