package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekit/checkout-engine/internal/checkout/domain"
)

// Repository owns the checkout transaction: it locks the stock rows,
// validates and decrements them, materializes the order and writes the
// outbox event, then commits everything or nothing.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// querier is satisfied by both pgx.Tx and *pgxpool.Pool, so order reads
// can run inside the checkout transaction or standalone.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateOrder is the transaction coordinator. Read committed is enough:
// the FOR UPDATE row locks serialize conflicting checkouts, the isolation
// level does not need to. A *domain.ConflictError return means validation
// rejected the cart and the transaction rolled back with zero effects;
// any other error is an infrastructure failure, also fully rolled back.
func (r *Repository) CreateOrder(ctx context.Context, draft domain.OrderDraft, lines []domain.CartLine, headers map[string]string, traceparent string) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ids := domain.LockOrder(lines)
	requested := domain.RequestedQuantities(lines)

	locked, err := lockProducts(ctx, tx, draft.TenantID, ids)
	if err != nil {
		if isLockTimeout(err) {
			r.log.Warn("lock wait timed out during checkout", "order_id", draft.ID, "products", ids)
		}
		return domain.Order{}, fmt.Errorf("lock products: %w", err)
	}

	if conflict := validateStock(locked, ids, requested); conflict != nil {
		return domain.Order{}, conflict
	}

	for _, id := range ids {
		if err := decrementStock(ctx, tx, draft.TenantID, id, requested[id]); err != nil {
			return domain.Order{}, fmt.Errorf("decrement stock: %w", err)
		}
	}

	if err := insertOrder(ctx, tx, draft, lines, locked); err != nil {
		return domain.Order{}, fmt.Errorf("materialize order: %w", err)
	}

	// Re-read inside the transaction so the caller gets the stored values,
	// not the in-memory draft.
	order, err := fetchOrder(ctx, tx, draft.TenantID, draft.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("read back order: %w", err)
	}

	payload, err := json.Marshal(domain.OrderCreated{
		OrderID:    order.ID,
		TenantID:   order.TenantID,
		CustomerID: order.CustomerID,
		Amount:     order.Amount,
		Items:      order.Items,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("marshal order event: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent)
		VALUES ('order', $1, 'OrderCreated', $2, $3, $4)
	`, order.ID.String(), payload, headers, traceparent)
	if err != nil {
		return domain.Order{}, fmt.Errorf("write outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit checkout tx: %w", err)
	}
	return order, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, draft domain.OrderDraft, lines []domain.CartLine, locked map[int64]lockedProduct) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, tenant_id, customer_id, name, email, phone, address, amount, status, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, draft.ID, draft.TenantID, draft.CustomerID,
		draft.Contact.Name, draft.Contact.Email, draft.Contact.Phone, draft.Contact.Address,
		draft.Amount, int16(domain.StatusNew), draft.Comment)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO order_items (order_id, name, price, quantity)
			VALUES ($1,$2,$3,$4)
		`, draft.ID, locked[l.ProductID].Name, l.Price, l.Quantity)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Order fetches a materialized order with its items.
func (r *Repository) Order(ctx context.Context, tenantID int64, id uuid.UUID) (domain.Order, error) {
	return fetchOrder(ctx, r.pool, tenantID, id)
}

func fetchOrder(ctx context.Context, q querier, tenantID int64, id uuid.UUID) (domain.Order, error) {
	var (
		o      domain.Order
		status int16
	)
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, customer_id, name, email, phone, address, amount, status, comment, created_at, updated_at
		FROM orders
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(
		&o.ID, &o.TenantID, &o.CustomerID,
		&o.Contact.Name, &o.Contact.Email, &o.Contact.Phone, &o.Contact.Address,
		&o.Amount, &status, &o.Comment, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)

	rows, err := q.Query(ctx, `
		SELECT id, order_id, name, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// AdjustStock is the administrative stock mutation. It takes the same row
// lock as checkout, so catalog adjustments serialize against in-flight
// checkouts instead of racing them.
func (r *Repository) AdjustStock(ctx context.Context, tenantID, productID int64, delta int) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin adjust tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var stock int
	err = tx.QueryRow(ctx, `
		SELECT stock FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE
	`, tenantID, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &domain.ConflictError{Conflicts: []domain.StockConflict{
			{ProductID: productID, Reason: domain.ReasonNotFound},
		}}
	}
	if err != nil {
		return 0, err
	}
	if stock+delta < 0 {
		return 0, &domain.ConflictError{Conflicts: []domain.StockConflict{
			{ProductID: productID, Reason: domain.ReasonInsufficientStock, Available: stock, Requested: -delta},
		}}
	}

	_, err = tx.Exec(ctx, `
		UPDATE products SET stock = stock + $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, productID, delta)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return stock + delta, nil
}

// 55P03 lock_not_available surfaces when lock_timeout is configured. It is
// an infrastructure failure, never an insufficient-stock conflict.
func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}
