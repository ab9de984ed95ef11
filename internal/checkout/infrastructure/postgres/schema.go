package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id UUID PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		customer_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGSERIAL PRIMARY KEY,
		cart_id UUID NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		customer_id UUID,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		amount NUMERIC(12,2) NOT NULL,
		status SMALLINT NOT NULL DEFAULT 0,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		quantity INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload JSONB NOT NULL,
		headers JSONB,
		traceparent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		relay_id TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items (cart_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id)`,
}

// EnsureSchema creates the engine's tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
