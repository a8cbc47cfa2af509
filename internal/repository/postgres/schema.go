package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the gateway tables and the minimal storefront tables it reads.
// Storefronts that already own orders/products/cart tables only need payment_attempts.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	total      NUMERIC(12, 2) NOT NULL,
	currency   TEXT NOT NULL DEFAULT 'USD',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	stock INTEGER
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id   TEXT NOT NULL REFERENCES orders (id),
	product_id TEXT NOT NULL REFERENCES products (id),
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	PRIMARY KEY (order_id, product_id)
);

CREATE TABLE IF NOT EXISTS order_notes (
	id         BIGSERIAL PRIMARY KEY,
	order_id   TEXT NOT NULL REFERENCES orders (id),
	note       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_meta (
	order_id   TEXT NOT NULL REFERENCES orders (id),
	meta_key   TEXT NOT NULL,
	meta_value TEXT NOT NULL,
	PRIMARY KEY (order_id, meta_key)
);

CREATE TABLE IF NOT EXISTS cart_items (
	session_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	quantity   INTEGER NOT NULL,
	PRIMARY KEY (session_id, product_id)
);

CREATE TABLE IF NOT EXISTS payment_attempts (
	reference         TEXT PRIMARY KEY,
	order_id          TEXT NOT NULL REFERENCES orders (id),
	msisdn            TEXT NOT NULL,
	amount            NUMERIC(12, 2) NOT NULL,
	currency          TEXT NOT NULL,
	reason            TEXT NOT NULL,
	status            TEXT NOT NULL,
	confirmed_via     TEXT,
	provider_response JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS payment_attempts_order_id_idx ON payment_attempts (order_id, created_at DESC);
`

// Migrate applies the schema. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
