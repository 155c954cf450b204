package store

import (
	"context"
	"database/sql"
)

// EnsureSchema creates every table and index the service needs. Statements
// are idempotent so boot against an existing database is a no-op.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			role TEXT NOT NULL CHECK (role IN ('customer','admin')) DEFAULT 'customer',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			brand TEXT,
			category_id TEXT REFERENCES categories(id),
			price NUMERIC(18,2) NOT NULL,
			stock_total INT NOT NULL DEFAULT 0 CHECK (stock_total >= 0),
			image_url TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_created ON products (created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS carts (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES users(id),
			session_id TEXT,
			cart_type TEXT NOT NULL CHECK (cart_type IN ('guest','registered')),
			status TEXT NOT NULL CHECK (status IN ('active','expired','cleaned')) DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CHECK ((user_id IS NULL) <> (session_id IS NULL))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_user ON carts (user_id)
			WHERE status = 'active' AND user_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_session ON carts (session_id)
			WHERE status = 'active' AND session_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id TEXT PRIMARY KEY,
			cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			quantity INT NOT NULL CHECK (quantity > 0),
			reserved_until TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (cart_id, product_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_items_product ON cart_items (product_id, reserved_until)`,
		`CREATE TABLE IF NOT EXISTS delivery_locations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_time_slots (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL REFERENCES delivery_locations(id) ON DELETE CASCADE,
			weekday INT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			slot TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			UNIQUE (location_id, weekday, slot)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES users(id),
			session_id TEXT,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_email TEXT,
			delivery_location_id TEXT NOT NULL REFERENCES delivery_locations(id),
			delivery_date DATE NOT NULL,
			delivery_slot TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','confirmed','delivered','cancelled')) DEFAULT 'pending',
			total NUMERIC(18,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders (status, created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			unit_price NUMERIC(18,2) NOT NULL,
			quantity INT NOT NULL CHECK (quantity > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS surveys (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS survey_options (
			id TEXT PRIMARY KEY,
			survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS survey_votes (
			id TEXT PRIMARY KEY,
			survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
			option_id TEXT NOT NULL REFERENCES survey_options(id) ON DELETE CASCADE,
			voter_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (survey_id, voter_key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
