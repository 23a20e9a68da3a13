package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS users (
		id                  TEXT PRIMARY KEY,
		email               TEXT NOT NULL UNIQUE,
		password_hash       TEXT NOT NULL,
		shop_name           TEXT NOT NULL,
		phone_number        TEXT NOT NULL DEFAULT '',
		email_verified      INTEGER NOT NULL DEFAULT 0,
		low_stock_threshold INTEGER NOT NULL DEFAULT 10 CHECK(low_stock_threshold >= 0),
		notify_email        INTEGER NOT NULL DEFAULT 1,
		notify_sms          INTEGER NOT NULL DEFAULT 0,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_verified ON users(email_verified);

	CREATE TABLE IF NOT EXISTS categories (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL,
		icon       TEXT NOT NULL DEFAULT '📦',
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_categories_user_name ON categories(user_id, name);

	CREATE TABLE IF NOT EXISTS products (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id         TEXT NOT NULL REFERENCES categories(id),
		barcode             TEXT NOT NULL DEFAULT '',
		product_name        TEXT NOT NULL,
		brand               TEXT NOT NULL DEFAULT '',
		batch_number        TEXT NOT NULL DEFAULT '',
		expiry_date         DATETIME,
		manufacture_date    DATETIME,
		quantity            INTEGER NOT NULL DEFAULT 0 CHECK(quantity >= 0),
		unit                TEXT NOT NULL DEFAULT 'pieces',
		cost_price          REAL NOT NULL DEFAULT 0.0 CHECK(cost_price >= 0),
		selling_price       REAL NOT NULL DEFAULT 0.0 CHECK(selling_price >= 0),
		supplier            TEXT NOT NULL DEFAULT '',
		last_restock_date   DATETIME,
		image_url           TEXT NOT NULL DEFAULT '',
		alert_low_stock     INTEGER NOT NULL DEFAULT 0,
		alert_expiring_soon INTEGER NOT NULL DEFAULT 0,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_products_user_quantity ON products(user_id, quantity);
	CREATE INDEX IF NOT EXISTS idx_products_user_expiry ON products(user_id, expiry_date);
	CREATE INDEX IF NOT EXISTS idx_products_user_barcode ON products(user_id, barcode);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

	CREATE TABLE IF NOT EXISTS scan_history (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL DEFAULT '',
		barcode    TEXT NOT NULL DEFAULT '',
		action     TEXT NOT NULL CHECK(action IN ('view', 'update', 'add')),
		scanned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_scan_history_user_time ON scan_history(user_id, scanned_at);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sqlx.DB) error {
	// Ensure migration tracking table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	if err := db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
