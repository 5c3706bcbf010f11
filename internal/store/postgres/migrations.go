package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations run in order at startup. Never edit an applied entry; append a
// new version instead.
var migrations = []migration{
	{
		version: 1,
		name:    "core tables",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS products (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				unit TEXT NOT NULL,
				price_paise BIGINT NOT NULL,
				stock_qty DOUBLE PRECISION NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE TABLE IF NOT EXISTS suppliers (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				phone TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS inventory_batches (
				id TEXT PRIMARY KEY,
				product_id TEXT NOT NULL REFERENCES products(id),
				batch_code TEXT NOT NULL,
				qty DOUBLE PRECISION NOT NULL,
				unit_cost_paise BIGINT NOT NULL,
				value_paise BIGINT NOT NULL,
				expiry_date DATE,
				received_at TIMESTAMPTZ NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				source_type TEXT NOT NULL DEFAULT 'manual',
				source_id TEXT,
				notes TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_batches_product_status ON inventory_batches (product_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_batches_fifo ON inventory_batches (product_id, expiry_date ASC NULLS LAST, received_at ASC)`,
			`CREATE TABLE IF NOT EXISTS inventory_transactions (
				id TEXT PRIMARY KEY,
				batch_id TEXT REFERENCES inventory_batches(id),
				product_id TEXT NOT NULL REFERENCES products(id),
				type TEXT NOT NULL,
				qty DOUBLE PRECISION NOT NULL,
				reference_type TEXT NOT NULL,
				reference_id TEXT NOT NULL,
				note TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_inv_tx_product ON inventory_transactions (product_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_inv_tx_reference ON inventory_transactions (reference_type, reference_id)`,
		},
	},
	{
		version: 2,
		name:    "purchases and billing",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS purchases (
				id TEXT PRIMARY KEY,
				supplier_id TEXT NOT NULL REFERENCES suppliers(id),
				invoice_number TEXT NOT NULL DEFAULT '',
				total_paise BIGINT NOT NULL,
				received_by TEXT NOT NULL DEFAULT '',
				items JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_purchases_supplier ON purchases (supplier_id, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS distributions (
				id TEXT PRIMARY KEY,
				caterer_name TEXT NOT NULL,
				caterer_phone TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'billed',
				total_paise BIGINT NOT NULL,
				paid_paise BIGINT NOT NULL DEFAULT 0,
				items JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_distributions_status ON distributions (status, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS payments (
				id TEXT PRIMARY KEY,
				distribution_id TEXT NOT NULL REFERENCES distributions(id),
				amount_paise BIGINT NOT NULL,
				method TEXT NOT NULL,
				reference TEXT,
				note TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_distribution ON payments (distribution_id, created_at ASC)`,
			`CREATE TABLE IF NOT EXISTS reminders (
				id TEXT PRIMARY KEY,
				distribution_id TEXT NOT NULL REFERENCES distributions(id),
				caterer_name TEXT NOT NULL DEFAULT '',
				due_date TIMESTAMPTZ NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				note TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL,
				sent_at TIMESTAMPTZ
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (status, due_date ASC)`,
		},
	},
	{
		version: 3,
		name:    "storefront orders",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS orders (
				id TEXT PRIMARY KEY,
				customer_name TEXT NOT NULL,
				customer_phone TEXT NOT NULL DEFAULT '',
				delivery_address TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				total_paise BIGINT NOT NULL,
				items JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				delivered_at TIMESTAMPTZ
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status, created_at DESC)`,
		},
	},
	{
		version: 4,
		name:    "users and audit",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS app_users (
				username TEXT PRIMARY KEY,
				password TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'staff',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE TABLE IF NOT EXISTS audit_logs (
				id TEXT PRIMARY KEY,
				actor_username TEXT NOT NULL,
				actor_role TEXT NOT NULL,
				action TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL DEFAULT '',
				detail TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs (created_at DESC)`,
		},
	},
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		if err := applyMigration(ctx, tx, m); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): commit: %w", m.version, m.name, err)
		}
		log.Printf("[postgres-store] applied migration %d: %s", m.version, m.name)
	}
	return nil
}

func applyMigration(ctx context.Context, tx *sql.Tx, m migration) error {
	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name)
	return err
}
