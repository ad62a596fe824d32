package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order and every statement is safe to re-run.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS plaid_items (
		id               BIGSERIAL PRIMARY KEY,
		user_id          BIGINT NOT NULL,
		item_id          TEXT NOT NULL,
		access_token     TEXT NOT NULL,
		institution_id   TEXT NOT NULL DEFAULT '',
		institution_name TEXT NOT NULL DEFAULT '',
		sync_cursor      TEXT,
		last_synced_at   TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS plaid_items_item_id_idx ON plaid_items (item_id)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id                 BIGSERIAL PRIMARY KEY,
		user_id            BIGINT NOT NULL,
		item_id            BIGINT REFERENCES plaid_items (id) ON DELETE CASCADE,
		account_id         TEXT,
		name               TEXT NOT NULL,
		official_name      TEXT,
		mask               TEXT,
		type               TEXT NOT NULL,
		subtype            TEXT,
		current_balance    NUMERIC(14, 2) NOT NULL DEFAULT 0,
		available_balance  NUMERIC(14, 2),
		is_manual          BOOLEAN NOT NULL DEFAULT FALSE,
		balance_updated_at TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (item_id, account_id)
	)`,
	`CREATE INDEX IF NOT EXISTS accounts_user_id_idx ON accounts (user_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                BIGSERIAL PRIMARY KEY,
		account_id        BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
		transaction_id    TEXT NOT NULL UNIQUE,
		amount            NUMERIC(14, 2) NOT NULL,
		name              TEXT NOT NULL,
		merchant_name     TEXT,
		date              DATE NOT NULL,
		pending           BOOLEAN NOT NULL DEFAULT FALSE,
		primary_category  TEXT,
		detailed_category TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sync_history (
		id                    BIGSERIAL PRIMARY KEY,
		run_id                TEXT NOT NULL,
		user_id               BIGINT NOT NULL,
		trigger_type          TEXT NOT NULL,
		status                TEXT NOT NULL,
		transactions_added    INTEGER NOT NULL DEFAULT 0,
		transactions_modified INTEGER NOT NULL DEFAULT 0,
		transactions_removed  INTEGER NOT NULL DEFAULT 0,
		balances_updated      INTEGER NOT NULL DEFAULT 0,
		error_message         TEXT,
		started_at            TIMESTAMPTZ NOT NULL,
		completed_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sync_history_user_started_idx ON sync_history (user_id, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS net_worth_history (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL,
		date              DATE NOT NULL,
		total_assets      NUMERIC(14, 2) NOT NULL,
		total_liabilities NUMERIC(14, 2) NOT NULL,
		net_worth         NUMERIC(14, 2) NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, date)
	)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	log.Printf("INFO: Database schema up to date (%d statements)", len(schema))
	return nil
}
