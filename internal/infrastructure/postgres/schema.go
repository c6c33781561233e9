package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema crea las tablas del motor si no existen. Se llama al arrancar;
// es idempotente y no migra datos.
func EnsureSchema(ctx context.Context, q Querier) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sync_state (
			sku               TEXT PRIMARY KEY,
			remote_id         BIGINT,
			full_fingerprint  TEXT,
			fast_fingerprint  TEXT,
			last_price        NUMERIC(12,2),
			confirmed_remote  BOOLEAN NOT NULL DEFAULT FALSE,
			last_synced_at    TIMESTAMPTZ,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id                BIGSERIAL PRIMARY KEY,
			sku               TEXT NOT NULL,
			old_price         NUMERIC(12,2),
			new_price         NUMERIC(12,2) NOT NULL,
			variation_percent NUMERIC(10,2) NOT NULL DEFAULT 0,
			blocked           BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_sku ON price_history (sku, recorded_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
