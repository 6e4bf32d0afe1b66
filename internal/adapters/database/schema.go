package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
)

// migrations are applied in order inside one transaction. Every statement is
// idempotent so Migrate can run on each deploy.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS facilities (
		id            TEXT PRIMARY KEY,
		facility_type TEXT NOT NULL,
		document      JSONB NOT NULL,
		content_hash  TEXT NOT NULL,
		missing_since TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS facilities_lower_id_idx ON facilities (LOWER(id))`,
	`CREATE TABLE IF NOT EXISTS facility_overlays (
		id                TEXT PRIMARY KEY,
		operating_status  JSONB,
		detailed_services JSONB,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS facility_overlays_lower_id_idx ON facility_overlays (LOWER(id))`,
	`CREATE TABLE IF NOT EXISTS drive_time_bands (
		id          TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		min_minutes INTEGER NOT NULL,
		max_minutes INTEGER NOT NULL,
		min_lat     DOUBLE PRECISION NOT NULL,
		max_lat     DOUBLE PRECISION NOT NULL,
		min_lon     DOUBLE PRECISION NOT NULL,
		max_lon     DOUBLE PRECISION NOT NULL,
		rings       JSONB NOT NULL,
		version     TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS drive_time_bands_lower_id_idx ON drive_time_bands (LOWER(id))`,
	`CREATE INDEX IF NOT EXISTS drive_time_bands_bbox_idx ON drive_time_bands (min_lat, max_lat, min_lon, max_lon)`,
}

// Migrate creates the facility store schema
func Migrate(ctx context.Context, client *postgres.Client) error {
	tx, err := client.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Info().Int("statements", len(migrations)).Msg("Facility store schema is up to date")
	return nil
}
