package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docvoice/internal/logger"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_conversion_jobs",
		SQL: `CREATE TABLE IF NOT EXISTS conversion_jobs (
  id                TEXT        PRIMARY KEY,
  user_id           TEXT        NOT NULL,
  file_name         TEXT        NOT NULL,
  size_bytes        BIGINT      NOT NULL CHECK (size_bytes >= 0),
  page_count        INTEGER     NOT NULL DEFAULT 0,
  status            TEXT        NOT NULL CHECK (status IN ('uploading', 'processing', 'completed', 'error')),
  detected_language TEXT        CHECK (detected_language IN ('en', 'ru')),
  summary           TEXT        NOT NULL DEFAULT '',
  keywords          JSONB       NOT NULL DEFAULT '[]'::jsonb,
  storage_handle    TEXT        NOT NULL DEFAULT '',
  audio_handle      TEXT        NOT NULL DEFAULT '',
  error_code        TEXT        NOT NULL DEFAULT '',
  error_detail      TEXT        NOT NULL DEFAULT '',
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_conversion_jobs_user_created",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_conversion_jobs_user_created ON conversion_jobs (user_id, created_at DESC);`,
	},
	{
		Name: "create_index_conversion_jobs_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_conversion_jobs_status ON conversion_jobs (status);`,
	},
	{
		Name: "create_table_usage_counters",
		SQL: `CREATE TABLE IF NOT EXISTS usage_counters (
  user_id     TEXT    NOT NULL,
  day         DATE    NOT NULL,
  conversions INTEGER NOT NULL DEFAULT 0 CHECK (conversions >= 0),
  PRIMARY KEY (user_id, day)
);`,
	},
}

// EnsureMigrated applies every schema step inside one transaction. Steps are idempotent,
// so a partially failed earlier run is completed on the next start.
func EnsureMigrated(ctx context.Context, db *sql.DB, dbHost string) (err error) {
	start := time.Now()
	log := logger.Named("database").With().Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_start").Int("steps", len(steps)).Msg("applying schema")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).
			Str("event", "db_migration_failed").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to begin migration")
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, step := range steps {
		stepStart := time.Now()
		if _, err = tx.ExecContext(ctx, step.SQL); err != nil {
			log.Error().Err(err).
				Str("event", "db_migration_failed").
				Str("migration_step", step.Name).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Debug().
			Str("event", "db_migration_step").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("migration step applied")
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Info().
		Str("event", "db_migration_success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("schema migrated")
	return nil
}
