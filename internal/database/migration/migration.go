package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_uploads",
		SQL: `CREATE TABLE IF NOT EXISTS uploads (
  id                  UUID        PRIMARY KEY,
  category            TEXT        NOT NULL,
  owner_id            TEXT        NOT NULL,
  original_name       TEXT        NOT NULL,
  relative_path       TEXT        NOT NULL UNIQUE,
  mime_type           TEXT        NOT NULL,
  size_bytes          BIGINT      NOT NULL CHECK (size_bytes >= 0),
  original_size_bytes BIGINT      NOT NULL CHECK (original_size_bytes >= size_bytes),
  compressed          BOOLEAN     NOT NULL DEFAULT FALSE,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_uploads_category_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_uploads_category_owner ON uploads (category, owner_id);`,
	},
	{
		Name: "create_index_uploads_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_uploads_owner ON uploads (owner_id);`,
	},
	{
		Name: "create_index_uploads_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads (created_at);`,
	},
}

// EnsureMigrated checks if the 'uploads' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	log.Info("db_migration_check", "status", "starting")

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass('public.uploads') IS NOT NULL").Scan(&exists)
	if err != nil {
		log.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
