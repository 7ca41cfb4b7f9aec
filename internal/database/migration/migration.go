// Package migration creates the schema on first start.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelRelation is the index created by the last step; its presence means every step
// ran. Steps are idempotent, so a start after a partial run repeats them all.
const sentinelRelation = "public.idx_one_time_codes_live"

var steps = []migrationStep{
	{
		Name: "create_table_centers",
		SQL: `CREATE TABLE IF NOT EXISTS centers (
  id               UUID        PRIMARY KEY,
  name             TEXT        NOT NULL,
  address          TEXT        NOT NULL DEFAULT '',
  owner_account_id TEXT        NOT NULL UNIQUE,
  active           BOOLEAN     NOT NULL DEFAULT TRUE,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id              UUID        PRIMARY KEY,
  center_id       UUID        NOT NULL REFERENCES centers (id),
  owner_id        TEXT        NULL,
  submitter_name  TEXT        NOT NULL,
  submitter_email TEXT        NOT NULL DEFAULT '',
  submitter_phone TEXT        NOT NULL DEFAULT '',
  filename        TEXT        NOT NULL,
  storage_key     TEXT        NOT NULL UNIQUE,
  size            BIGINT      NOT NULL CHECK (size >= 0),
  content_type    TEXT        NOT NULL,
  status          TEXT        NOT NULL CHECK (status IN ('pending', 'otp_issued', 'verified', 'printed', 'expired', 'deleted')),
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  delivered_at    TIMESTAMPTZ NULL
);`,
	},
	{
		Name: "create_index_documents_center_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_center_status ON documents (center_id, status, created_at);`,
	},
	{
		Name: "create_index_documents_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_id, created_at DESC) WHERE owner_id IS NOT NULL;`,
	},
	{
		Name: "create_index_documents_status_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_status_updated_at ON documents (status, updated_at);`,
	},
	{
		Name: "create_table_one_time_codes",
		SQL: `CREATE TABLE IF NOT EXISTS one_time_codes (
  id             UUID        PRIMARY KEY,
  document_id    UUID        NOT NULL REFERENCES documents (id),
  digest         TEXT        NOT NULL,
  issued_at      TIMESTAMPTZ NOT NULL,
  expires_at     TIMESTAMPTZ NOT NULL,
  attempts       INT         NOT NULL DEFAULT 0,
  consumed       BOOLEAN     NOT NULL DEFAULT FALSE,
  consumed_at    TIMESTAMPTZ NULL,
  consume_reason TEXT        NULL
);`,
	},
	{
		Name: "create_index_one_time_codes_document",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_one_time_codes_document ON one_time_codes (document_id, issued_at DESC);`,
	},
	{
		Name: "create_index_one_time_codes_live",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_one_time_codes_live ON one_time_codes (document_id) WHERE NOT consumed;`,
	},
}

// EnsureMigrated runs every step unless the sentinel index already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"), zap.String("db_host", dbHost))

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass($1) IS NOT NULL"
	if err := db.QueryRowContext(ctx, query, sentinelRelation).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.String("error_message", fmt.Sprintf("failed to check schema sentinel: %v", err)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check schema sentinel: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("reason", "schema already exists, skipping migration"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"), zap.Int("steps", len(steps)))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.String("error_message", err.Error()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
