package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Duell10111/artemis-exam-agent/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // driver: sqlite
)

// ErrSchemaMissing is returned when the postgres mirror tables have not
// been created by cmd/migrate.
var ErrSchemaMissing = errors.New("mirror schema missing, run `migrate up` first")

// mirrorTables are the tables the mirror and the sync journal write to.
var mirrorTables = []string{"exam_mirror", "sync_log"}

// OpenSQL opens the mirror database for the sqlite or postgres driver.
// sqlite creates its tables on open; postgres expects cmd/migrate to have
// run and fails with ErrSchemaMissing otherwise.
func OpenSQL(ctx context.Context, driver config.MirrorDriver, dsn string, log zerolog.Logger) (*sql.DB, error) {
	var drvName string
	switch driver {
	case config.MirrorDriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:exam-mirror.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case config.MirrorDriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/exam_mirror?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", drvName, err)
	}
	if driver == config.MirrorDriverSQLite {
		// A single writer keeps sqlite free of SQLITE_BUSY between the
		// mirror writes and the journal appends.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", drvName, err)
	}

	if driver == config.MirrorDriverSQLite {
		if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	if err := CheckSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("driver", string(driver)).Msg("Mirror database connected")

	return db, nil
}

// CheckSchema reports ErrSchemaMissing when a mirror table cannot be read.
func CheckSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range mirrorTables {
		rows, err := db.QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		if err != nil {
			return fmt.Errorf("%w: table %s: %v", ErrSchemaMissing, table, err)
		}
		rows.Close()
	}
	return nil
}

// schemaSQLite matches migrations/000001_create_exam_mirror.up.sql.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS exam_mirror (
  mirror_key TEXT PRIMARY KEY,
  payload    TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_log (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  mirror_key       TEXT NOT NULL,
  participation_id INTEGER NOT NULL,
  exercise_id      INTEGER NOT NULL,
  exercise_type    TEXT NOT NULL,
  outcome          TEXT NOT NULL,
  error            TEXT NOT NULL DEFAULT '',
  payload          TEXT NOT NULL,
  created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_log_participation ON sync_log (participation_id);
`
