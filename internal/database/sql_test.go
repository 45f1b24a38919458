package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "mirror.db") + "?mode=rwc"
}

func TestCheckSchema_MissingTables(t *testing.T) {
	db, err := sql.Open("sqlite", sqliteDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = CheckSchema(context.Background(), db)
	assert.ErrorIs(t, err, ErrSchemaMissing)
	assert.Contains(t, err.Error(), "exam_mirror")
}

func TestCheckSchema_PartialSchema(t *testing.T) {
	db, err := sql.Open("sqlite", sqliteDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE exam_mirror (mirror_key TEXT PRIMARY KEY, payload TEXT NOT NULL, updated_at INTEGER NOT NULL)`)
	require.NoError(t, err)

	err = CheckSchema(context.Background(), db)
	assert.ErrorIs(t, err, ErrSchemaMissing)
	assert.Contains(t, err.Error(), "sync_log")
}

func TestOpenSQL_SQLiteCreatesSchema(t *testing.T) {
	db, err := OpenSQL(context.Background(), config.MirrorDriverSQLite, sqliteDSN(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.NoError(t, CheckSchema(context.Background(), db))

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_sync_log_participation'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_sync_log_participation", name)
}

func TestOpenSQL_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), config.MirrorDriverRedis, "", zerolog.Nop())
	assert.Error(t, err)
}
