package migrations

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_FirstMigration(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	up, _, err := src.ReadUp(version)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	up.Close()

	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS exam_mirror")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS sync_log")
	assert.Contains(t, string(body), "idx_sync_log_participation")

	down, _, err := src.ReadDown(version)
	require.NoError(t, err)
	down.Close()
}
