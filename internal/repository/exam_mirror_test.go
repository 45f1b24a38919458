package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/database"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "artemis_student_exam_2_5"

func openSQLite(t *testing.T) *SQLExamMirror {
	t.Helper()
	db := openSQLiteDB(t)
	return NewSQLExamMirror(db)
}

func openSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "mirror.db") + "?mode=rwc"
	db, err := database.OpenSQL(context.Background(), config.MirrorDriverSQLite, dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// exerciseMirror runs the shared contract against every backend that works
// without external services.
func exerciseMirror(t *testing.T, m ExamMirror) {
	ctx := context.Background()

	_, err := m.Load(ctx, testKey)
	assert.ErrorIs(t, err, ErrMirrorMiss)

	require.NoError(t, m.Store(ctx, testKey, []byte(`{"id":1}`)))
	require.NoError(t, m.Store(ctx, testKey, []byte(`{"id":2}`)))

	got, err := m.Load(ctx, testKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2}`, string(got))

	require.NoError(t, m.Remove(ctx, testKey))
	_, err = m.Load(ctx, testKey)
	assert.ErrorIs(t, err, ErrMirrorMiss)

	// removing twice is fine
	assert.NoError(t, m.Remove(ctx, testKey))
}

func TestMemoryExamMirror(t *testing.T) {
	m := NewMemoryExamMirror()
	exerciseMirror(t, m)
	assert.Equal(t, 2, m.Writes())
}

func TestMemoryExamMirror_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryExamMirror()
	require.NoError(t, m.Store(ctx, testKey, []byte("abc")))

	got, err := m.Load(ctx, testKey)
	require.NoError(t, err)
	got[0] = 'x'

	again, err := m.Load(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestFileExamMirror(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFileExamMirror(dir)
	require.NoError(t, err)

	exerciseMirror(t, m)

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileExamMirror_RejectsPathKeys(t *testing.T) {
	m, err := NewFileExamMirror(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		assert.Error(t, m.Store(context.Background(), key, []byte("{}")), key)
	}
}

func TestSQLExamMirror_SQLite(t *testing.T) {
	exerciseMirror(t, openSQLite(t))
}

func TestSyncLogRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncLogRepository(openSQLiteDB(t))

	require.NoError(t, repo.Append(ctx, SyncLogEntry{
		MirrorKey: testKey, ParticipationID: 100, ExerciseID: 10,
		ExerciseType: model.ExerciseTypeText, Outcome: SyncOutcomeFailed,
		Error: "502 Bad Gateway", Payload: `{"text":"draft"}`,
	}))
	require.NoError(t, repo.Append(ctx, SyncLogEntry{
		MirrorKey: testKey, ParticipationID: 100, ExerciseID: 10,
		ExerciseType: model.ExerciseTypeText, Outcome: SyncOutcomeSynced,
		Payload: `{"id":42,"text":"draft"}`,
	}))
	require.NoError(t, repo.Append(ctx, SyncLogEntry{
		MirrorKey: testKey, ParticipationID: 200, ExerciseID: 20,
		ExerciseType: model.ExerciseTypeQuiz, Outcome: SyncOutcomeDeferred,
		Payload: `{}`,
	}))

	entries, err := repo.ListByParticipation(ctx, 100)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, SyncOutcomeSynced, entries[0].Outcome)
	assert.Equal(t, SyncOutcomeFailed, entries[1].Outcome)
	assert.Equal(t, "502 Bad Gateway", entries[1].Error)
	assert.Equal(t, model.ExerciseTypeText, entries[1].ExerciseType)
	assert.False(t, entries[1].CreatedAt.IsZero())
}
