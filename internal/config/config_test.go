package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStudentExamMirrorKey(t *testing.T) {
	assert.Equal(t, "artemis_student_exam_2_5", CacheKey.StudentExamMirrorKey(2, 5))
}

func TestPendingSyncKey(t *testing.T) {
	assert.Equal(t, "artemis_student_exam_2_5_pending", CacheKey.PendingSyncKey(2, 5))
}

func TestConductionPath(t *testing.T) {
	assert.Equal(t, "/api/courses/2/exams/5/studentExams/conduction", CacheKey.ConductionPath(2, 5))
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SYNC_THRESHOLD_SECONDS", "SYNC_FAILURE_POLICY", "MIRROR_DRIVER", "ARTEMIS_URL", "COURSE_ID"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, 60, cfg.SyncThreshold)
	assert.Equal(t, time.Second, cfg.SyncTick)
	assert.Equal(t, FailurePolicyDiscard, cfg.SyncFailurePolicy)
	assert.Equal(t, MirrorDriverFile, cfg.MirrorDriver)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, int64(0), cfg.CourseID)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SYNC_THRESHOLD_SECONDS", "15")
	t.Setenv("SYNC_FAILURE_POLICY", "REQUEUE")
	t.Setenv("MIRROR_DRIVER", "sqlite")
	t.Setenv("ARTEMIS_URL", "https://artemis.example.org/")
	t.Setenv("COURSE_ID", "2")
	t.Setenv("EXAM_ID", "5")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:4200, ,http://127.0.0.1:4200")

	cfg := Load()

	assert.Equal(t, 15, cfg.SyncThreshold)
	assert.Equal(t, FailurePolicyRequeue, cfg.SyncFailurePolicy)
	assert.Equal(t, MirrorDriverSQLite, cfg.MirrorDriver)
	assert.Equal(t, "https://artemis.example.org", cfg.ServerURL)
	assert.Equal(t, int64(2), cfg.CourseID)
	assert.Equal(t, int64(5), cfg.ExamID)
	assert.Equal(t, []string{"http://localhost:4200", "http://127.0.0.1:4200"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SYNC_THRESHOLD_SECONDS", "-3")
	t.Setenv("SYNC_CONCURRENCY", "many")

	cfg := Load()

	assert.Equal(t, 60, cfg.SyncThreshold)
	assert.Equal(t, 4, cfg.SyncConcurrency)
}
