package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
)

// SyncOutcome is the result of one submission in a flush.
type SyncOutcome string

const (
	SyncOutcomeSynced   SyncOutcome = "SYNCED"
	SyncOutcomeFailed   SyncOutcome = "FAILED"
	SyncOutcomeDeferred SyncOutcome = "DEFERRED"
)

// SyncLogEntry is one journal row. Payload holds the submission JSON as it
// was sent, so a discarded submission can still be recovered by hand.
type SyncLogEntry struct {
	ID              int64
	MirrorKey       string
	ParticipationID int64
	ExerciseID      int64
	ExerciseType    model.ExerciseType
	Outcome         SyncOutcome
	Error           string
	Payload         string
	CreatedAt       time.Time
}

// SyncLogRepository appends flush outcomes to the sync_log table.
type SyncLogRepository struct {
	db *sql.DB
}

// NewSyncLogRepository creates a new SyncLogRepository.
func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Append inserts e. CreatedAt defaults to now.
func (r *SyncLogRepository) Append(ctx context.Context, e SyncLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_log (mirror_key, participation_id, exercise_id, exercise_type, outcome, error, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.MirrorKey, e.ParticipationID, e.ExerciseID, string(e.ExerciseType),
		string(e.Outcome), e.Error, e.Payload, e.CreatedAt.UnixMilli(),
	)
	return err
}

// ListByParticipation returns the journal of one participation, newest first.
func (r *SyncLogRepository) ListByParticipation(ctx context.Context, participationID int64) ([]SyncLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mirror_key, participation_id, exercise_id, exercise_type, outcome, error, payload, created_at
		 FROM sync_log
		 WHERE participation_id = $1
		 ORDER BY id DESC`, participationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SyncLogEntry
	for rows.Next() {
		var (
			e         SyncLogEntry
			exType    string
			outcome   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.MirrorKey, &e.ParticipationID, &e.ExerciseID, &exType, &outcome, &e.Error, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		e.ExerciseType = model.ExerciseType(exType)
		e.Outcome = SyncOutcome(outcome)
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
