package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLExamMirror stores snapshots in the exam_mirror table. The statements
// run unchanged on sqlite and postgres.
type SQLExamMirror struct {
	db *sql.DB
}

// NewSQLExamMirror creates a new SQLExamMirror.
func NewSQLExamMirror(db *sql.DB) *SQLExamMirror {
	return &SQLExamMirror{db: db}
}

func (r *SQLExamMirror) Load(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM exam_mirror WHERE mirror_key = $1`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMirrorMiss
	}
	if err != nil {
		return nil, fmt.Errorf("select mirror %s: %w", key, err)
	}
	return []byte(payload), nil
}

func (r *SQLExamMirror) Store(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exam_mirror (mirror_key, payload, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (mirror_key) DO UPDATE
		 SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, string(payload), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert mirror %s: %w", key, err)
	}
	return nil
}

func (r *SQLExamMirror) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM exam_mirror WHERE mirror_key = $1`, key)
	return err
}
