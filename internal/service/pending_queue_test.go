package service

import (
	"testing"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(participationID int64, kind model.ExerciseType, text string) PendingSubmission {
	return PendingSubmission{
		ParticipationID: participationID,
		Exercise:        model.ExerciseRef{ID: participationID / 10, Type: kind},
		Submission:      &model.Submission{ID: ptr(int64(7)), Text: ptr(text)},
	}
}

func TestPendingQueue_PutReplacesSameSubmission(t *testing.T) {
	q := NewPendingQueue()
	q.Put(pending(100, model.ExerciseTypeText, "a"))
	q.Put(pending(100, model.ExerciseTypeText, "b"))

	require.Equal(t, 1, q.Len())
	e, ok := q.Get(100)
	require.True(t, ok)
	assert.Equal(t, "b", *e.Submission.Text)
}

func TestPendingQueue_TakeKeepsOrderAndDeferred(t *testing.T) {
	q := NewPendingQueue()
	q.Put(pending(102, model.ExerciseTypeQuiz, "q"))
	q.Put(pending(101, model.ExerciseTypeModeling, "m"))
	q.Put(pending(100, model.ExerciseTypeText, "t"))

	taken, kept := q.Take(func(e PendingSubmission) bool {
		return e.Exercise.Type == model.ExerciseTypeQuiz
	})

	require.Len(t, taken, 2)
	assert.Equal(t, int64(101), taken[0].ParticipationID)
	assert.Equal(t, int64(100), taken[1].ParticipationID)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(102), kept[0].ParticipationID)
	assert.Equal(t, 1, q.Len())
}

func TestPendingQueue_RestoreYieldsToNewerEdit(t *testing.T) {
	q := NewPendingQueue()
	old := q.Put(pending(100, model.ExerciseTypeText, "old"))
	q.Take(nil)
	assert.Equal(t, 0, q.Len())

	q.Put(pending(100, model.ExerciseTypeText, "new"))
	assert.False(t, q.Restore(old))
	e, _ := q.Get(100)
	assert.Equal(t, "new", *e.Submission.Text)

	q.Take(nil)
	assert.True(t, q.Restore(old))
	assert.Equal(t, 1, q.Len())
}

func TestPendingSubmission_Ref(t *testing.T) {
	e := pending(100, model.ExerciseTypeText, "x")
	ref := e.Ref()
	assert.Equal(t, int64(10), ref.ExerciseID)
	assert.Equal(t, int64(100), ref.ParticipationID)
}
