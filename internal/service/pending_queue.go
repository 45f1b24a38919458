package service

import (
	"sort"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
)

// PendingSubmission is a local edit waiting to be sent to the server.
type PendingSubmission struct {
	ParticipationID int64
	Exercise        model.ExerciseRef
	Submission      *model.Submission
	// Seq orders entries by the time they were queued.
	Seq uint64
}

// Ref returns the port address of the entry.
func (p PendingSubmission) Ref() client.SubmissionRef {
	return client.SubmissionRef{ExerciseID: p.Exercise.ID, ParticipationID: p.ParticipationID}
}

// PendingQueue holds at most one entry per submission. A participation
// carries a single current submission during the exam, so the participation
// id identifies the submission even before the server assigned it an id.
// PendingQueue is not safe for concurrent use.
type PendingQueue struct {
	entries map[int64]PendingSubmission
	seq     uint64
}

// NewPendingQueue creates an empty PendingQueue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{entries: make(map[int64]PendingSubmission)}
}

// Put inserts e or replaces the entry of the same submission.
func (q *PendingQueue) Put(e PendingSubmission) PendingSubmission {
	q.seq++
	e.Seq = q.seq
	q.entries[e.ParticipationID] = e
	return e
}

// Get returns the entry of participationID.
func (q *PendingQueue) Get(participationID int64) (PendingSubmission, bool) {
	e, ok := q.entries[participationID]
	return e, ok
}

// Len returns the number of queued submissions.
func (q *PendingQueue) Len() int {
	return len(q.entries)
}

// Take removes every entry for which keep returns false and returns the
// removed and the kept entries, both in queue order.
func (q *PendingQueue) Take(keep func(PendingSubmission) bool) (taken, kept []PendingSubmission) {
	for id, e := range q.entries {
		if keep != nil && keep(e) {
			kept = append(kept, e)
			continue
		}
		taken = append(taken, e)
		delete(q.entries, id)
	}
	sortBySeq(taken)
	sortBySeq(kept)
	return taken, kept
}

// Restore puts e back unless a newer edit of the same submission was
// queued meanwhile.
func (q *PendingQueue) Restore(e PendingSubmission) bool {
	if _, ok := q.entries[e.ParticipationID]; ok {
		return false
	}
	q.entries[e.ParticipationID] = e
	return true
}

// swapSubmission replaces the submission of a queued entry, keeping its
// place in the queue.
func (q *PendingQueue) swapSubmission(participationID int64, old, next *model.Submission) {
	e, ok := q.entries[participationID]
	if !ok || e.Submission != old {
		return
	}
	e.Submission = next
	q.entries[participationID] = e
}

func sortBySeq(entries []PendingSubmission) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
}
