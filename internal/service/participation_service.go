package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/Duell10111/artemis-exam-agent/internal/repository"
	"github.com/rs/zerolog"
)

// ExamFetcher loads the student exam from the server.
type ExamFetcher interface {
	FetchStudentExam(ctx context.Context, courseID, examID int64) (*model.StudentExam, error)
}

// PortResolver selects the submission port of an exercise kind.
type PortResolver interface {
	For(kind model.ExerciseType) (client.SubmissionPort, error)
}

// Synchronizer is the background task started once the exam is loaded.
type Synchronizer interface {
	Start(ctx context.Context)
	Stop()
}

// ParticipationService owns the student exam of one exam session. It keeps
// the authoritative tree in memory, publishes every change, mirrors it to
// durable storage and queues local edits for the synchronizer.
type ParticipationService struct {
	courseID  int64
	examID    int64
	mirrorKey string
	// pendingKey lists the participations of unsynced edits, so they are
	// queued again when the exam is restored from the mirror.
	pendingKey string
	fetcher   ExamFetcher
	mirror    repository.ExamMirror
	ports     PortResolver
	log       zerolog.Logger

	// mu guards exam, queue and unsynced.
	mu       sync.Mutex
	exam     *model.StudentExam
	queue    *PendingQueue
	unsynced map[int64]struct{}

	// pubMu is taken before mu is released so that publication and mirror
	// writes happen in update order. It guards mirroredPending.
	pubMu           sync.Mutex
	stream          *Stream
	mirroredPending []int64

	synchronizer Synchronizer
	startOnce    sync.Once
}

// NewParticipationService creates the store of the exam session courseID/examID.
func NewParticipationService(
	courseID, examID int64,
	fetcher ExamFetcher,
	mirror repository.ExamMirror,
	ports PortResolver,
	log zerolog.Logger,
) *ParticipationService {
	return &ParticipationService{
		courseID:  courseID,
		examID:    examID,
		mirrorKey:  config.CacheKey.StudentExamMirrorKey(courseID, examID),
		pendingKey: config.CacheKey.PendingSyncKey(courseID, examID),
		fetcher:   fetcher,
		mirror:    mirror,
		ports:     ports,
		log: log.With().
			Str("component", "participation_service").
			Int64("course_id", courseID).
			Int64("exam_id", examID).
			Logger(),
		queue:    NewPendingQueue(),
		unsynced: make(map[int64]struct{}),
		stream:   NewStream(),
	}
}

// AttachSynchronizer sets the task Init starts. It must be called before Init.
func (s *ParticipationService) AttachSynchronizer(synchronizer Synchronizer) {
	s.synchronizer = synchronizer
}

// MirrorKey returns the key the exam is mirrored under.
func (s *ParticipationService) MirrorKey() string {
	return s.mirrorKey
}

// Init loads the student exam once. The in-memory value wins over the
// mirror, the mirror wins over the server. A load failure is published to
// every subscriber and returned; it is not retried.
func (s *ParticipationService) Init(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.exam != nil
	s.mu.Unlock()
	if loaded {
		s.startSync(ctx)
		return nil
	}

	exam, fromServer, err := s.load(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load student exam")
		s.pubMu.Lock()
		s.stream.fail(err)
		s.pubMu.Unlock()
		return err
	}
	var pending []int64
	if !fromServer {
		pending = s.loadPending(ctx)
	}

	s.mu.Lock()
	if s.exam != nil {
		// A concurrent Init got there first.
		s.mu.Unlock()
		s.startSync(ctx)
		return nil
	}
	s.exam = exam
	if !fromServer {
		s.pubMu.Lock()
		s.mirroredPending = pending
		s.pubMu.Unlock()
		s.requeue(pending)
	}
	if err := s.commit(ctx, fromServer); err != nil {
		s.log.Warn().Err(err).Msg("Loaded student exam could not be mirrored")
	}

	s.startSync(ctx)
	return nil
}

func (s *ParticipationService) load(ctx context.Context) (*model.StudentExam, bool, error) {
	payload, err := s.mirror.Load(ctx, s.mirrorKey)
	switch {
	case err == nil:
		var exam model.StudentExam
		if err := json.Unmarshal(payload, &exam); err != nil {
			s.log.Warn().Err(err).Str("key", s.mirrorKey).Msg("Mirrored student exam is unreadable, loading from server")
			break
		}
		s.log.Info().Str("key", s.mirrorKey).Msg("Student exam restored from mirror")
		return &exam, false, nil
	case errors.Is(err, repository.ErrMirrorMiss):
		s.log.Debug().Str("key", s.mirrorKey).Msg("No mirrored student exam")
	default:
		s.log.Warn().Err(err).Str("key", s.mirrorKey).Msg("Mirror read failed, loading from server")
	}

	exam, err := s.fetcher.FetchStudentExam(ctx, s.courseID, s.examID)
	if err != nil {
		return nil, false, fmt.Errorf("load student exam: %w", err)
	}
	if exam == nil {
		return nil, false, errors.New("load student exam: empty response")
	}
	s.log.Info().Int("exercises", len(exam.Exercises)).Msg("Student exam loaded from server")
	return exam, true, nil
}

// loadPending reads the participation ids mirrored next to the exam.
func (s *ParticipationService) loadPending(ctx context.Context) []int64 {
	payload, err := s.mirror.Load(ctx, s.pendingKey)
	if err != nil {
		if !errors.Is(err, repository.ErrMirrorMiss) {
			s.log.Warn().Err(err).Str("key", s.pendingKey).Msg("Pending sync list unreadable")
		}
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(payload, &ids); err != nil {
		s.log.Warn().Err(err).Str("key", s.pendingKey).Msg("Pending sync list unreadable")
		return nil
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// requeue queues the current submission of every listed participation and
// of every participation holding a submission the server never saw. It must
// be called with s.mu held.
func (s *ParticipationService) requeue(ids []int64) {
	listed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		listed[id] = struct{}{}
	}

	requeued := 0
	for _, exercise := range s.exam.Exercises {
		if exercise == nil {
			continue
		}
		for _, participation := range exercise.StudentParticipations {
			if participation == nil {
				continue
			}
			current := participation.CurrentSubmission()
			if current == nil {
				continue
			}
			if _, ok := listed[participation.ID]; !ok && current.HasID() {
				continue
			}
			s.queue.Put(PendingSubmission{
				ParticipationID: participation.ID,
				Exercise:        exercise.Ref(),
				Submission:      current,
			})
			s.unsynced[participation.ID] = struct{}{}
			requeued++
		}
	}
	if requeued > 0 {
		s.log.Info().Int("count", requeued).Msg("Unsynced submissions queued again after restore")
	}
}

func (s *ParticipationService) startSync(ctx context.Context) {
	s.startOnce.Do(func() {
		if s.synchronizer != nil {
			s.synchronizer.Start(context.WithoutCancel(ctx))
		}
	})
}

// ─── Submissions ────────────────────────────────────────────────

// UpdateSubmission makes sub the single current submission of the
// participation, republishes the exam, mirrors it and queues sub for the
// next sync. An incoming submission without id keeps the id the server
// already assigned to the current one, and one without a commit hash keeps
// the build state of the current one.
func (s *ParticipationService) UpdateSubmission(ctx context.Context, sub *model.Submission, participationID int64) error {
	if sub == nil {
		return errors.New("update submission: nil submission")
	}

	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return ErrExamNotLoaded
	}
	exercise, participation, ok := s.locate(participationID)
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Int64("participation_id", participationID).Msg("Update for unknown participation ignored")
		return fmt.Errorf("%w: %d", ErrParticipationNotFound, participationID)
	}

	next := s.adopt(sub, exercise, participationID)
	inheritServerFields(next, participation.CurrentSubmission())
	participation.Submissions = []*model.Submission{next}
	s.queue.Put(PendingSubmission{
		ParticipationID: participationID,
		Exercise:        exercise.Ref(),
		Submission:      next,
	})
	s.unsynced[participationID] = struct{}{}

	return s.commit(ctx, true)
}

// LatestSubmission returns a copy of the current submission of the
// participation. Without a local one it asks the port of the exercise kind
// and adopts the answer into the exam.
func (s *ParticipationService) LatestSubmission(ctx context.Context, participationID int64) (*model.Submission, error) {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return nil, ErrExamNotLoaded
	}
	exercise, participation, ok := s.locate(participationID)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrParticipationNotFound, participationID)
	}
	if current := participation.CurrentSubmission(); current != nil {
		s.mu.Unlock()
		return current.Clone(), nil
	}
	ref := exercise.Ref()
	s.mu.Unlock()

	port, err := s.ports.For(ref.Type)
	if err != nil {
		return nil, err
	}
	fetched, err := port.FetchLatest(ctx, client.SubmissionRef{ExerciseID: ref.ID, ParticipationID: participationID})
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		return nil, client.ErrNoSubmission
	}

	s.mu.Lock()
	exercise, participation, ok = s.locate(participationID)
	if !ok {
		s.mu.Unlock()
		return fetched.Clone(), nil
	}
	if current := participation.CurrentSubmission(); current != nil {
		// Edited while the fetch was running; the local edit wins.
		s.mu.Unlock()
		return current.Clone(), nil
	}
	participation.Submissions = []*model.Submission{s.adopt(fetched, exercise, participationID)}
	return fetched.Clone(), s.commit(ctx, true)
}

// ApplyServerSubmission replaces the current submission with one pushed by
// the server. It reports false when a local edit of the participation is
// still waiting to be synced, in which case the local edit is kept.
func (s *ParticipationService) ApplyServerSubmission(ctx context.Context, participationID int64, sub *model.Submission) (bool, error) {
	if sub == nil {
		return false, errors.New("apply server submission: nil submission")
	}

	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return false, ErrExamNotLoaded
	}
	exercise, participation, ok := s.locate(participationID)
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %d", ErrParticipationNotFound, participationID)
	}
	if _, pending := s.queue.Get(participationID); pending {
		s.mu.Unlock()
		return false, nil
	}

	participation.Submissions = []*model.Submission{s.adopt(sub, exercise, participationID)}
	delete(s.unsynced, participationID)
	return true, s.commit(ctx, true)
}

// inheritServerFields copies what only the server can set from current to
// next when the UI sent next without it.
func inheritServerFields(next, current *model.Submission) {
	if current == nil {
		return
	}
	if next.ID == nil && current.ID != nil {
		id := *current.ID
		next.ID = &id
	}
	if next.CommitHash == "" {
		next.CommitHash = current.CommitHash
		next.BuildFailed = current.BuildFailed
	}
}

// adopt returns the copy of sub the tree stores.
func (s *ParticipationService) adopt(sub *model.Submission, exercise *model.Exercise, participationID int64) *model.Submission {
	next := sub.Clone()
	next.ParticipationID = participationID
	if next.SubmissionExerciseType == "" {
		next.SubmissionExerciseType = exercise.Type
	}
	return next
}

// ─── Sync queue ─────────────────────────────────────────────────

// TakePending drains the queue for a flush. Entries whose kind supported
// rejects stay queued and are returned as deferred.
func (s *ParticipationService) TakePending(supported func(model.ExerciseType) bool) (dispatch, deferred []PendingSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Take(func(e PendingSubmission) bool {
		return supported != nil && !supported(e.Exercise.Type)
	})
}

// RestorePending puts failed entries back unless the participation was
// edited again meanwhile. It returns how many entries were restored.
func (s *ParticipationService) RestorePending(entries []PendingSubmission) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for _, e := range entries {
		if s.queue.Restore(e) {
			restored++
		}
	}
	return restored
}

// ApplySynced records the server's answer to a dispatched entry. When the
// participation still holds the dispatched submission it is replaced by the
// canonical copy. Otherwise the id assigned by the server is carried over to
// the newer local edit, so its next sync updates instead of creating.
func (s *ParticipationService) ApplySynced(ctx context.Context, entry PendingSubmission, canonical *model.Submission) error {
	if canonical == nil {
		return nil
	}

	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return ErrExamNotLoaded
	}
	exercise, participation, ok := s.locate(entry.ParticipationID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrParticipationNotFound, entry.ParticipationID)
	}

	current := participation.CurrentSubmission()
	switch {
	case current != nil && current == entry.Submission:
		next := s.adopt(canonical, exercise, entry.ParticipationID)
		if next.ID == nil && current.ID != nil {
			id := *current.ID
			next.ID = &id
		}
		participation.Submissions = []*model.Submission{next}
		if _, queued := s.queue.Get(entry.ParticipationID); !queued {
			delete(s.unsynced, entry.ParticipationID)
		}
	case current != nil && !current.HasID() && canonical.HasID():
		next := current.Clone()
		id := *canonical.ID
		next.ID = &id
		participation.Submissions = []*model.Submission{next}
		s.queue.swapSubmission(entry.ParticipationID, current, next)
	default:
		s.mu.Unlock()
		return nil
	}

	return s.commit(ctx, true)
}

// PendingCount returns the number of submissions waiting for a sync.
func (s *ParticipationService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// ─── Observation ────────────────────────────────────────────────

// Subscribe registers l for every published exam. The latest exam, or the
// load error, is delivered before Subscribe returns.
func (s *ParticipationService) Subscribe(l Listener) (cancel func()) {
	return s.stream.Subscribe(l)
}

// Snapshot returns a deep copy of the current exam.
func (s *ParticipationService) Snapshot() (*model.StudentExam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exam == nil {
		return nil, ErrExamNotLoaded
	}
	_, snap, err := encodeExam(s.exam)
	return snap, err
}

// RemoveMirror deletes the mirrored exam and its pending sync list. Call it
// only once nothing is left to sync.
func (s *ParticipationService) RemoveMirror(ctx context.Context) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	for _, key := range []string{s.pendingKey, s.mirrorKey} {
		if err := s.mirror.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove mirror %s: %w", key, err)
		}
	}
	s.mirroredPending = nil
	return nil
}

// Close stops the synchronizer. The exam stays readable.
func (s *ParticipationService) Close() {
	if s.synchronizer != nil {
		s.synchronizer.Stop()
	}
}

// ─── Internals ──────────────────────────────────────────────────

func (s *ParticipationService) locate(participationID int64) (*model.Exercise, *model.Participation, bool) {
	exercise, ok := FindExerciseByParticipation(s.exam, participationID)
	if !ok {
		return nil, nil, false
	}
	return exercise, participationOf(exercise, participationID), true
}

// commit publishes a snapshot of the exam and, if mirror is set, writes it
// to the mirror. It must be called with s.mu held and releases it.
func (s *ParticipationService) commit(ctx context.Context, mirror bool) error {
	payload, snap, err := encodeExam(s.exam)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	pending := make([]int64, 0, len(s.unsynced))
	for id := range s.unsynced {
		pending = append(pending, id)
	}
	slices.Sort(pending)

	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	s.stream.publish(snap)
	if !mirror {
		return nil
	}
	// The write must land even if the caller's request goes away.
	ctx = context.WithoutCancel(ctx)
	if err := s.mirror.Store(ctx, s.mirrorKey, payload); err != nil {
		s.log.Error().Err(err).Str("key", s.mirrorKey).Msg("Failed to mirror student exam")
		return fmt.Errorf("%w: %w", ErrMirrorWrite, err)
	}
	if slices.Equal(pending, s.mirroredPending) {
		return nil
	}
	list, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending sync list: %w", err)
	}
	if err := s.mirror.Store(ctx, s.pendingKey, list); err != nil {
		s.log.Error().Err(err).Str("key", s.pendingKey).Msg("Failed to mirror pending sync list")
		return fmt.Errorf("%w: %w", ErrMirrorWrite, err)
	}
	s.mirroredPending = pending
	return nil
}

func encodeExam(exam *model.StudentExam) ([]byte, *model.StudentExam, error) {
	payload, err := json.Marshal(exam)
	if err != nil {
		return nil, nil, fmt.Errorf("encode student exam: %w", err)
	}
	var snap model.StudentExam
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode student exam: %w", err)
	}
	return payload, &snap, nil
}
