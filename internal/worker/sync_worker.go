package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/Duell10111/artemis-exam-agent/internal/repository"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SyncState is the lifecycle state of the SyncWorker.
type SyncState string

const (
	SyncStateIdle         SyncState = "IDLE"
	SyncStateAccumulating SyncState = "ACCUMULATING"
	SyncStateFlushing     SyncState = "FLUSHING"
	SyncStateStopped      SyncState = "STOPPED"
)

// PendingSource is the queue side of the participation service.
type PendingSource interface {
	TakePending(supported func(model.ExerciseType) bool) (dispatch, deferred []service.PendingSubmission)
	RestorePending(entries []service.PendingSubmission) int
	ApplySynced(ctx context.Context, entry service.PendingSubmission, canonical *model.Submission) error
	MirrorKey() string
}

// PortSet dispatches submissions by exercise kind.
type PortSet interface {
	For(kind model.ExerciseType) (client.SubmissionPort, error)
	Supports(kind model.ExerciseType) bool
}

// SyncJournal records the outcome of every dispatched submission.
type SyncJournal interface {
	Append(ctx context.Context, e repository.SyncLogEntry) error
}

// SyncOptions tunes the SyncWorker.
type SyncOptions struct {
	Tick           time.Duration
	Threshold      int
	Concurrency    int
	RequestTimeout time.Duration
	FailurePolicy  config.FailurePolicy
}

// SyncOptionsFromConfig reads the sync settings of cfg.
func SyncOptionsFromConfig(cfg *config.Config) SyncOptions {
	return SyncOptions{
		Tick:           cfg.SyncTick,
		Threshold:      cfg.SyncThreshold,
		Concurrency:    cfg.SyncConcurrency,
		RequestTimeout: cfg.RequestTimeout,
		FailurePolicy:  cfg.SyncFailurePolicy,
	}
}

// SyncFailure describes a queued submission that was not saved.
type SyncFailure struct {
	ParticipationID int64              `json:"participation_id"`
	ExerciseID      int64              `json:"exercise_id"`
	ExerciseType    model.ExerciseType `json:"exercise_type"`
	Error           string             `json:"error"`
}

// SyncReport summarizes one flush.
type SyncReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Dispatched int           `json:"dispatched"`
	Succeeded  int           `json:"succeeded"`
	Failed     []SyncFailure `json:"failed,omitempty"`
	Deferred   []SyncFailure `json:"deferred,omitempty"`
	Requeued   int           `json:"requeued"`
}

// SyncWorker periodically sends queued submissions to the server. Every
// tick advances an elapsed-seconds counter; reaching the threshold resets
// the counter and starts a flush unless one is still running.
type SyncWorker struct {
	source  PendingSource
	ports   PortSet
	journal SyncJournal
	opts    SyncOptions
	log     zerolog.Logger

	mu         sync.Mutex
	started    bool
	stopped    bool
	elapsed    int
	inflight   chan struct{}
	lastReport *SyncReport
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSyncWorker creates a new SyncWorker. journal may be nil.
func NewSyncWorker(source PendingSource, ports PortSet, journal SyncJournal, opts SyncOptions, log zerolog.Logger) *SyncWorker {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 60
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailurePolicyDiscard
	}
	return &SyncWorker{
		source:  source,
		ports:   ports,
		journal: journal,
		opts:    opts,
		log:     log.With().Str("component", "sync_worker").Logger(),
	}
}

// Start launches the tick loop. It returns immediately; calling it again or
// after Stop has no effect.
func (w *SyncWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	w.mu.Unlock()

	w.log.Info().
		Int("threshold", w.opts.Threshold).
		Str("failure_policy", string(w.opts.FailurePolicy)).
		Msg("Worker started")
	go w.run(loopCtx, done)
}

func (w *SyncWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick advances the counter by one. It reports whether a flush was started.
func (w *SyncWorker) Tick() bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.elapsed++
	if w.elapsed < w.opts.Threshold {
		w.mu.Unlock()
		return false
	}
	w.elapsed = 0
	if w.inflight != nil {
		w.mu.Unlock()
		w.log.Debug().Msg("Previous flush still running, skipping")
		return false
	}
	done := w.beginFlushLocked()
	w.mu.Unlock()

	go w.runFlush(done)
	return true
}

// FlushNow waits for a running flush and then flushes synchronously. It also
// works after Stop, for the final flush of a session.
func (w *SyncWorker) FlushNow(ctx context.Context) (SyncReport, error) {
	for {
		w.mu.Lock()
		if w.inflight == nil {
			w.elapsed = 0
			done := w.beginFlushLocked()
			w.mu.Unlock()
			return w.runFlush(done), nil
		}
		running := w.inflight
		w.mu.Unlock()

		select {
		case <-running:
		case <-ctx.Done():
			return SyncReport{}, fmt.Errorf("wait for running flush: %w", ctx.Err())
		}
	}
}

// Wait blocks until the running flush, if any, has finished.
func (w *SyncWorker) Wait() {
	w.mu.Lock()
	running := w.inflight
	w.mu.Unlock()
	if running != nil {
		<-running
	}
}

// Stop ends the tick loop. A running flush completes; no new one is
// triggered by ticks afterwards.
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// State returns the current lifecycle state.
func (w *SyncWorker) State() SyncState {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.stopped:
		return SyncStateStopped
	case w.inflight != nil:
		return SyncStateFlushing
	case w.started:
		return SyncStateAccumulating
	default:
		return SyncStateIdle
	}
}

// Elapsed returns the seconds counted since the last flush trigger.
func (w *SyncWorker) Elapsed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elapsed
}

// LastReport returns the report of the last completed flush.
func (w *SyncWorker) LastReport() (SyncReport, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastReport == nil {
		return SyncReport{}, false
	}
	return *w.lastReport, true
}

func (w *SyncWorker) beginFlushLocked() chan struct{} {
	done := make(chan struct{})
	w.inflight = done
	return done
}

func (w *SyncWorker) runFlush(done chan struct{}) SyncReport {
	// Flushes outlive the session context; a started batch is always awaited.
	report := w.flush(context.Background())

	w.mu.Lock()
	w.inflight = nil
	w.lastReport = &report
	w.mu.Unlock()
	close(done)
	return report
}

// ─── Flush ──────────────────────────────────────────────────────

type persistResult struct {
	saved *model.Submission
	err   error
}

func (w *SyncWorker) flush(ctx context.Context) SyncReport {
	report := SyncReport{StartedAt: time.Now()}
	dispatch, deferred := w.source.TakePending(w.ports.Supports)
	report.Dispatched = len(dispatch)

	for _, e := range deferred {
		err := fmt.Errorf("%w: %s", client.ErrUnsupportedExerciseType, e.Exercise.Type)
		report.Deferred = append(report.Deferred, failureOf(e, err))
		w.log.Warn().
			Int64("participation_id", e.ParticipationID).
			Str("exercise_type", string(e.Exercise.Type)).
			Msg("Submission kind cannot be synchronized, kept in queue")
		w.record(ctx, e, repository.SyncOutcomeDeferred, err)
	}

	if len(dispatch) == 0 {
		report.FinishedAt = time.Now()
		return report
	}

	results := make([]persistResult, len(dispatch))
	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)
	for i, e := range dispatch {
		g.Go(func() error {
			results[i] = w.persist(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	var failed []service.PendingSubmission
	for i, e := range dispatch {
		res := results[i]
		if res.err != nil {
			failed = append(failed, e)
			report.Failed = append(report.Failed, failureOf(e, res.err))
			w.log.Warn().Err(res.err).
				Int64("participation_id", e.ParticipationID).
				Int64("exercise_id", e.Exercise.ID).
				Str("exercise_type", string(e.Exercise.Type)).
				Msg("Failed to sync submission")
			w.record(ctx, e, repository.SyncOutcomeFailed, res.err)
			continue
		}

		report.Succeeded++
		if err := w.source.ApplySynced(ctx, e, res.saved); err != nil {
			w.log.Warn().Err(err).Int64("participation_id", e.ParticipationID).Msg("Failed to apply synced submission")
		}
		w.record(ctx, e, repository.SyncOutcomeSynced, nil)
	}

	if len(failed) > 0 {
		switch w.opts.FailurePolicy {
		case config.FailurePolicyRequeue:
			report.Requeued = w.source.RestorePending(failed)
			w.log.Info().Int("count", report.Requeued).Msg("Failed submissions requeued")
		default:
			w.log.Warn().Int("count", len(failed)).Msg("Failed submissions discarded from queue")
		}
	}

	report.FinishedAt = time.Now()
	w.log.Debug().
		Int("dispatched", report.Dispatched).
		Int("succeeded", report.Succeeded).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Flush finished")
	return report
}

func (w *SyncWorker) persist(ctx context.Context, e service.PendingSubmission) persistResult {
	port, err := w.ports.For(e.Exercise.Type)
	if err != nil {
		return persistResult{err: err}
	}
	if w.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.RequestTimeout)
		defer cancel()
	}
	saved, err := port.CreateOrUpdate(ctx, e.Submission, e.Ref())
	if err != nil {
		return persistResult{err: fmt.Errorf("save submission of participation %d: %w", e.ParticipationID, err)}
	}
	return persistResult{saved: saved}
}

func (w *SyncWorker) record(ctx context.Context, e service.PendingSubmission, outcome repository.SyncOutcome, cause error) {
	if w.journal == nil {
		return
	}
	entry := repository.SyncLogEntry{
		MirrorKey:       w.source.MirrorKey(),
		ParticipationID: e.ParticipationID,
		ExerciseID:      e.Exercise.ID,
		ExerciseType:    e.Exercise.Type,
		Outcome:         outcome,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if payload, err := json.Marshal(e.Submission); err == nil {
		entry.Payload = string(payload)
	}
	if err := w.journal.Append(ctx, entry); err != nil {
		w.log.Error().Err(err).Int64("participation_id", e.ParticipationID).Msg("Failed to append sync journal")
	}
}

func failureOf(e service.PendingSubmission, err error) SyncFailure {
	return SyncFailure{
		ParticipationID: e.ParticipationID,
		ExerciseID:      e.Exercise.ID,
		ExerciseType:    e.Exercise.Type,
		Error:           err.Error(),
	}
}
