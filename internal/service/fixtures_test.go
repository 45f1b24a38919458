package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/rs/zerolog"
)

func ptr[T any](v T) *T { return &v }

// newExam builds course 2 / exam 5 with one participation per kind.
func newExam() *model.StudentExam {
	return &model.StudentExam{
		ID:      1,
		Exam:    &model.Exam{ID: 5, Title: "Final", Course: &model.CourseRef{ID: 2}},
		Student: &model.Student{ID: 9, Login: "ab12cde"},
		Exercises: []*model.Exercise{
			{ID: 10, Type: model.ExerciseTypeText, StudentParticipations: []*model.Participation{{ID: 100}}},
			{ID: 11, Type: model.ExerciseTypeModeling, StudentParticipations: []*model.Participation{{ID: 101}}},
			{ID: 12, Type: model.ExerciseTypeQuiz, StudentParticipations: []*model.Participation{{ID: 102}}},
			{ID: 13, Type: model.ExerciseTypeFileUpload, StudentParticipations: []*model.Participation{{
				ID:          103,
				Submissions: []*model.Submission{{ID: ptr(int64(30)), FilePath: ptr("/uploads/a.pdf")}},
			}}},
			{ID: 14, Type: model.ExerciseTypeProgramming, StudentParticipations: []*model.Participation{{
				ID:          104,
				Submissions: []*model.Submission{{ID: ptr(int64(60)), CommitHash: "abc123", BuildFailed: true}},
			}}},
		},
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	exam  *model.StudentExam
	err   error
	calls int
}

func (f *fakeFetcher) FetchStudentExam(_ context.Context, _, _ int64) (*model.StudentExam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.exam, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePort struct {
	mu     sync.Mutex
	latest *model.Submission
	saved  []*model.Submission
	nextID int64
	err    error
}

func (p *fakePort) FetchLatest(_ context.Context, _ client.SubmissionRef) (*model.Submission, error) {
	if p.latest == nil {
		return nil, client.ErrNoSubmission
	}
	return p.latest.Clone(), nil
}

func (p *fakePort) CreateOrUpdate(_ context.Context, sub *model.Submission, _ client.SubmissionRef) (*model.Submission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.saved = append(p.saved, sub.Clone())
	out := sub.Clone()
	if out.ID == nil {
		out.ID = ptr(p.nextID)
	}
	return out, nil
}

type failingMirror struct{}

func (failingMirror) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk gone")
}

func (failingMirror) Store(context.Context, string, []byte) error {
	return errors.New("disk gone")
}

func (failingMirror) Remove(context.Context, string) error { return nil }

type fakeSynchronizer struct {
	starts int
	stops  int
}

func (s *fakeSynchronizer) Start(context.Context) { s.starts++ }
func (s *fakeSynchronizer) Stop()                 { s.stops++ }

var nopLog = zerolog.Nop()
