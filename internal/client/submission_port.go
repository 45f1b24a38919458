package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
)

// restPort implements SubmissionPort over the per-kind REST endpoints.
type restPort struct {
	client *APIClient
	kind   model.ExerciseType
	latest func(ref SubmissionRef) string
	save   func(ref SubmissionRef) string
}

func (p *restPort) FetchLatest(ctx context.Context, ref SubmissionRef) (*model.Submission, error) {
	var sub model.Submission
	found, err := p.client.do(ctx, http.MethodGet, p.latest(ref), nil, &sub)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, ErrNoSubmission
	}
	if err != nil {
		return nil, fmt.Errorf("fetch latest %s submission: %w", p.kind, err)
	}
	if !found {
		return nil, ErrNoSubmission
	}
	return &sub, nil
}

func (p *restPort) CreateOrUpdate(ctx context.Context, sub *model.Submission, ref SubmissionRef) (*model.Submission, error) {
	method := http.MethodPost
	if sub.HasID() {
		method = http.MethodPut
	}

	body := sub.Clone()
	body.SubmissionExerciseType = p.kind

	var saved model.Submission
	found, err := p.client.do(ctx, method, p.save(ref), body, &saved)
	if err != nil {
		return nil, fmt.Errorf("save %s submission: %w", p.kind, err)
	}
	if !found {
		return body, nil
	}
	return &saved, nil
}

// NewTextPort serves text exercises.
func NewTextPort(c *APIClient) SubmissionPort {
	return &restPort{
		client: c,
		kind:   model.ExerciseTypeText,
		latest: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/exercises/%d/text-submission-without-assessment", ref.ExerciseID)
		},
		save: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/exercises/%d/text-submissions", ref.ExerciseID)
		},
	}
}

// NewFileUploadPort serves file-upload exercises. The file itself is
// uploaded by the UI; the submission only carries its server path.
func NewFileUploadPort(c *APIClient) SubmissionPort {
	return &restPort{
		client: c,
		kind:   model.ExerciseTypeFileUpload,
		latest: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/exercises/%d/file-upload-submission-without-assessment", ref.ExerciseID)
		},
		save: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/exercises/%d/file-upload-submissions", ref.ExerciseID)
		},
	}
}

// NewModelingPort serves modeling exercises. The editor's latest submission
// is looked up by participation, not by exercise.
func NewModelingPort(c *APIClient) SubmissionPort {
	return &restPort{
		client: c,
		kind:   model.ExerciseTypeModeling,
		latest: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/participations/%d/latest-modeling-submission", ref.ParticipationID)
		},
		save: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/exercises/%d/modeling-submissions", ref.ExerciseID)
		},
	}
}

// programmingPort reads like the other kinds, but programming submissions
// are created by the server from repository commits. Saving only triggers
// a build of the participation's latest commit.
type programmingPort struct {
	restPort
}

// NewProgrammingPort serves programming exercises.
func NewProgrammingPort(c *APIClient) SubmissionPort {
	return &programmingPort{restPort{
		client: c,
		kind:   model.ExerciseTypeProgramming,
		latest: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/exercises/%d/programming-submission-without-assessment", ref.ExerciseID)
		},
		save: func(ref SubmissionRef) string {
			return fmt.Sprintf("/api/programming-submissions/%d/trigger-build", ref.ParticipationID)
		},
	}}
}

func (p *programmingPort) CreateOrUpdate(ctx context.Context, sub *model.Submission, ref SubmissionRef) (*model.Submission, error) {
	if _, err := p.client.do(ctx, http.MethodPost, p.save(ref), nil, nil); err != nil {
		return nil, fmt.Errorf("trigger programming build: %w", err)
	}
	return sub.Clone(), nil
}
