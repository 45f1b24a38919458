package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
)

// ErrUnsupportedExerciseType is returned for exercise kinds that have no
// synchronization path. Quiz submissions are one of them.
var ErrUnsupportedExerciseType = errors.New("unsupported exercise type")

// SubmissionRef addresses the submission of one participation.
type SubmissionRef struct {
	ExerciseID      int64
	ParticipationID int64
}

// SubmissionPort reads and writes the submissions of one exercise kind.
type SubmissionPort interface {
	// FetchLatest returns the newest submission without assessment, or
	// ErrNoSubmission.
	FetchLatest(ctx context.Context, ref SubmissionRef) (*model.Submission, error)
	// CreateOrUpdate creates sub when it has no id yet and updates it
	// otherwise. It returns the server's copy.
	CreateOrUpdate(ctx context.Context, sub *model.Submission, ref SubmissionRef) (*model.Submission, error)
}

// Ports is the dispatch table over exercise kinds.
type Ports struct {
	Text        SubmissionPort
	FileUpload  SubmissionPort
	Modeling    SubmissionPort
	Programming SubmissionPort
}

// NewRESTPorts wires every supported kind to the REST API behind c.
func NewRESTPorts(c *APIClient) *Ports {
	return &Ports{
		Text:        NewTextPort(c),
		FileUpload:  NewFileUploadPort(c),
		Modeling:    NewModelingPort(c),
		Programming: NewProgrammingPort(c),
	}
}

// For returns the port of kind. Quiz, unknown kinds and kinds without a
// configured port yield ErrUnsupportedExerciseType.
func (p *Ports) For(kind model.ExerciseType) (SubmissionPort, error) {
	var port SubmissionPort
	switch kind {
	case model.ExerciseTypeText:
		port = p.Text
	case model.ExerciseTypeFileUpload:
		port = p.FileUpload
	case model.ExerciseTypeModeling:
		port = p.Modeling
	case model.ExerciseTypeProgramming:
		port = p.Programming
	case model.ExerciseTypeQuiz:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExerciseType, kind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExerciseType, kind)
	}
	if port == nil {
		return nil, fmt.Errorf("%w: no port for %s", ErrUnsupportedExerciseType, kind)
	}
	return port, nil
}

// Supports reports whether kind can be synchronized.
func (p *Ports) Supports(kind model.ExerciseType) bool {
	_, err := p.For(kind)
	return err == nil
}
