package model

import "time"

// SubmissionType tells how a submission came into existence.
type SubmissionType string

const (
	SubmissionTypeManual   SubmissionType = "MANUAL"
	SubmissionTypeTimeout  SubmissionType = "TIMEOUT"
	SubmissionTypeInvalid  SubmissionType = "INVALID"
	SubmissionTypeExternal SubmissionType = "EXTERNAL"
	SubmissionTypeTest     SubmissionType = "TEST"
	SubmissionTypeIllegal  SubmissionType = "ILLEGAL"
)

// Submission is the student's work for one participation. ID stays nil
// until the server has persisted it. Only the payload fields matching the
// exercise kind are set.
type Submission struct {
	ID                     *int64         `json:"id,omitempty"`
	ParticipationID        int64          `json:"participationId,omitempty"`
	Submitted              bool           `json:"submitted"`
	Type                   SubmissionType `json:"type,omitempty"`
	SubmissionDate         *time.Time     `json:"submissionDate,omitempty"`
	SubmissionExerciseType ExerciseType   `json:"submissionExerciseType,omitempty"`

	// text
	Text *string `json:"text,omitempty"`
	// file-upload
	FilePath *string `json:"filePath,omitempty"`
	// modeling: the diagram is a JSON document encoded as a string
	Model           *string `json:"model,omitempty"`
	ExplanationText *string `json:"explanationText,omitempty"`
	// programming
	CommitHash  string `json:"commitHash,omitempty"`
	BuildFailed bool   `json:"buildFailed,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	c := *s
	c.ID = clonePtr(s.ID)
	c.SubmissionDate = clonePtr(s.SubmissionDate)
	c.Text = clonePtr(s.Text)
	c.FilePath = clonePtr(s.FilePath)
	c.Model = clonePtr(s.Model)
	c.ExplanationText = clonePtr(s.ExplanationText)
	return &c
}

// HasID reports whether the server has assigned an identity.
func (s *Submission) HasID() bool {
	return s != nil && s.ID != nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
