package model

import "time"

// UpdateSubmissionRequest is the payload the UI sends when the student
// changed the work of a participation.
type UpdateSubmissionRequest struct {
	ID              *int64         `json:"id" binding:"omitempty,min=1"`
	Submitted       bool           `json:"submitted"`
	Type            SubmissionType `json:"type" binding:"omitempty,oneof=MANUAL TIMEOUT INVALID EXTERNAL TEST ILLEGAL"`
	SubmissionDate  *time.Time     `json:"submissionDate" binding:"omitempty"`
	Text            *string        `json:"text" binding:"omitempty,max=100000"`
	FilePath        *string        `json:"filePath" binding:"omitempty,max=1024"`
	Model           *string        `json:"model" binding:"omitempty,json"`
	ExplanationText *string        `json:"explanationText" binding:"omitempty,max=100000"`
}

// Submission converts the request into a submission for participationID.
func (r *UpdateSubmissionRequest) Submission(participationID int64) *Submission {
	return &Submission{
		ID:              r.ID,
		ParticipationID: participationID,
		Submitted:       r.Submitted,
		Type:            r.Type,
		SubmissionDate:  r.SubmissionDate,
		Text:            r.Text,
		FilePath:        r.FilePath,
		Model:           r.Model,
		ExplanationText: r.ExplanationText,
	}
}
