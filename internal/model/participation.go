package model

import "time"

// Participation links the student to one exercise attempt. The owning
// exercise is recovered by lookup, it is not stored here.
type Participation struct {
	ID                 int64         `json:"id"`
	InitializationDate *time.Time    `json:"initializationDate,omitempty"`
	Submissions        []*Submission `json:"submissions"`
}

// CurrentSubmission returns the first submission, or nil.
func (p *Participation) CurrentSubmission() *Submission {
	if len(p.Submissions) == 0 {
		return nil
	}
	return p.Submissions[0]
}
