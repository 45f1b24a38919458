package model

import "time"

// ExerciseType is the kind tag of an exercise, using the server's wire values.
type ExerciseType string

const (
	ExerciseTypeText        ExerciseType = "text"
	ExerciseTypeFileUpload  ExerciseType = "file-upload"
	ExerciseTypeModeling    ExerciseType = "modeling"
	ExerciseTypeProgramming ExerciseType = "programming"
	ExerciseTypeQuiz        ExerciseType = "quiz"
)

// Valid reports whether t is one of the known exercise kinds.
func (t ExerciseType) Valid() bool {
	switch t {
	case ExerciseTypeText, ExerciseTypeFileUpload, ExerciseTypeModeling,
		ExerciseTypeProgramming, ExerciseTypeQuiz:
		return true
	}
	return false
}

// Exercise is one exercise of a student exam, scoped to the current student.
type Exercise struct {
	ID                    int64            `json:"id"`
	Type                  ExerciseType     `json:"type"`
	Title                 string           `json:"title,omitempty"`
	DueDate               *time.Time       `json:"dueDate,omitempty"`
	AssessmentDueDate     *time.Time       `json:"assessmentDueDate,omitempty"`
	MaxScore              float64          `json:"maxScore,omitempty"`
	Course                *CourseRef       `json:"course,omitempty"`
	StudentParticipations []*Participation `json:"studentParticipations"`
}

// Ref returns the dispatch reference of the exercise.
func (e *Exercise) Ref() ExerciseRef {
	return ExerciseRef{ID: e.ID, Type: e.Type}
}

// ExerciseRef identifies an exercise together with its kind.
type ExerciseRef struct {
	ID   int64        `json:"id"`
	Type ExerciseType `json:"type"`
}
