package model

import (
	"time"
)

// CourseRef is the minimal course reference carried by exams and exercises.
type CourseRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
}

// ExerciseGroup groups interchangeable exercises of an exam.
type ExerciseGroup struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	IsMandatory bool   `json:"isMandatory"`
}

// Exam is the exam definition as delivered by the server. The agent never
// modifies it.
type Exam struct {
	ID                      int64           `json:"id"`
	Title                   string          `json:"title"`
	VisibleDate             *time.Time      `json:"visibleDate,omitempty"`
	StartDate               *time.Time      `json:"startDate,omitempty"`
	EndDate                 *time.Time      `json:"endDate,omitempty"`
	StartText               string          `json:"startText,omitempty"`
	EndText                 string          `json:"endText,omitempty"`
	ConfirmationStartText   string          `json:"confirmationStartText,omitempty"`
	ConfirmationEndText     string          `json:"confirmationEndText,omitempty"`
	MaxPoints               int             `json:"maxPoints"`
	RandomizeExerciseOrder  bool            `json:"randomizeExerciseOrder"`
	NumberOfExercisesInExam int             `json:"numberOfExercisesInExam"`
	ExerciseGroups          []ExerciseGroup `json:"exerciseGroups,omitempty"`
	Course                  *CourseRef      `json:"course,omitempty"`
}

// Started reports whether the exam start date lies before now.
// An exam without a start date has not started.
func (e *Exam) Started(now time.Time) bool {
	return e.StartDate != nil && e.StartDate.Before(now)
}

// Ended reports whether the exam end date lies before now.
func (e *Exam) Ended(now time.Time) bool {
	return e.EndDate != nil && e.EndDate.Before(now)
}

// Student identifies the examinee.
type Student struct {
	ID    int64  `json:"id"`
	Login string `json:"login,omitempty"`
	Name  string `json:"name,omitempty"`
}

// StudentExam is a student's personal instance of an exam with the
// exercises assigned to them.
type StudentExam struct {
	ID        int64       `json:"id"`
	Exam      *Exam       `json:"exam,omitempty"`
	Student   *Student    `json:"student,omitempty"`
	Exercises []*Exercise `json:"exercises"`
}
