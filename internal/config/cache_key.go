package config

import (
	"fmt"
)

// StudentExamMirrorPrefix prefixes every mirrored student exam.
const StudentExamMirrorPrefix = "artemis_student_exam"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentExamMirrorKey returns the mirror key of a student exam
func (r *CacheKeyStruct) StudentExamMirrorKey(courseID, examID int64) string {
	return fmt.Sprintf("%s_%d_%d", StudentExamMirrorPrefix, courseID, examID)
}

// PendingSyncKey returns the mirror key listing the participations whose
// local edits have not reached the server yet
func (r *CacheKeyStruct) PendingSyncKey(courseID, examID int64) string {
	return r.StudentExamMirrorKey(courseID, examID) + "_pending"
}

// ConductionPath returns the server path delivering the student exam for conduction
func (r *CacheKeyStruct) ConductionPath(courseID, examID int64) string {
	return fmt.Sprintf("/api/courses/%d/exams/%d/studentExams/conduction", courseID, examID)
}

var CacheKey = NewCacheKeyStruct()
