package service

import "errors"

var (
	// ErrExamNotLoaded is returned before Init succeeded.
	ErrExamNotLoaded = errors.New("student exam not loaded")
	// ErrParticipationNotFound is returned when no exercise of the student
	// exam holds the participation.
	ErrParticipationNotFound = errors.New("participation not found")
	// ErrMirrorWrite is returned when an update was applied in memory but
	// could not be written to the durable mirror.
	ErrMirrorWrite = errors.New("mirror write failed")
)
