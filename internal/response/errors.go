package response

import "net/http"

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Exam state ────────────────────────────────────────────────────
	ErrExamNotLoaded           ErrCode = "EXAM_NOT_LOADED"
	ErrParticipationNotFound   ErrCode = "PARTICIPATION_NOT_FOUND"
	ErrNoSubmission            ErrCode = "NO_SUBMISSION"
	ErrUnsupportedExerciseType ErrCode = "UNSUPPORTED_EXERCISE_TYPE"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	case ErrExamNotLoaded:
		return "The exam has not been loaded yet."
	case ErrParticipationNotFound:
		return "The participation does not belong to this exam."
	case ErrNoSubmission:
		return "No submission exists for this participation yet."
	case ErrUnsupportedExerciseType:
		return "Submissions of this exercise type cannot be synchronized."

	case ErrUpstreamUnavailable:
		return "The exam server could not be reached."

	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unexpected error occurred."
	}
}

// Status returns the HTTP status matching code.
func Status(code ErrCode) int {
	switch code {
	case ErrValidation, ErrInvalidID:
		return http.StatusBadRequest
	case ErrParticipationNotFound, ErrNoSubmission:
		return http.StatusNotFound
	case ErrUnsupportedExerciseType:
		return http.StatusUnprocessableEntity
	case ErrExamNotLoaded:
		return http.StatusServiceUnavailable
	case ErrUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
