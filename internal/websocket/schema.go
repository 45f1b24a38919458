package websocket

import "github.com/Duell10111/artemis-exam-agent/internal/model"

// ─── Bridge stream: Actions (UI → Agent) ────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Bridge stream: Events (Agent → UI) ─────────────────────────────

type Event string

const (
	EventExam  Event = "exam"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// ExamEvent carries one published student exam.
type ExamEvent struct {
	Event Event              `json:"event"`
	Exam  *model.StudentExam `json:"exam"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// ─── Live events (Server → Agent) ───────────────────────────────────

type LiveEventType string

const (
	LiveEventSubmissionSaved LiveEventType = "submission_saved"
	LiveEventExamEnded       LiveEventType = "exam_ended"
	LiveEventPong            LiveEventType = "pong"
)

// LiveEvent is a message pushed by the server over the live connection.
type LiveEvent struct {
	Event           LiveEventType     `json:"event"`
	ParticipationID int64             `json:"participationId,omitempty"`
	Submission      *model.Submission `json:"submission,omitempty"`
}

// LiveRequest is sent by the agent over the live connection.
type LiveRequest struct {
	Action Action `json:"action"`
}
