package handler

import (
	"errors"
	"net/http"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/Duell10111/artemis-exam-agent/internal/response"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	"github.com/Duell10111/artemis-exam-agent/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExamHandler serves the student exam and its submissions to the UI.
type ExamHandler struct {
	participationService *service.ParticipationService
	log                  zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(participationService *service.ParticipationService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		participationService: participationService,
		log:                  log.With().Str("component", "exam_handler").Logger(),
	}
}

// GetExam godoc
// GET /api/v1/exam
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.participationService.Snapshot()
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// GetSubmission godoc
// GET /api/v1/participations/:participation_id/submission
// Returns the local submission, or the latest one from the server.
func (h *ExamHandler) GetSubmission(c *gin.Context) {
	id, ok := participationID(c)
	if !ok {
		return
	}

	sub, err := h.participationService.LatestSubmission(c.Request.Context(), id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// UpdateSubmission godoc
// PUT /api/v1/participations/:participation_id/submission
func (h *ExamHandler) UpdateSubmission(c *gin.Context) {
	id, ok := participationID(c)
	if !ok {
		return
	}

	var req model.UpdateSubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	mirrored := true
	err := h.participationService.UpdateSubmission(c.Request.Context(), req.Submission(id), id)
	switch {
	case errors.Is(err, service.ErrMirrorWrite):
		// Applied in memory; the next successful write catches up.
		mirrored = false
	case err != nil:
		failWithError(c, h.log, err)
		return
	}

	sub, err := h.participationService.LatestSubmission(c.Request.Context(), id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"submission": sub,
		"mirrored":   mirrored,
		"pending":    h.participationService.PendingCount(),
	})
}
