package handler

import (
	"net/http"

	"github.com/Duell10111/artemis-exam-agent/internal/response"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	"github.com/Duell10111/artemis-exam-agent/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SyncHandler exposes the synchronization state.
type SyncHandler struct {
	participationService *service.ParticipationService
	syncWorker           *worker.SyncWorker
	log                  zerolog.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(participationService *service.ParticipationService, syncWorker *worker.SyncWorker, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		participationService: participationService,
		syncWorker:           syncWorker,
		log:                  log.With().Str("component", "sync_handler").Logger(),
	}
}

type syncStatus struct {
	State      worker.SyncState   `json:"state"`
	Elapsed    int                `json:"elapsed_seconds"`
	Pending    int                `json:"pending"`
	LastReport *worker.SyncReport `json:"last_report,omitempty"`
}

// GetStatus godoc
// GET /api/v1/sync
func (h *SyncHandler) GetStatus(c *gin.Context) {
	status := syncStatus{
		State:   h.syncWorker.State(),
		Elapsed: h.syncWorker.Elapsed(),
		Pending: h.participationService.PendingCount(),
	}
	if report, ok := h.syncWorker.LastReport(); ok {
		status.LastReport = &report
	}
	response.Success(c, http.StatusOK, status)
}

// Flush godoc
// POST /api/v1/sync/flush
// Sends every queued submission now, e.g. right before hand-in.
func (h *SyncHandler) Flush(c *gin.Context) {
	report, err := h.syncWorker.FlushNow(c.Request.Context())
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	h.log.Info().
		Int("dispatched", report.Dispatched).
		Int("failed", len(report.Failed)).
		Msg("Manual flush finished")
	response.Success(c, http.StatusOK, report)
}
