package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/handler"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/Duell10111/artemis-exam-agent/internal/repository"
	"github.com/Duell10111/artemis-exam-agent/internal/response"
	"github.com/Duell10111/artemis-exam-agent/internal/router"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	"github.com/Duell10111/artemis-exam-agent/internal/validator"
	ws "github.com/Duell10111/artemis-exam-agent/internal/websocket"
	"github.com/Duell10111/artemis-exam-agent/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type examFetcher struct{}

func (examFetcher) FetchStudentExam(_ context.Context, _, _ int64) (*model.StudentExam, error) {
	return &model.StudentExam{
		ID:   1,
		Exam: &model.Exam{ID: 5, Title: "Final"},
		Exercises: []*model.Exercise{
			{ID: 10, Type: model.ExerciseTypeText, StudentParticipations: []*model.Participation{{ID: 100}}},
			{ID: 11, Type: model.ExerciseTypeModeling, StudentParticipations: []*model.Participation{{ID: 101}}},
			{ID: 12, Type: model.ExerciseTypeQuiz, StudentParticipations: []*model.Participation{{ID: 102}}},
		},
	}, nil
}

type stubPort struct {
	fetchErr error
	nextID   int64
}

func (p *stubPort) FetchLatest(context.Context, client.SubmissionRef) (*model.Submission, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return nil, client.ErrNoSubmission
}

func (p *stubPort) CreateOrUpdate(_ context.Context, sub *model.Submission, _ client.SubmissionRef) (*model.Submission, error) {
	out := sub.Clone()
	if out.ID == nil {
		out.ID = &p.nextID
	}
	return out, nil
}

type bridge struct {
	engine *gin.Engine
	svc    *service.ParticipationService
	worker *worker.SyncWorker
}

func newBridge(t *testing.T, port *stubPort, load bool) *bridge {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	log := zerolog.Nop()
	ports := &client.Ports{Text: port, FileUpload: port, Modeling: port, Programming: port}
	svc := service.NewParticipationService(2, 5, examFetcher{}, repository.NewMemoryExamMirror(), ports, log)
	w := worker.NewSyncWorker(svc, ports, nil, worker.SyncOptions{Tick: time.Hour}, log)
	if load {
		require.NoError(t, svc.Init(context.Background()))
	}

	handlers := &router.Handlers{
		Exam: handler.NewExamHandler(svc, log),
		Sync: handler.NewSyncHandler(svc, w, log),
		WS:   handler.NewWSHandler(svc, log, nil),
	}
	cfg := &config.Config{GinMode: gin.TestMode}
	return &bridge{engine: router.SetupRouter(handlers, cfg, log), svc: svc, worker: w}
}

type envelope struct {
	Data     json.RawMessage     `json:"data"`
	Error    *response.ErrorBody `json:"error"`
	Metadata response.Metadata   `json:"metadata"`
}

func (b *bridge) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	b.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealth(t *testing.T) {
	b := newBridge(t, &stubPort{}, true)

	rec, env := b.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), env.Metadata.RequestID)
}

func TestGetExam(t *testing.T) {
	b := newBridge(t, &stubPort{}, true)

	rec, env := b.do(t, http.MethodGet, "/api/v1/exam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var exam model.StudentExam
	require.NoError(t, json.Unmarshal(env.Data, &exam))
	assert.Len(t, exam.Exercises, 3)
	assert.Equal(t, "Final", exam.Exam.Title)
}

func TestGetExam_NotLoaded(t *testing.T) {
	b := newBridge(t, &stubPort{}, false)

	rec, env := b.do(t, http.MethodGet, "/api/v1/exam", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrExamNotLoaded, env.Error.Code)
}

func TestGetSubmission_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		port   *stubPort
		status int
		code   response.ErrCode
	}{
		{"no submission yet", "/api/v1/participations/100/submission", &stubPort{}, http.StatusNotFound, response.ErrNoSubmission},
		{"unknown participation", "/api/v1/participations/999/submission", &stubPort{}, http.StatusNotFound, response.ErrParticipationNotFound},
		{"malformed id", "/api/v1/participations/abc/submission", &stubPort{}, http.StatusBadRequest, response.ErrInvalidID},
		{"quiz", "/api/v1/participations/102/submission", &stubPort{}, http.StatusUnprocessableEntity, response.ErrUnsupportedExerciseType},
		{
			"server error", "/api/v1/participations/100/submission",
			&stubPort{fetchErr: &client.StatusError{Method: "GET", Path: "/api", Code: 500}},
			http.StatusBadGateway, response.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBridge(t, tt.port, true)
			rec, env := b.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, response.GetMessage(tt.code), env.Error.Message)
		})
	}
}

func TestUpdateSubmission(t *testing.T) {
	b := newBridge(t, &stubPort{nextID: 42}, true)

	rec, env := b.do(t, http.MethodPut, "/api/v1/participations/100/submission", `{"text":"draft"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Submission model.Submission `json:"submission"`
		Mirrored   bool             `json:"mirrored"`
		Pending    int              `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "draft", *data.Submission.Text)
	assert.Nil(t, data.Submission.ID)
	assert.True(t, data.Mirrored)
	assert.Equal(t, 1, data.Pending)

	rec, env = b.do(t, http.MethodGet, "/api/v1/participations/100/submission", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sub model.Submission
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, "draft", *sub.Text)
}

func TestUpdateSubmission_Validation(t *testing.T) {
	b := newBridge(t, &stubPort{}, true)

	rec, env := b.do(t, http.MethodPut, "/api/v1/participations/101/submission", `{"model":"{not json"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "model")

	rec, env = b.do(t, http.MethodPut, "/api/v1/participations/101/submission", `{"type":"SOMETIMES"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "type")

	rec, env = b.do(t, http.MethodPut, "/api/v1/participations/999/submission", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.ErrParticipationNotFound, env.Error.Code)
	assert.Equal(t, 0, b.svc.PendingCount())
}

func TestSyncFlushAndStatus(t *testing.T) {
	b := newBridge(t, &stubPort{nextID: 42}, true)
	require.NoError(t, b.svc.UpdateSubmission(context.Background(), &model.Submission{Text: stringPtr("draft")}, 100))

	rec, env := b.do(t, http.MethodGet, "/api/v1/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"IDLE","elapsed_seconds":0,"pending":1}`, string(env.Data))

	rec, env = b.do(t, http.MethodPost, "/api/v1/sync/flush", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report worker.SyncReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 1, report.Dispatched)
	assert.Equal(t, 1, report.Succeeded)

	rec, env = b.do(t, http.MethodGet, "/api/v1/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Pending    int                `json:"pending"`
		LastReport *worker.SyncReport `json:"last_report"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, 0, status.Pending)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, 1, status.LastReport.Succeeded)

	sub, err := b.svc.LatestSubmission(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(42), *sub.ID)
}

func TestExamStream(t *testing.T) {
	b := newBridge(t, &stubPort{}, true)
	srv := httptest.NewServer(b.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/exam/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first ws.ExamEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, ws.EventExam, first.Event)
	require.NotNil(t, first.Exam)
	assert.Len(t, first.Exam.Exercises, 3)

	require.NoError(t, b.svc.UpdateSubmission(context.Background(), &model.Submission{Text: stringPtr("live")}, 100))
	require.NoError(t, conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}))

	sawUpdate, sawPong := false, false
	for !(sawUpdate && sawPong) {
		var raw map[string]json.RawMessage
		require.NoError(t, conn.ReadJSON(&raw))
		switch string(raw["event"]) {
		case `"pong"`:
			sawPong = true
		case `"exam"`:
			var exam model.StudentExam
			require.NoError(t, json.Unmarshal(raw["exam"], &exam))
			p, ok := service.FindParticipation(&exam, 100)
			require.True(t, ok)
			if s := p.CurrentSubmission(); s != nil && *s.Text == "live" {
				sawUpdate = true
			}
		}
	}
}

func stringPtr(s string) *string { return &s }
