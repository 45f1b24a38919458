package handler

import (
	"net/http"
	"strings"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	ws "github.com/Duell10111/artemis-exam-agent/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the student exam to the UI.
type WSHandler struct {
	participationService *service.ParticipationService
	log                  zerolog.Logger
	upgrader             websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(participationService *service.ParticipationService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		participationService: participationService,
		log:                  log.With().Str("component", "ws_handler").Logger(),
		upgrader:             buildUpgrader(allowedOrigins),
	}
}

type streamItem struct {
	exam *model.StudentExam
	err  error
}

// ExamStream godoc
// WS /ws/v1/exam/stream
// Sends the current exam on connect and again after every change. A slow
// client skips intermediate states and always receives the newest one.
func (h *WSHandler) ExamStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := make(chan streamItem, 1)
	cancel := h.participationService.Subscribe(func(exam *model.StudentExam, err error) {
		offerLatest(updates, streamItem{exam: exam, err: err})
	})
	defer cancel()

	h.log.Info().Msg("UI connected")

	// Only this goroutine writes to conn; the reader hands replies over.
	replies := make(chan interface{}, 4)
	closed := make(chan struct{})
	go h.readLoop(conn, replies, closed)

	for {
		select {
		case <-closed:
			h.log.Debug().Msg("UI disconnected")
			return
		case item := <-updates:
			var msg interface{} = ws.ExamEvent{Event: ws.EventExam, Exam: item.exam}
			if item.err != nil {
				msg = ws.ErrorResponse{Event: ws.EventError, Error: item.err.Error()}
			}
			if err := ws.WriteTyped(conn, msg); err != nil {
				h.log.Debug().Err(err).Msg("Stream write failed")
				return
			}
		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				h.log.Debug().Err(err).Msg("Stream write failed")
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, replies chan<- interface{}, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if !ws.IsNormalClose(err) {
				h.log.Debug().Err(err).Msg("Stream read ended")
			}
			return
		}

		var reply interface{}
		switch msg.Action {
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		default:
			h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

// offerLatest puts item into the single-slot channel, replacing a value
// the writer has not picked up yet.
func offerLatest(ch chan streamItem, item streamItem) {
	for {
		select {
		case ch <- item:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
