package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SubmissionApplier takes submissions pushed by the server.
type SubmissionApplier interface {
	ApplyServerSubmission(ctx context.Context, participationID int64, sub *model.Submission) (bool, error)
}

// Listener keeps a connection to the server's live event endpoint open and
// forwards the events it receives. Lost connections are re-established
// after ReconnectDelay.
type Listener struct {
	url     string
	token   string
	applier SubmissionApplier
	onEnded func()
	dialer  *websocket.Dialer
	log     zerolog.Logger

	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// NewListener creates a Listener for url. onEnded is called whenever the
// server announces the end of the exam and may be nil.
func NewListener(url, token string, applier SubmissionApplier, onEnded func(), log zerolog.Logger) *Listener {
	return &Listener{
		url:     url,
		token:   token,
		applier: applier,
		onEnded: onEnded,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log.With().Str("component", "live_listener").Logger(),

		ReconnectDelay: 5 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.log.Info().Str("url", l.url).Msg("Live listener started")
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			l.log.Info().Msg("Live listener stopped")
			return
		}
		l.log.Warn().Err(err).Dur("retry_in", l.ReconnectDelay).Msg("Live connection lost")

		select {
		case <-ctx.Done():
			l.log.Info().Msg("Live listener stopped")
			return
		case <-time.After(l.ReconnectDelay):
		}
	}
}

func (l *Listener) session(ctx context.Context) error {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}
	conn, _, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.url, err)
	}
	defer conn.Close()
	l.log.Info().Msg("Live connection established")

	done := make(chan struct{})
	defer close(done)
	go l.keepAlive(ctx, conn, done)

	for {
		var ev LiveEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsNormalClose(err) {
				return errors.New("closed by server")
			}
			return fmt.Errorf("read live event: %w", err)
		}
		l.handle(ctx, ev)
	}
}

// keepAlive pings the server and closes conn once ctx is cancelled, which
// unblocks the read loop.
func (l *Listener) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(l.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case <-ticker.C:
			if err := WriteTyped(conn, LiveRequest{Action: ActionPing}); err != nil {
				l.log.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, ev LiveEvent) {
	switch ev.Event {
	case LiveEventSubmissionSaved:
		if ev.Submission == nil {
			l.log.Warn().Int64("participation_id", ev.ParticipationID).Msg("Submission event without submission")
			return
		}
		applied, err := l.applier.ApplyServerSubmission(ctx, ev.ParticipationID, ev.Submission)
		if err != nil {
			l.log.Warn().Err(err).Int64("participation_id", ev.ParticipationID).Msg("Failed to apply server submission")
			return
		}
		l.log.Debug().
			Int64("participation_id", ev.ParticipationID).
			Bool("applied", applied).
			Msg("Server submission received")
	case LiveEventExamEnded:
		l.log.Info().Msg("Server announced exam end")
		if l.onEnded != nil {
			l.onEnded()
		}
	case LiveEventPong:
	default:
		l.log.Warn().Str("event", string(ev.Event)).Msg("Unknown live event")
	}
}
