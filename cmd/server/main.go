package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/database"
	"github.com/Duell10111/artemis-exam-agent/internal/handler"
	"github.com/Duell10111/artemis-exam-agent/internal/logger"
	"github.com/Duell10111/artemis-exam-agent/internal/repository"
	"github.com/Duell10111/artemis-exam-agent/internal/router"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	"github.com/Duell10111/artemis-exam-agent/internal/validator"
	ws "github.com/Duell10111/artemis-exam-agent/internal/websocket"
	"github.com/Duell10111/artemis-exam-agent/internal/worker"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("server", cfg.ServerURL).
		Int64("course_id", cfg.CourseID).
		Int64("exam_id", cfg.ExamID).
		Str("mirror", string(cfg.MirrorDriver)).
		Msg("Starting Artemis exam agent")

	if cfg.CourseID <= 0 || cfg.ExamID <= 0 {
		log.Fatal().Msg("COURSE_ID and EXAM_ID must be set")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Session Token ─────────────────────────────────────────────────
	token := cfg.AuthToken
	if token == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		var err error
		if token, err = promptToken(); err != nil {
			log.Fatal().Err(err).Msg("Failed to read token")
		}
	}
	warnOnExpiry(log, token)

	// ─── Open Mirror ───────────────────────────────────────────────────
	mirror, journal, closeMirror, err := openMirror(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open exam mirror")
	}
	defer closeMirror()

	// ─── Wire Services ─────────────────────────────────────────────────
	apiClient := client.NewAPIClient(cfg.ServerURL, token, cfg.RequestTimeout)
	ports := client.NewRESTPorts(apiClient)
	participationService := service.NewParticipationService(cfg.CourseID, cfg.ExamID, apiClient, mirror, ports, log)
	syncWorker := worker.NewSyncWorker(participationService, ports, journal, worker.SyncOptionsFromConfig(cfg), log)
	participationService.AttachSynchronizer(syncWorker)

	// ─── Load Exam ─────────────────────────────────────────────────────
	// The initial load is not retried; without an exam there is nothing to do.
	if err := participationService.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load student exam")
	}

	// ─── Live Events ───────────────────────────────────────────────────
	ended := make(chan struct{})
	var endOnce sync.Once
	if cfg.LiveURL != "" {
		listener := ws.NewListener(cfg.LiveURL, token, participationService, func() {
			endOnce.Do(func() { close(ended) })
		}, log)
		go listener.Run(ctx)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	handlers := &router.Handlers{
		Exam: handler.NewExamHandler(participationService, log),
		Sync: handler.NewSyncHandler(participationService, syncWorker, log),
		WS:   handler.NewWSHandler(participationService, log, cfg.AllowedOrigins),
	}
	r := router.SetupRouter(handlers, cfg, log)

	srv := &http.Server{
		Addr:    "127.0.0.1:" + cfg.BridgePort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Bridge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Bridge error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	examEnded := false
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	case <-ended:
		examEnded = true
		log.Info().Msg("Exam ended, handing in")
	}

	// 1. Stop accepting bridge requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Bridge shutdown error")
	}

	// 2. Stop the live listener and the sync ticker.
	cancel()
	participationService.Close()

	// 3. Send what is still queued.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer flushCancel()
	report, err := syncWorker.FlushNow(flushCtx)
	if err != nil {
		log.Error().Err(err).Msg("Final flush did not run")
	} else {
		log.Info().
			Int("dispatched", report.Dispatched).
			Int("failed", len(report.Failed)).
			Int("deferred", len(report.Deferred)).
			Msg("Final flush finished")
	}

	// 4. The mirror is only dropped once the exam is over and fully synced.
	if examEnded && err == nil && len(report.Failed) == 0 && participationService.PendingCount() == 0 {
		if err := participationService.RemoveMirror(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to remove exam mirror")
		}
	}

	log.Info().Msg("Agent stopped")
}

func openMirror(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.ExamMirror, worker.SyncJournal, func(), error) {
	switch cfg.MirrorDriver {
	case config.MirrorDriverRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewRedisExamMirror(rdb), nil, func() { rdb.Close() }, nil
	case config.MirrorDriverSQLite, config.MirrorDriverPostgres:
		db, err := database.OpenSQL(ctx, cfg.MirrorDriver, cfg.MirrorDSN, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewSQLExamMirror(db), repository.NewSyncLogRepository(db), func() { db.Close() }, nil
	case config.MirrorDriverFile:
		m, err := repository.NewFileExamMirror(cfg.MirrorDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return m, nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown mirror driver %q", cfg.MirrorDriver)
	}
}

func promptToken() (string, error) {
	fmt.Print("Artemis token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		// Some terminals refuse raw mode; fall back to a visible read.
		line, readErr := bufio.NewReader(os.Stdin).ReadString('\n')
		if readErr != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func warnOnExpiry(log zerolog.Logger, token string) {
	if token == "" {
		log.Warn().Msg("No Artemis token configured, requests are sent unauthenticated")
		return
	}
	exp, err := client.TokenExpiry(token)
	if err != nil {
		log.Debug().Err(err).Msg("Token expiry unknown")
		return
	}
	if left := time.Until(exp); left < 4*time.Hour {
		log.Warn().Time("expires_at", exp).Dur("left", left).Msg("Artemis token expires soon")
	}
}
