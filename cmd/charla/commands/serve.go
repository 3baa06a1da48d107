package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/adapters/memory"
	"github.com/satriahrh/charla/adapters/recorder"
	"github.com/satriahrh/charla/internal/api"
	"github.com/satriahrh/charla/internal/auth"
	"github.com/satriahrh/charla/internal/websocket"
	"github.com/satriahrh/charla/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Long: `Run the charla web server.

Routes:
  POST   /api/v1/sessions                      start a session, returns a token
  GET    /api/v1/sessions/:id/history          visible turns
  POST   /api/v1/sessions/:id/turns            typed turn
  DELETE /api/v1/sessions/:id                  end the session
  POST   /api/v1/sessions/:id/webrtc/offer     start a WebRTC microphone capture
  POST   /api/v1/sessions/:id/webrtc/transcribe
  GET    /ws?token=...                         streaming capture and replies`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize logger
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	secret := []byte(cfg.Server.JWTSecret)
	if len(secret) == 0 {
		logger.Warn("CHARLA_JWT_SECRET not set, using an ephemeral secret")
		secret = []byte(generateSecret())
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Initialize usecase services
	conversation := svc.conversation(cfg, logger)
	sessions := usecase.NewSessionService(memory.NewSessionRepository(), conversation, cfg.Conversation.Preamble, logger)

	// Initialize WebSocket hub with the session service
	hub := websocket.NewHub(sessions, websocket.HubConfig{
		SampleRate:    cfg.Audio.SampleRate,
		MaxRecordTime: cfg.Audio.MaxRecordTime,
	}, logger)
	go hub.Run(ctx)

	cleanup := websocket.NewSessionCleanupService(sessions, cfg.Server.CleanupInterval, cfg.Server.SessionIdleTimeout, logger)
	cleanup.Start()
	defer cleanup.Stop()

	receiver, err := recorder.NewWebRTCReceiver(recorder.WebRTCConfig{
		ICEServers:  cfg.Server.ICEServers,
		MaxDuration: cfg.Audio.MaxRecordTime,
	}, logger)
	if err != nil {
		logger.Warn("WebRTC capture disabled", zap.Error(err))
		receiver = nil
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Sessions: sessions,
		Tokens:   tokens,
		Hub:      hub,
		WebRTC:   receiver,
		Logger:   logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("shutting down the server", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Server started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("completion", cfg.Providers.Completion),
		zap.String("stt", cfg.Providers.STT),
		zap.String("tts", cfg.Providers.TTS))

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}

// generateSecret returns a random secret valid for this process only, so
// tokens do not survive a restart
func generateSecret() string {
	return uuid.NewString() + uuid.NewString()
}
