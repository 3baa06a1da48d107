package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/adapters/recorder"
	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/internal/auth"
	"github.com/satriahrh/charla/internal/websocket"
	"github.com/satriahrh/charla/usecase"
)

const sessionIDKey = "sessionID"

var errNotListening = errors.New("no WebRTC capture in progress")

// Dependencies are the services the routes are served from. WebRTC may be
// nil, in which case the webrtc routes answer 503.
type Dependencies struct {
	Sessions *usecase.SessionService
	Tokens   *auth.TokenIssuer
	Hub      *websocket.Hub
	WebRTC   *recorder.WebRTCReceiver
	Logger   *zap.Logger
}

type handler struct {
	Dependencies

	mu       sync.Mutex
	captures map[string]*recorder.WebRTCCapture
}

func newHandler(deps Dependencies) *handler {
	h := &handler{
		Dependencies: deps,
		captures:     make(map[string]*recorder.WebRTCCapture),
	}
	// Captures of expired sessions would otherwise keep their peer connection open
	deps.Sessions.OnEnd(h.closeCapture)
	return h
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := newHandler(deps)
	h.register(e)
}

func (h *handler) register(e *echo.Echo) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "charla",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/sessions", h.createSession)

	sessions := v1.Group("/sessions/:id", h.requireSession)
	sessions.GET("/history", h.getHistory)
	sessions.POST("/turns", h.postTurn)
	sessions.DELETE("", h.endSession)
	sessions.POST("/webrtc/offer", h.webrtcOffer)
	sessions.POST("/webrtc/transcribe", h.webrtcTranscribe)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth)
}

func (h *handler) createSession(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := h.Sessions.Start(ctx)
	if err != nil {
		h.Logger.Error("Failed to start session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to start session",
		})
	}

	token, expiresAt, err := h.Tokens.GenerateSessionToken(session.ID)
	if err != nil {
		h.Logger.Error("Failed to generate session token",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		_ = h.Sessions.End(ctx, session.ID)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// bearerToken extracts the JWT from the Authorization header
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return token
	}
	return ""
}

// requireSession accepts only tokens issued for the session named in the path
func (h *handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in Authorization header",
			})
		}

		claims, err := h.Tokens.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("Request rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired JWT token",
			})
		}

		if claims.SessionID != c.Param("id") {
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "wrong_session",
				Message: "Token was issued for another session",
			})
		}

		c.Set(sessionIDKey, claims.SessionID)
		return next(c)
	}
}

func (h *handler) getHistory(c echo.Context) error {
	sessionID := c.Get(sessionIDKey).(string)

	session, err := h.Sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		Turns:     slices.Collect(session.VisibleHistory()),
	})
}

func (h *handler) postTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	return h.exchange(c, entities.TypedInput{Text: req.Text})
}

func (h *handler) endSession(c echo.Context) error {
	sessionID := c.Get(sessionIDKey).(string)

	if err := h.Sessions.End(c.Request().Context(), sessionID); err != nil {
		return h.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) webrtcOffer(c echo.Context) error {
	if h.WebRTC == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "webrtc_disabled",
			Message: "WebRTC capture is not configured",
		})
	}

	sessionID := c.Get(sessionIDKey).(string)
	ctx := c.Request().Context()
	if _, err := h.Sessions.Get(ctx, sessionID); err != nil {
		return h.errorResponse(c, err)
	}

	var offer recorder.SessionDescription
	if err := c.Bind(&offer); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	capture, answer, err := h.WebRTC.Accept(ctx, offer)
	if err != nil {
		h.Logger.Warn("WebRTC offer rejected", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_offer",
			Message: err.Error(),
		})
	}

	h.mu.Lock()
	previous := h.captures[sessionID]
	h.captures[sessionID] = capture
	h.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	h.Logger.Info("WebRTC capture started", zap.String("sessionID", sessionID))
	return c.JSON(http.StatusOK, answer)
}

func (h *handler) webrtcTranscribe(c echo.Context) error {
	sessionID := c.Get(sessionIDKey).(string)

	// The capture is only taken once the session lock is held, so a busy
	// session keeps recording
	take := func() (entities.InputSource, error) {
		h.mu.Lock()
		capture := h.captures[sessionID]
		delete(h.captures, sessionID)
		h.mu.Unlock()

		if capture == nil {
			return nil, errNotListening
		}

		clip := capture.Stop()
		if err := capture.Close(); err != nil {
			h.Logger.Debug("Failed to close peer connection", zap.Error(err))
		}
		return entities.RecordedInput{Clip: clip}, nil
	}

	return h.respond(c, take)
}

func (h *handler) closeCapture(sessionID string) {
	h.mu.Lock()
	capture := h.captures[sessionID]
	delete(h.captures, sessionID)
	h.mu.Unlock()
	if capture != nil {
		capture.Close()
	}
}

// exchange runs one exchange and returns the reply audio inline
func (h *handler) exchange(c echo.Context, input entities.InputSource) error {
	return h.respond(c, func() (entities.InputSource, error) {
		return input, nil
	})
}

func (h *handler) respond(c echo.Context, take func() (entities.InputSource, error)) error {
	sessionID := c.Get(sessionIDKey).(string)
	presenter := &inlinePresenter{}

	result, err := h.Sessions.ExchangeFrom(c.Request().Context(), sessionID, take, presenter)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, TurnResponse{
		ExchangeResult: result,
		AudioFormat:    presenter.format,
		Audio:          presenter.audio,
	})
}

func (h *handler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Message: err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session_not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrSessionBusy):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "session_busy", Message: err.Error()})
	case errors.Is(err, errNotListening):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "not_listening", Message: err.Error()})
	case errors.Is(err, domain.ErrServiceUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "service_unavailable", Message: err.Error()})
	default:
		h.Logger.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Something went wrong"})
	}
}

// inlinePresenter keeps the reply audio for the HTTP response
type inlinePresenter struct {
	format string
	audio  []byte
}

func (p *inlinePresenter) Transcribed(string) {}
func (p *inlinePresenter) Translated(string)  {}

func (p *inlinePresenter) Play(_ context.Context, artifact *entities.AudioArtifact) error {
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		return err
	}
	p.format = string(artifact.Format)
	p.audio = data
	return nil
}

// websocketWithAuth handles WebSocket connections with JWT authentication.
// Browsers cannot set headers on a WebSocket handshake, so the token may
// also be passed as ?token=.
func (h *handler) websocketWithAuth(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		h.Logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := h.Tokens.ValidateToken(token)
	if err != nil {
		h.Logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if _, err := h.Sessions.Get(c.Request().Context(), claims.SessionID); err != nil {
		return h.errorResponse(c, err)
	}

	h.Logger.Info("WebSocket connection authenticated", zap.String("sessionID", claims.SessionID))

	return websocket.HandleWebSocketWithAuth(h.Hub, c, claims.SessionID, h.Logger)
}
