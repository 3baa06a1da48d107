package api

import (
	"time"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/usecase"
)

// CreateSessionResponse represents the response payload for a new session
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HistoryResponse lists the visible turns of a session
type HistoryResponse struct {
	SessionID string          `json:"session_id"`
	Turns     []entities.Turn `json:"turns"`
}

// TurnRequest represents a typed learner utterance
type TurnRequest struct {
	Text string `json:"text"`
}

// TurnResponse reports one exchange. Audio is base64 encoded in JSON.
type TurnResponse struct {
	usecase.ExchangeResult
	AudioFormat string `json:"audio_format,omitempty"`
	Audio       []byte `json:"audio,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
