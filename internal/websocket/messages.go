package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/charla/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Messages sent by the learner's client
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeTextInput      MessageType = "text_input"
	MessageTypePing           MessageType = "ping"
)

// Messages sent by the server
const (
	MessageTypeListeningStarted MessageType = "listening_started"
	MessageTypeTranscription    MessageType = "transcription"
	MessageTypeTranslation      MessageType = "translation"
	MessageTypeSpeakingStart    MessageType = "speaking_start"
	MessageTypeSpeakingEnd      MessageType = "speaking_end"
	MessageTypeTurn             MessageType = "turn"
	MessageTypePong             MessageType = "pong"
	MessageTypeError            MessageType = "error"
)

// Error codes carried by ErrorMessage
const (
	ErrorCodeInvalidMessage     = "invalid_message"
	ErrorCodeInvalidInput       = "invalid_input"
	ErrorCodeNotListening       = "not_listening"
	ErrorCodeSessionBusy        = "session_busy"
	ErrorCodeSessionNotFound    = "session_not_found"
	ErrorCodeServiceUnavailable = "service_unavailable"
	ErrorCodeInternal           = "internal_error"
)

const (
	minSampleRate = 8000
	maxSampleRate = 48000
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
}

// ListeningStartMessage opens a capture of binary PCM16LE frames
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`
}

// ListeningEndMessage closes the capture and submits it
type ListeningEndMessage struct {
	BaseMessage
}

// TextInputMessage submits typed text
type TextInputMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ListeningStartedMessage acknowledges a capture
type ListeningStartedMessage struct {
	BaseMessage
	SampleRate  int   `json:"sample_rate"`
	Channels    int   `json:"channels"`
	MaxDuration int64 `json:"max_duration_ms"`
}

// TextMessage carries a transcript or a translation
type TextMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// SpeakingStartMessage precedes the binary frames of the reply audio
type SpeakingStartMessage struct {
	BaseMessage
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Bytes      int    `json:"bytes"`
}

// SpeakingEndMessage follows the last reply audio frame
type SpeakingEndMessage struct {
	BaseMessage
}

// TurnMessage reports the outcome of an exchange
type TurnMessage struct {
	BaseMessage
	usecase.ExchangeResult
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming text frame into one of the client
// message types
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		return &ListeningEndMessage{BaseMessage: base}, nil

	case MessageTypeTextInput:
		var msg TextInputMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid text input message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message missing type field")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateListeningStart checks the announced PCM format
func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < minSampleRate || msg.SampleRate > maxSampleRate) {
		return fmt.Errorf("sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}
	if msg.Channels < 0 || msg.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2")
	}
	return nil
}

func newBase(t MessageType, sessionID string) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
		SessionID: sessionID,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(sessionID, code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError, sessionID),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(sessionID, data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong, sessionID),
		Data:        data,
	}
}

// CreateTextMessage creates a transcription or translation message
func CreateTextMessage(t MessageType, sessionID, text string) *TextMessage {
	return &TextMessage{
		BaseMessage: newBase(t, sessionID),
		Text:        text,
	}
}

// CreateTurnMessage reports a finished exchange
func CreateTurnMessage(sessionID string, result usecase.ExchangeResult) *TurnMessage {
	return &TurnMessage{
		BaseMessage:    newBase(MessageTypeTurn, sessionID),
		ExchangeResult: result,
	}
}
