package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

const (
	defaultWhisperModel    = "whisper-1"
	defaultWhisperLanguage = "es"
)

// WhisperConfig holds configuration for the WhisperSpeechToText adapter
type WhisperConfig struct {
	Model    string // Optional: transcription model (default: whisper-1)
	Language string // Optional: ISO-639-1 spoken language (default: es)
}

// WhisperSpeechToText implements SpeechToText using the OpenAI transcription API
type WhisperSpeechToText struct {
	client   *openai.Client
	model    string
	language string
	logger   *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSpeechToText)(nil)

// NewWhisperSpeechToText creates a Whisper transcription adapter
func NewWhisperSpeechToText(client *openai.Client, config WhisperConfig, logger *zap.Logger) *WhisperSpeechToText {
	model := config.Model
	if model == "" {
		model = defaultWhisperModel
		logger.Info("Using default transcription model", zap.String("model", model))
	}

	language := config.Language
	if language == "" {
		language = defaultWhisperLanguage
		logger.Info("Using default transcription language", zap.String("language", language))
	}

	return &WhisperSpeechToText{
		client:   client,
		model:    model,
		language: language,
		logger:   logger,
	}
}

// Transcribe implements repositories.SpeechToText
func (w *WhisperSpeechToText) Transcribe(ctx context.Context, audio *entities.AudioArtifact) (string, error) {
	f, err := os.Open(audio.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio artifact: %w", err)
	}
	defer f.Close()

	w.logger.Info("Transcribing audio",
		zap.String("model", w.model),
		zap.String("format", string(audio.Format)))

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     f,
		Model:    openai.AudioModel(w.model),
		Language: openai.String(w.language),
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}
