package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

// MockSpeechToText is an offline SpeechToText for development
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// Transcribe implements repositories.SpeechToText
func (s *MockSpeechToText) Transcribe(ctx context.Context, audio *entities.AudioArtifact) (string, error) {
	if audio == nil {
		return "", fmt.Errorf("no audio data received")
	}

	s.logger.Info("Processing speech-to-text",
		zap.String("path", audio.Path),
		zap.Int("sampleRate", audio.SampleRate))

	return "Hola, ¿cómo estás?", nil
}
