package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
	"github.com/satriahrh/charla/internal/audio"
)

const mockSampleRate = 16000

// MockTextToSpeech writes a short silent WAV for every reply
type MockTextToSpeech struct {
	tempDir string
}

// NewMockTextToSpeech creates a new mock speech synthesizer
func NewMockTextToSpeech(tempDir string) repositories.TextToSpeech {
	return &MockTextToSpeech{tempDir: tempDir}
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTextToSpeech) Synthesize(ctx context.Context, text string) (*entities.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	// 50ms of silence per word
	words := len(strings.Fields(text))
	clip := entities.AudioClip{
		SampleRate: mockSampleRate,
		Channels:   1,
		Samples:    make([]int16, words*mockSampleRate/20),
	}
	return audio.WriteTempWAV(clip, m.tempDir)
}
