package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
	"github.com/satriahrh/charla/internal/audio"
)

const (
	defaultOpenAISpeechModel = "gpt-4o-mini-tts"
	defaultOpenAIVoice       = "nova"
)

// OpenAIConfig holds configuration for the OpenAI speech adapter
type OpenAIConfig struct {
	Model   string  // Optional: speech model (default: gpt-4o-mini-tts)
	Voice   string  // Optional: voice name (default: nova)
	Speed   float64 // Optional: 0.25 to 4.0, 0 keeps the provider default
	TempDir string  // Optional: where artifacts are written
}

// OpenAITTS implements TextToSpeech using the OpenAI audio speech endpoint
type OpenAITTS struct {
	client  *openai.Client
	model   string
	voice   string
	speed   float64
	tempDir string
	logger  *zap.Logger
}

var _ repositories.TextToSpeech = (*OpenAITTS)(nil)

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.Speed != 0 && (config.Speed < 0.25 || config.Speed > 4) {
		return fmt.Errorf("speed must be between 0.25 and 4, got %f", config.Speed)
	}
	return nil
}

// NewOpenAITTS creates a speech adapter on top of client
func NewOpenAITTS(client *openai.Client, config OpenAIConfig, logger *zap.Logger) (*OpenAITTS, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAISpeechModel
		logger.Info("Using default speech model", zap.String("model", model))
	}

	voice := config.Voice
	if voice == "" {
		voice = defaultOpenAIVoice
		logger.Info("Using default voice", zap.String("voice", voice))
	}

	return &OpenAITTS{
		client:  client,
		model:   model,
		voice:   voice,
		speed:   config.Speed,
		tempDir: config.TempDir,
		logger:  logger,
	}, nil
}

// Synthesize implements repositories.TextToSpeech
func (o *OpenAITTS) Synthesize(ctx context.Context, text string) (*entities.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if o.speed > 0 {
		params.Speed = openai.Float(o.speed)
	}

	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	artifact, err := audio.WriteTemp(resp.Body, entities.AudioFormatMP3, o.tempDir)
	if err != nil {
		return nil, err
	}

	o.logger.Info("OpenAI speech synthesized",
		zap.String("model", o.model),
		zap.String("voice", o.voice),
		zap.Int("textLength", len(text)))

	return artifact, nil
}
