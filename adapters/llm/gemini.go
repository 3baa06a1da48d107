package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultTemperature = 0.7
	defaultMaxTokens   = 512
)

// GeminiConfig holds configuration for the GeminiLLM adapter
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: the model to use (default: "gemini-2.0-flash")
// - Temperature: sampling temperature between 0 and 2 (default: 0.7)
// - MaxOutputTokens: reply length cap (default: 512)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}

	return nil
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	return &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
	}, nil
}

// Complete implements repositories.LargeLanguageModel
func (g *GeminiLLM) Complete(ctx context.Context, history []entities.Turn) (string, error) {
	system, contents := convertTurnsToGeminiFormat(history)
	if len(contents) == 0 {
		return "", fmt.Errorf("history has no user turn")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	reply := strings.TrimSpace(b.String())

	g.logger.Info("Gemini reply generated",
		zap.String("model", g.model),
		zap.Int("history_length", len(history)),
		zap.Int("reply_length", len(reply)))

	return reply, nil
}

// convertTurnsToGeminiFormat splits off the system preamble and converts the
// remaining turns. Empty turns are skipped since Gemini rejects empty parts.
func convertTurnsToGeminiFormat(turns []entities.Turn) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		switch turn.Role {
		case entities.RoleSystem:
			system = append(system, turn.Content)
		case entities.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		}
	}

	return strings.Join(system, "\n\n"), contents
}
