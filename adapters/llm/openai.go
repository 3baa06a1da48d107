package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds configuration for the OpenAILLM adapter
type OpenAIConfig struct {
	Model       string  // Optional: chat model (default: gpt-4o-mini)
	Temperature float64 // Optional: sampling temperature between 0 and 2
	MaxTokens   int     // Optional: reply length cap
}

// OpenAILLM implements the LargeLanguageModel interface using OpenAI chat completions
type OpenAILLM struct {
	client      *openai.Client
	logger      *zap.Logger
	model       string
	temperature float64
	maxTokens   int
}

var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be positive, got %d", config.MaxTokens)
	}
	return nil
}

// NewOpenAILLM creates a chat completion adapter on top of client
func NewOpenAILLM(client *openai.Client, config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}

	return &OpenAILLM{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
	}, nil
}

// Complete implements repositories.LargeLanguageModel
func (o *OpenAILLM) Complete(ctx context.Context, history []entities.Turn) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertTurnsToOpenAIFormat(history),
		Model:    o.model,
	}
	if o.temperature > 0 {
		params.Temperature = openai.Float(o.temperature)
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("blocked: %s", choice.Message.Refusal)
	}

	reply := strings.TrimSpace(choice.Message.Content)

	o.logger.Info("OpenAI reply generated",
		zap.String("model", o.model),
		zap.String("finishReason", choice.FinishReason),
		zap.Int("history_length", len(history)),
		zap.Int64("totalTokens", resp.Usage.TotalTokens))

	return reply, nil
}

func convertTurnsToOpenAIFormat(turns []entities.Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case entities.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(turn.Content))
		case entities.RoleAssistant:
			// failed completions leave empty assistant turns in the log
			if turn.Content == "" {
				continue
			}
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		default:
			msgs = append(msgs, openai.UserMessage(turn.Content))
		}
	}
	return msgs
}
