package llm

import (
	"context"
	"fmt"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

// MockLLM is an offline LargeLanguageModel for development
type MockLLM struct{}

// NewMockLLM creates a new mock language model
func NewMockLLM() repositories.LargeLanguageModel {
	return &MockLLM{}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, history []entities.Turn) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("empty history")
	}

	last := history[len(history)-1]
	if last.Role != entities.RoleUser {
		return "¡Hola! Soy tu compañero de conversación. ¿De qué quieres hablar hoy?", nil
	}
	return fmt.Sprintf("¡Qué interesante! Dijiste: «%s». ¿Puedes contarme más?", last.Content), nil
}
