package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

// Translator implements repositories.Translator by prompting a chat model
type Translator struct {
	model          repositories.LargeLanguageModel
	sourceLanguage string
	targetLanguage string
	logger         *zap.Logger
}

var _ repositories.Translator = (*Translator)(nil)

// NewTranslator translates from sourceLanguage to targetLanguage using model
func NewTranslator(model repositories.LargeLanguageModel, sourceLanguage, targetLanguage string, logger *zap.Logger) *Translator {
	return &Translator{
		model:          model,
		sourceLanguage: sourceLanguage,
		targetLanguage: targetLanguage,
		logger:         logger,
	}
}

// Translate implements repositories.Translator. It returns "" when source
// and target languages match.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" || strings.EqualFold(t.sourceLanguage, t.targetLanguage) {
		return "", nil
	}

	instruction := fmt.Sprintf(
		"Translate the user's message from %s to %s. Reply with the translation only, without quotes or notes.",
		languageName(t.sourceLanguage), languageName(t.targetLanguage))

	translation, err := t.model.Complete(ctx, []entities.Turn{
		{Role: entities.RoleSystem, Content: instruction},
		{Role: entities.RoleUser, Content: text},
	})
	if err != nil {
		return "", fmt.Errorf("failed to translate: %w", err)
	}

	translation = strings.TrimSpace(translation)
	if strings.EqualFold(translation, strings.TrimSpace(text)) {
		return "", nil
	}

	t.logger.Debug("Translated user turn",
		zap.String("source", t.sourceLanguage),
		zap.String("target", t.targetLanguage))

	return translation, nil
}

// NoopTranslator never annotates turns
type NoopTranslator struct{}

// Translate implements repositories.Translator
func (NoopTranslator) Translate(context.Context, string) (string, error) {
	return "", nil
}

var languageNames = map[string]string{
	"es": "Spanish",
	"en": "English",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

func languageName(code string) string {
	base, _, _ := strings.Cut(strings.ToLower(code), "-")
	if name, ok := languageNames[base]; ok {
		return name
	}
	return code
}
