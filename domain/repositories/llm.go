package repositories

import (
	"context"

	"github.com/satriahrh/charla/domain/entities"
)

// LargeLanguageModel abstracts any chat completion provider
type LargeLanguageModel interface {
	// Complete returns the next assistant utterance for the given history.
	// The history starts with the system turn and ends with the latest user turn.
	Complete(ctx context.Context, history []entities.Turn) (string, error)
}

// Translator renders text in the learner's reference language. An empty
// result means no translation is needed.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}
