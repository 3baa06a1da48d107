package repositories

import (
	"context"

	"github.com/satriahrh/charla/domain/entities"
)

// TextToSpeech synthesizes a reply into a temporary audio artifact. The
// caller owns the artifact and must release it after playback.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (*entities.AudioArtifact, error)
}
