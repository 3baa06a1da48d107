package repositories

import (
	"context"

	"github.com/satriahrh/charla/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts a recorded artifact to text in the spoken language.
	// The caller keeps ownership of the artifact.
	Transcribe(ctx context.Context, audio *entities.AudioArtifact) (string, error)
}

// Recorder captures a bounded clip from a microphone. Capture ends when stop
// is closed, ctx is done or the recorder's maximum duration elapses.
type Recorder interface {
	Record(ctx context.Context, stop <-chan struct{}) (entities.AudioClip, error)
}
