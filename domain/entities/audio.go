package entities

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"
)

// AudioFormat identifies the encoding of an audio artifact
type AudioFormat string

const (
	AudioFormatWAV AudioFormat = "wav"
	AudioFormatMP3 AudioFormat = "mp3"
	AudioFormatPCM AudioFormat = "pcm"
)

// AudioClip is a finite run of interleaved signed 16-bit PCM samples
type AudioClip struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Samples    []int16 `json:"-"`
}

// Duration returns the playing time of the clip
func (c AudioClip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip carries no samples
func (c AudioClip) Empty() bool {
	return len(c.Samples) == 0
}

// AudioArtifact is a temporary file holding encoded audio. It has a single
// consumer, which must call Release once it has read the file.
type AudioArtifact struct {
	Path       string      `json:"path"`
	Format     AudioFormat `json:"format"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Channels   int         `json:"channels,omitempty"`

	once sync.Once
	err  error
}

// Release deletes the backing file. Calling it more than once is safe.
func (a *AudioArtifact) Release() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		err := os.Remove(a.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.err = err
		}
	})
	return a.err
}

// ReadAndRelease reads the whole artifact and deletes it
func (a *AudioArtifact) ReadAndRelease() ([]byte, error) {
	defer a.Release()
	return os.ReadFile(a.Path)
}
