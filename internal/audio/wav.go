package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satriahrh/charla/domain/entities"
)

const bitDepth = 16

// WriteTempWAV persists clip as a 16-bit PCM WAV file in dir (os.TempDir
// when empty). The returned artifact must be released by its consumer.
func WriteTempWAV(clip entities.AudioClip, dir string) (*entities.AudioArtifact, error) {
	if clip.Empty() {
		return nil, errors.New("audio clip is empty")
	}
	channels := max(clip.Channels, 1)

	f, err := os.CreateTemp(dir, "charla-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp wav: %w", err)
	}
	artifact := &entities.AudioArtifact{
		Path:       f.Name(),
		Format:     entities.AudioFormatWAV,
		SampleRate: clip.SampleRate,
		Channels:   channels,
	}

	data := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(f, clip.SampleRate, bitDepth, channels, 1)
	writeErr := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: clip.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if writeErr == nil {
		writeErr = enc.Close()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		artifact.Release()
		return nil, fmt.Errorf("failed to encode wav: %w", writeErr)
	}

	return artifact, nil
}

// ReadWAV decodes a 16-bit PCM WAV file into a clip
func ReadWAV(r io.ReadSeeker) (entities.AudioClip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return entities.AudioClip{}, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("failed to decode wav: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s)
	}
	return entities.AudioClip{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    samples,
	}, nil
}

// WriteTemp copies an encoded audio stream into a temporary artifact
func WriteTemp(src io.Reader, format entities.AudioFormat, dir string) (*entities.AudioArtifact, error) {
	f, err := os.CreateTemp(dir, "charla-*."+string(format))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	artifact := &entities.AudioArtifact{Path: f.Name(), Format: format}

	n, copyErr := io.Copy(f, src)
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && n == 0 {
		copyErr = errors.New("no audio data received")
	}
	if copyErr != nil {
		artifact.Release()
		return nil, fmt.Errorf("failed to write audio: %w", copyErr)
	}

	return artifact, nil
}
