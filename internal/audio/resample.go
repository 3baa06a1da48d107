package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/satriahrh/charla/domain/entities"
)

// Resample converts clip to a mono clip at the target sample rate
func Resample(clip entities.AudioClip, targetRate int) (entities.AudioClip, error) {
	mono := Downmix(clip)
	if targetRate <= 0 || mono.SampleRate == targetRate || mono.Empty() {
		return mono, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(mono.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("failed to create resampler: %w", err)
	}

	input := make([]float64, len(mono.Samples))
	for i, s := range mono.Samples {
		input[i] = float64(s) / 32768.0
	}

	output, err := r.Process(input)
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("resample error: %w", err)
	}

	samples := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s > 1.0:
			samples[i] = 32767
		case s < -1.0:
			samples[i] = -32768
		default:
			samples[i] = int16(s * 32767.0)
		}
	}

	return entities.AudioClip{SampleRate: targetRate, Channels: 1, Samples: samples}, nil
}
