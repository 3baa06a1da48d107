package audio

import (
	"encoding/binary"

	"github.com/satriahrh/charla/domain/entities"
)

// Concat joins captured frames into one sample slice
func Concat(frames [][]int16) []int16 {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]int16, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// FromPCM16LE decodes little-endian signed 16-bit samples. A trailing odd
// byte is ignored.
func FromPCM16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// ToPCM16LE encodes samples as little-endian signed 16-bit bytes
func ToPCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Downmix averages interleaved channels into a mono clip
func Downmix(clip entities.AudioClip) entities.AudioClip {
	if clip.Channels <= 1 {
		clip.Channels = 1
		return clip
	}
	frames := len(clip.Samples) / clip.Channels
	mono := make([]int16, frames)
	for i := range frames {
		var sum int32
		for c := range clip.Channels {
			sum += int32(clip.Samples[i*clip.Channels+c])
		}
		mono[i] = int16(sum / int32(clip.Channels))
	}
	return entities.AudioClip{SampleRate: clip.SampleRate, Channels: 1, Samples: mono}
}
