package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
	"github.com/satriahrh/charla/internal/audio"
)

const frameQueueSize = 64

// ErrCaptureStopped is returned by Push once the capture has been stopped
var ErrCaptureStopped = errors.New("capture stopped")

// StreamCapture collects frames pushed by a network reader until Stop is
// called. Frames travel over a bounded channel to a drain goroutine that owns
// the accumulated samples.
type StreamCapture struct {
	sampleRate int
	channels   int
	maxSamples int
	logger     *zap.Logger

	mu      sync.RWMutex
	stopped bool
	frames  chan []int16
	done    chan struct{}
	once    sync.Once

	received atomic.Int64

	// written by the drain goroutine, read after done is closed
	clip    entities.AudioClip
	dropped int
}

var _ repositories.Recorder = (*StreamCapture)(nil)

// NewStreamCapture starts a capture for interleaved PCM at sampleRate.
// Samples beyond maxDuration are dropped.
func NewStreamCapture(sampleRate, channels int, maxDuration time.Duration, logger *zap.Logger) *StreamCapture {
	channels = max(channels, 1)
	c := &StreamCapture{
		sampleRate: sampleRate,
		channels:   channels,
		maxSamples: int(maxDuration.Seconds() * float64(sampleRate*channels)),
		logger:     logger,
		frames:     make(chan []int16, frameQueueSize),
		done:       make(chan struct{}),
	}
	go c.drain()
	return c
}

// Push queues one frame of samples. It blocks while the queue is full.
func (c *StreamCapture) Push(frame []int16) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return ErrCaptureStopped
	}
	if len(frame) == 0 {
		return nil
	}
	c.frames <- frame
	c.received.Add(int64(len(frame)))
	return nil
}

// Received is the number of samples pushed so far, including any that will
// be dropped past the maximum duration
func (c *StreamCapture) Received() int {
	return int(c.received.Load())
}

// PushPCM16LE queues a frame of little-endian 16-bit PCM bytes
func (c *StreamCapture) PushPCM16LE(b []byte) error {
	return c.Push(audio.FromPCM16LE(b))
}

// Stop ends the stream, waits for every queued frame to be drained and
// returns the concatenated clip. Later calls return the same clip.
func (c *StreamCapture) Stop() entities.AudioClip {
	c.once.Do(func() {
		c.mu.Lock()
		c.stopped = true
		close(c.frames)
		c.mu.Unlock()
	})
	<-c.done
	return c.clip
}

// Record implements repositories.Recorder. It waits for stop, ctx or the
// maximum duration and then stops the capture.
func (c *StreamCapture) Record(ctx context.Context, stop <-chan struct{}) (entities.AudioClip, error) {
	timer := time.NewTimer(c.maxDuration())
	defer timer.Stop()

	select {
	case <-stop:
	case <-timer.C:
		c.logger.Info("Maximum capture duration reached")
	case <-ctx.Done():
		return c.Stop(), ctx.Err()
	}
	return c.Stop(), nil
}

// Stopped reports whether Stop has been called
func (c *StreamCapture) Stopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

func (c *StreamCapture) maxDuration() time.Duration {
	return time.Duration(c.maxSamples) * time.Second / time.Duration(c.sampleRate*c.channels)
}

func (c *StreamCapture) drain() {
	defer close(c.done)

	var frames [][]int16
	total := 0
	for frame := range c.frames {
		remaining := c.maxSamples - total
		if remaining <= 0 {
			c.dropped += len(frame)
			continue
		}
		if len(frame) > remaining {
			c.dropped += len(frame) - remaining
			frame = frame[:remaining]
		}
		frames = append(frames, frame)
		total += len(frame)
	}

	c.clip = entities.AudioClip{
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		Samples:    audio.Concat(frames),
	}

	c.logger.Debug("Capture drained",
		zap.Int("frames", len(frames)),
		zap.Int("samples", total),
		zap.Int("droppedSamples", c.dropped),
		zap.Duration("duration", c.clip.Duration()))
}
