package recorder

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/charla/internal/audio"
)

// fakeProcess streams samples through a pipe and records the launch arguments
type fakeProcess struct {
	name    string
	args    []string
	samples []int16
	killed  bool
}

func (f *fakeProcess) start(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error) {
	f.name, f.args = name, args
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write(audio.ToPCM16LE(f.samples))
	}()
	kill := func() error {
		f.killed = true
		return pw.Close()
	}
	return pr, kill, nil
}

func newTestRecorder(t *testing.T, maxDuration time.Duration, proc *fakeProcess) *CommandRecorder {
	t.Helper()
	r, err := NewCommandRecorder(CommandRecorderConfig{
		Command:     "arecord",
		SampleRate:  16000,
		MaxDuration: maxDuration,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}
	return r.WithStartFunc(proc.start)
}

func TestCommandRecorder_StopSignal(t *testing.T) {
	proc := &fakeProcess{samples: make([]int16, 1600)}
	for i := range proc.samples {
		proc.samples[i] = int16(i)
	}
	r := newTestRecorder(t, 5*time.Second, proc)

	stop := make(chan struct{})
	time.AfterFunc(200*time.Millisecond, func() { close(stop) })

	clip, err := r.Record(context.Background(), stop)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(clip.Samples) != 1600 {
		t.Fatalf("Expected 1600 samples, got %d", len(clip.Samples))
	}
	if clip.Samples[1599] != 1599 {
		t.Errorf("Expected samples in capture order, got %d", clip.Samples[1599])
	}
	if !proc.killed {
		t.Error("Expected capture process to be stopped")
	}
	if proc.name != "arecord" {
		t.Errorf("Expected arecord, got %s", proc.name)
	}
}

func TestCommandRecorder_TrimsToElapsed(t *testing.T) {
	// the fake delivers a full second instantly
	proc := &fakeProcess{samples: make([]int16, 16000)}
	r := newTestRecorder(t, 5*time.Second, proc)

	stop := make(chan struct{})
	time.AfterFunc(50*time.Millisecond, func() { close(stop) })

	clip, err := r.Record(context.Background(), stop)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := len(clip.Samples); n == 0 || n >= 16000 {
		t.Errorf("Expected clip trimmed to elapsed time, got %d samples", n)
	}
}

func TestCommandRecorder_MaxDuration(t *testing.T) {
	proc := &fakeProcess{samples: make([]int16, 16000)}
	r := newTestRecorder(t, 100*time.Millisecond, proc)

	start := time.Now()
	clip, err := r.Record(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected recording to end at the maximum duration")
	}
	if n := len(clip.Samples); n > 1600 {
		t.Errorf("Expected at most 1600 samples, got %d", n)
	}
}

func TestCommandRecorder_ContextCancelled(t *testing.T) {
	proc := &fakeProcess{samples: make([]int16, 160)}
	r := newTestRecorder(t, 5*time.Second, proc)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := r.Record(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestCommandRecorder_StartFailure(t *testing.T) {
	r := newTestRecorder(t, time.Second, &fakeProcess{})
	r.WithStartFunc(func(context.Context, string, ...string) (io.ReadCloser, func() error, error) {
		return nil, nil, errors.New("no such device")
	})

	if _, err := r.Record(context.Background(), nil); err == nil {
		t.Error("Expected error when capture cannot start")
	}
}

func TestCommandRecorder_Args(t *testing.T) {
	rec := &CommandRecorder{command: "rec", sampleRate: 16000}
	args := rec.args()
	if args[len(args)-1] != "-" {
		t.Errorf("Expected rec to write to stdout, got %v", args)
	}

	arecord := &CommandRecorder{command: "arecord", sampleRate: 8000}
	found := false
	for i, a := range arecord.args() {
		if a == "-r" && arecord.args()[i+1] == "8000" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected arecord rate argument, got %v", arecord.args())
	}
}

func TestValidateCommandRecorderConfig(t *testing.T) {
	if err := ValidateCommandRecorderConfig(CommandRecorderConfig{Command: "parecord"}); err == nil {
		t.Error("Expected error for unsupported command")
	}
	if err := ValidateCommandRecorderConfig(CommandRecorderConfig{Command: "rec", SampleRate: 44100}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
