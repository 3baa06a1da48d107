package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

const (
	defaultSampleRate  = 16000
	defaultMaxDuration = 60 * time.Second
)

// StartFunc launches a capture process and returns its stdout together with
// a function that terminates it.
type StartFunc func(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error)

// CommandRecorderConfig holds configuration for the CommandRecorder
// Optional fields with defaults:
// - Command: "arecord" or "rec" (default: first one found in PATH)
// - SampleRate: capture rate in Hz (default: 16000)
// - MaxDuration: capture limit (default: 60s)
type CommandRecorderConfig struct {
	Command     string
	SampleRate  int
	MaxDuration time.Duration
}

// CommandRecorder captures mono 16-bit PCM from the default microphone by
// reading the raw output of a capture command
type CommandRecorder struct {
	command     string
	sampleRate  int
	maxDuration time.Duration
	start       StartFunc
	logger      *zap.Logger
}

var _ repositories.Recorder = (*CommandRecorder)(nil)

// ValidateCommandRecorderConfig validates the CommandRecorderConfig
func ValidateCommandRecorderConfig(config CommandRecorderConfig) error {
	switch config.Command {
	case "", "arecord", "rec":
	default:
		return fmt.Errorf("unsupported capture command %q", config.Command)
	}
	if config.SampleRate < 0 {
		return fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.MaxDuration < 0 {
		return fmt.Errorf("max duration must be positive, got %s", config.MaxDuration)
	}
	return nil
}

// NewCommandRecorder creates a recorder backed by arecord or SoX rec
func NewCommandRecorder(config CommandRecorderConfig, logger *zap.Logger) (*CommandRecorder, error) {
	if err := ValidateCommandRecorderConfig(config); err != nil {
		return nil, err
	}

	command := config.Command
	if command == "" {
		for _, candidate := range []string{"arecord", "rec"} {
			if _, err := exec.LookPath(candidate); err == nil {
				command = candidate
				break
			}
		}
		if command == "" {
			return nil, errors.New("no capture command found, install alsa-utils or sox")
		}
		logger.Info("Using capture command", zap.String("command", command))
	}

	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
		logger.Info("Using default sample rate", zap.Int("sampleRate", sampleRate))
	}

	maxDuration := config.MaxDuration
	if maxDuration == 0 {
		maxDuration = defaultMaxDuration
		logger.Info("Using default max duration", zap.Duration("maxDuration", maxDuration))
	}

	return &CommandRecorder{
		command:     command,
		sampleRate:  sampleRate,
		maxDuration: maxDuration,
		start:       startProcess,
		logger:      logger,
	}, nil
}

// WithStartFunc replaces how the capture process is launched
func (r *CommandRecorder) WithStartFunc(start StartFunc) *CommandRecorder {
	r.start = start
	return r
}

// Record implements repositories.Recorder. The buffer is sized for the
// maximum duration and trimmed to the elapsed time on return.
func (r *CommandRecorder) Record(ctx context.Context, stop <-chan struct{}) (entities.AudioClip, error) {
	clip := entities.AudioClip{SampleRate: r.sampleRate, Channels: 1}
	buffer := make([]int16, int(r.maxDuration.Seconds()*float64(r.sampleRate)))

	stdout, kill, err := r.start(ctx, r.command, r.args()...)
	if err != nil {
		return clip, fmt.Errorf("failed to start %s: %w", r.command, err)
	}

	began := time.Now()
	captured := make(chan int, 1)
	go func() {
		captured <- readSamples(stdout, buffer)
	}()

	timer := time.NewTimer(r.maxDuration)
	defer timer.Stop()

	var n int
	var ctxErr error
	select {
	case <-stop:
	case <-timer.C:
		r.logger.Info("Maximum recording duration reached", zap.Duration("maxDuration", r.maxDuration))
	case <-ctx.Done():
		ctxErr = ctx.Err()
	case n = <-captured:
		// process exited or buffer filled
		captured = nil
	}

	if err := kill(); err != nil {
		r.logger.Debug("Capture process exited", zap.Error(err))
	}
	if captured != nil {
		n = <-captured
	}
	stdout.Close()

	elapsed := time.Since(began)
	n = min(n, int(elapsed.Seconds()*float64(r.sampleRate)))
	clip.Samples = buffer[:n]

	r.logger.Info("Recording finished",
		zap.Duration("elapsed", elapsed),
		zap.Duration("captured", clip.Duration()))

	return clip, ctxErr
}

func (r *CommandRecorder) args() []string {
	rate := strconv.Itoa(r.sampleRate)
	if r.command == "rec" {
		return []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", "1", "-"}
	}
	return []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", "1"}
}

// readSamples fills buf from little-endian PCM until EOF or buf is full
func readSamples(src io.Reader, buf []int16) int {
	br := bufio.NewReaderSize(src, 8192)
	var pair [2]byte
	n := 0
	for n < len(buf) {
		if _, err := io.ReadFull(br, pair[:]); err != nil {
			break
		}
		buf[n] = int16(binary.LittleEndian.Uint16(pair[:]))
		n++
	}
	return n
}

func startProcess(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	kill := func() error {
		if cmd.ProcessState == nil {
			_ = cmd.Process.Kill()
		}
		return cmd.Wait()
	}
	return stdout, kill, nil
}
