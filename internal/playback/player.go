// Package playback plays synthesized replies through whatever command line
// audio player is installed.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
)

// ErrNoPlayer is returned when none of the known players is installed
var ErrNoPlayer = errors.New("no suitable audio player found")

// Player plays an audio artifact to completion. It does not release it.
type Player interface {
	Play(ctx context.Context, artifact *entities.AudioArtifact) error
}

// audioPlayer is a player command and the arguments placed before the file
type audioPlayer struct {
	command string
	args    func(a *entities.AudioArtifact) []string
}

// CommandPlayer tries ffplay, SoX play, aplay and afplay in order
type CommandPlayer struct {
	players  []audioPlayer
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	logger   *zap.Logger
}

// NewCommandPlayer creates a player that shells out to a local audio player
func NewCommandPlayer(logger *zap.Logger) *CommandPlayer {
	return &CommandPlayer{
		players:  defaultPlayers(),
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		logger: logger,
	}
}

// Play implements Player
func (p *CommandPlayer) Play(ctx context.Context, artifact *entities.AudioArtifact) error {
	if artifact == nil {
		return errors.New("nothing to play")
	}

	var lastErr error
	for _, player := range p.players {
		if _, err := p.lookPath(player.command); err != nil {
			continue
		}
		args := append(player.args(artifact), artifact.Path)
		p.logger.Debug("Attempting to play audio",
			zap.String("player", player.command),
			zap.Strings("args", args))

		err := p.run(ctx, player.command, args...)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("Player failed", zap.String("player", player.command), zap.Error(err))
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("%w: last error: %v", ErrNoPlayer, lastErr)
	}
	return ErrNoPlayer
}

func defaultPlayers() []audioPlayer {
	return []audioPlayer{
		{"ffplay", func(a *entities.AudioArtifact) []string {
			if a.Format == entities.AudioFormatPCM {
				return []string{"-f", "s16le", "-ar", strconv.Itoa(a.SampleRate), "-ac", strconv.Itoa(max(a.Channels, 1)), "-nodisp", "-autoexit", "-loglevel", "quiet"}
			}
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
		}},
		{"play", func(a *entities.AudioArtifact) []string {
			if a.Format == entities.AudioFormatPCM {
				return []string{"-q", "-t", "raw", "-r", strconv.Itoa(a.SampleRate), "-e", "signed", "-b", "16", "-c", strconv.Itoa(max(a.Channels, 1))}
			}
			return []string{"-q"}
		}},
		{"aplay", func(a *entities.AudioArtifact) []string {
			switch a.Format {
			case entities.AudioFormatPCM:
				return []string{"-q", "-f", "S16_LE", "-r", strconv.Itoa(a.SampleRate), "-c", strconv.Itoa(max(a.Channels, 1))}
			case entities.AudioFormatWAV:
				return []string{"-q"}
			}
			// aplay cannot decode mp3
			return nil
		}},
		{"afplay", func(*entities.AudioArtifact) []string { return nil }},
	}
}

// Discard pretends to play and returns immediately
type Discard struct{}

// Play implements Player
func (Discard) Play(context.Context, *entities.AudioArtifact) error { return nil }
