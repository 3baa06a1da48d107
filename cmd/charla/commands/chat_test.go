package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/internal/config"
	"github.com/satriahrh/charla/internal/playback"
)

func mockConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Providers = config.ProvidersConfig{
		Completion:  config.ProviderMock,
		STT:         config.ProviderMock,
		TTS:         config.ProviderMock,
		Translation: config.ProviderNone,
	}
	cfg.Audio.TempDir = t.TempDir()
	return cfg
}

// stopRecorder returns a short clip once stop is closed
type stopRecorder struct{}

func (stopRecorder) Record(ctx context.Context, stop <-chan struct{}) (entities.AudioClip, error) {
	select {
	case <-stop:
	case <-ctx.Done():
		return entities.AudioClip{}, ctx.Err()
	}
	return entities.AudioClip{SampleRate: 16000, Channels: 1, Samples: make([]int16, 1600)}, nil
}

func newTestChat(t *testing.T, out *bytes.Buffer) *chat {
	logger := zaptest.NewLogger(t)
	cfg := mockConfig(t)

	svc, err := newServices(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Failed to build services: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	return &chat{
		conversation: svc.conversation(cfg, logger),
		session:      entities.NewSession(preambleOrDefault("")),
		player:       playback.Discard{},
		out:          out,
		styles:       newStyles(),
		translation:  translationLabel("en"),
		logger:       logger,
	}
}

func feed(lines ...string) <-chan string {
	ch := make(chan string, len(lines))
	for _, line := range lines {
		ch <- line
	}
	close(ch)
	return ch
}

func TestChat_TextMode(t *testing.T) {
	var out bytes.Buffer
	c := newTestChat(t, &out)

	if err := c.run(context.Background(), feed("Me llamo Ana", "   ", "/quit", "never read")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if c.session.Len() != 3 {
		t.Errorf("Expected 3 turns, got %d", c.session.Len())
	}

	output := out.String()
	for _, want := range []string{"You:", "Me llamo Ana", "Assistant:", "Please say or type something.", "¡Hasta luego!"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestChat_VoiceMode(t *testing.T) {
	var out bytes.Buffer
	c := newTestChat(t, &out)
	c.recorder = stopRecorder{}

	// start, stop, leave
	if err := c.run(context.Background(), feed("", "", "/quit")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	history := c.session.FullHistory()
	if len(history) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(history))
	}
	if history[1].Content != "Hola, ¿cómo estás?" {
		t.Errorf("Expected transcribed user turn, got %q", history[1].Content)
	}
	if !strings.Contains(out.String(), "You said:") {
		t.Errorf("Expected transcription echo, got:\n%s", out.String())
	}
}

func TestChat_EndOfInput(t *testing.T) {
	var out bytes.Buffer
	c := newTestChat(t, &out)

	if err := c.run(context.Background(), feed()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.session.Len() != 1 {
		t.Errorf("Expected only the system turn, got %d", c.session.Len())
	}
}

func TestNewServices_Translation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	cfg := mockConfig(t)
	svc, err := newServices(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	translation, err := svc.translator.Translate(context.Background(), "Hola")
	if err != nil || translation != "" {
		t.Errorf("Expected no translation, got %q, %v", translation, err)
	}

	cfg.Providers.Translation = config.ProviderLLM
	svc, err = newServices(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	translation, err = svc.translator.Translate(context.Background(), "Hola")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if translation == "" {
		t.Error("Expected the language model to produce a translation")
	}
}

func TestNewServices_UnknownProvider(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Providers.TTS = "carrier-pigeon"

	if _, err := newServices(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
