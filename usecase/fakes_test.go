package usecase

import (
	"context"
	"os"
	"sync"

	"github.com/satriahrh/charla/domain/entities"
)

type fakeSTT struct {
	text  string
	err   error
	calls int
	paths []string
}

func (f *fakeSTT) Transcribe(_ context.Context, a *entities.AudioArtifact) (string, error) {
	f.calls++
	f.paths = append(f.paths, a.Path)
	if _, err := os.Stat(a.Path); err != nil {
		return "", err
	}
	return f.text, f.err
}

type fakeTranslator struct {
	text string
	err  error
}

func (f *fakeTranslator) Translate(context.Context, string) (string, error) {
	return f.text, f.err
}

type fakeLLM struct {
	reply    string
	err      error
	calls    int
	history  []entities.Turn
	block    chan struct{}
	entered  chan struct{}
	enterOne sync.Once
}

func (f *fakeLLM) Complete(ctx context.Context, history []entities.Turn) (string, error) {
	f.calls++
	f.history = history
	if f.block != nil {
		f.enterOne.Do(func() { close(f.entered) })
		<-f.block
	}
	return f.reply, f.err
}

type fakeTTS struct {
	dir       string
	err       error
	calls     int
	artifacts []*entities.AudioArtifact
}

func (f *fakeTTS) Synthesize(_ context.Context, text string) (*entities.AudioArtifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	file, err := os.CreateTemp(f.dir, "reply-*.mp3")
	if err != nil {
		return nil, err
	}
	file.WriteString(text)
	file.Close()
	a := &entities.AudioArtifact{Path: file.Name(), Format: entities.AudioFormatMP3}
	f.artifacts = append(f.artifacts, a)
	return a, nil
}

type fakePresenter struct {
	transcribed []string
	translated  []string
	played      int
	playErr     error
}

func (p *fakePresenter) Transcribed(text string) { p.transcribed = append(p.transcribed, text) }
func (p *fakePresenter) Translated(text string)  { p.translated = append(p.translated, text) }
func (p *fakePresenter) Play(_ context.Context, a *entities.AudioArtifact) error {
	p.played++
	if _, err := os.Stat(a.Path); err != nil {
		return err
	}
	return p.playErr
}
