package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
	"github.com/satriahrh/charla/internal/audio"
)

// Names of the external steps of an exchange
const (
	StepTranscription = "transcription"
	StepTranslation   = "translation"
	StepCompletion    = "completion"
	StepSynthesis     = "synthesis"
	StepPlayback      = "playback"
)

const defaultServiceTimeout = 30 * time.Second

// Presenter shows the intermediate results of an exchange to the learner
type Presenter interface {
	Transcribed(text string)
	Translated(text string)
	// Play blocks until the artifact has been played. The artifact is
	// released by the caller afterwards.
	Play(ctx context.Context, artifact *entities.AudioArtifact) error
}

// ExchangeResult summarizes one exchange
type ExchangeResult struct {
	UserText    string   `json:"user_text"`
	Translation string   `json:"translation,omitempty"`
	Reply       string   `json:"reply"`
	Spoken      bool     `json:"spoken"`
	Skipped     []string `json:"skipped,omitempty"`
}

// ConversationConfig holds configuration for the ConversationService
// Optional fields with defaults:
// - TranscriptionRate: recorded clips are resampled to this rate (default: keep)
// - HistoryWindow: turns sent to the completion service after the system turn (default: all)
// - ServiceTimeout: bound on every external call (default: 30s)
// - TempDir: where recorded artifacts are written (default: os.TempDir())
type ConversationConfig struct {
	TranscriptionRate int
	HistoryWindow     int
	ServiceTimeout    time.Duration
	TempDir           string
}

// ConversationService runs one user/assistant exchange against a session
type ConversationService struct {
	speechToText repositories.SpeechToText
	translator   repositories.Translator
	llm          repositories.LargeLanguageModel
	textToSpeech repositories.TextToSpeech
	config       ConversationConfig
	logger       *zap.Logger
}

// NewConversationService creates a new conversation service. translator may
// be nil when no translation is wanted.
func NewConversationService(
	stt repositories.SpeechToText,
	translator repositories.Translator,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	config ConversationConfig,
	logger *zap.Logger,
) *ConversationService {
	if config.ServiceTimeout <= 0 {
		config.ServiceTimeout = defaultServiceTimeout
	}
	return &ConversationService{
		speechToText: stt,
		translator:   translator,
		llm:          llm,
		textToSpeech: tts,
		config:       config,
		logger:       logger,
	}
}

// Exchange records the learner's utterance, asks the language model for a
// reply, records it and speaks it. Once the user turn is accepted the session
// always grows by exactly two turns; later service failures are reported in
// ExchangeResult.Skipped instead of as an error.
func (s *ConversationService) Exchange(ctx context.Context, session *entities.Session, input entities.InputSource, presenter Presenter) (ExchangeResult, error) {
	logger := s.logger.With(zap.String("sessionID", session.ID))
	var result ExchangeResult

	text, err := s.resolveInput(ctx, input, logger)
	if err != nil {
		return result, err
	}
	if _, recorded := input.(entities.RecordedInput); recorded {
		presenter.Transcribed(text)
	}

	if err := session.AppendUserTurn(text); err != nil {
		return result, err
	}
	result.UserText = text

	if s.translator != nil {
		translation, err := s.call(ctx, func(ctx context.Context) (string, error) {
			return s.translator.Translate(ctx, text)
		})
		switch {
		case err != nil:
			logger.Warn("Translation failed", zap.Error(err))
			result.Skipped = append(result.Skipped, StepTranslation)
		case translation != "":
			result.Translation = translation
			presenter.Translated(translation)
		}
	}

	history := entities.WindowTurns(session.FullHistory(), s.config.HistoryWindow)
	reply, err := s.call(ctx, func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, history)
	})
	if err != nil {
		logger.Error("Completion failed", zap.Error(err))
		result.Skipped = append(result.Skipped, StepCompletion)
		reply = ""
	}
	session.AppendAssistantTurn(reply)
	result.Reply = reply

	logger.Info("Exchange recorded",
		zap.Int("historyLength", session.Len()),
		zap.Int("windowLength", len(history)),
		zap.Int("replyLength", len(reply)))

	if reply == "" {
		return result, nil
	}

	if step, err := s.speak(ctx, reply, presenter); err != nil {
		logger.Warn("Reply not spoken", zap.String("step", step), zap.Error(err))
		result.Skipped = append(result.Skipped, step)
	} else {
		result.Spoken = true
	}

	return result, nil
}

// resolveInput turns the submission into the learner's text
func (s *ConversationService) resolveInput(ctx context.Context, input entities.InputSource, logger *zap.Logger) (string, error) {
	switch in := input.(type) {
	case entities.TypedInput:
		return in.Text, nil
	case entities.RecordedInput:
		text, err := s.transcribe(ctx, in.Clip)
		if err != nil {
			logger.Error("Transcription failed", zap.Error(err))
			return "", domain.Unavailable(StepTranscription, err)
		}
		logger.Info("Transcription completed", zap.Int("textLength", len(text)))
		return text, nil
	default:
		return "", fmt.Errorf("unsupported input %T: %w", input, domain.ErrInvalidInput)
	}
}

func (s *ConversationService) transcribe(ctx context.Context, clip entities.AudioClip) (string, error) {
	if clip.Empty() {
		return "", errors.New("no audio captured")
	}
	if s.config.TranscriptionRate > 0 {
		resampled, err := audio.Resample(clip, s.config.TranscriptionRate)
		if err != nil {
			return "", err
		}
		clip = resampled
	}

	artifact, err := audio.WriteTempWAV(clip, s.config.TempDir)
	if err != nil {
		return "", err
	}
	defer artifact.Release()

	text, err := s.call(ctx, func(ctx context.Context) (string, error) {
		return s.speechToText.Transcribe(ctx, artifact)
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

// speak synthesizes and plays reply. The artifact is released on every path.
func (s *ConversationService) speak(ctx context.Context, reply string, presenter Presenter) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ServiceTimeout)
	artifact, err := s.textToSpeech.Synthesize(callCtx, reply)
	cancel()
	if err != nil {
		artifact.Release()
		return StepSynthesis, err
	}
	defer artifact.Release()

	if err := presenter.Play(ctx, artifact); err != nil {
		return StepPlayback, err
	}
	return "", nil
}

// call bounds one external request by the service timeout
func (s *ConversationService) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ServiceTimeout)
	defer cancel()
	return fn(callCtx)
}
