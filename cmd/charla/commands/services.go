package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/adapters/llm"
	"github.com/satriahrh/charla/adapters/stt"
	"github.com/satriahrh/charla/adapters/tts"
	"github.com/satriahrh/charla/domain/repositories"
	"github.com/satriahrh/charla/internal/config"
	"github.com/satriahrh/charla/usecase"
)

// services are the provider adapters selected by the configuration
type services struct {
	speechToText repositories.SpeechToText
	translator   repositories.Translator
	llm          repositories.LargeLanguageModel
	textToSpeech repositories.TextToSpeech

	closers []func() error
}

func (s *services) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// conversation wires the adapters into the orchestrator
func (s *services) conversation(cfg config.Config, logger *zap.Logger) *usecase.ConversationService {
	return usecase.NewConversationService(
		s.speechToText,
		s.translator,
		s.llm,
		s.textToSpeech,
		usecase.ConversationConfig{
			TranscriptionRate: cfg.Audio.SampleRate,
			HistoryWindow:     cfg.Conversation.HistoryWindow,
			ServiceTimeout:    cfg.Conversation.ServiceTimeout,
			TempDir:           cfg.Audio.TempDir,
		},
		logger,
	)
}

// googleLanguageCodes maps the conversation language to a BCP-47 code
var googleLanguageCodes = map[string]string{
	"es": "es-ES",
	"en": "en-US",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
	"pt": "pt-BR",
}

// newServices builds the adapters named by cfg.Providers. cfg must be valid.
func newServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	s := &services{}

	var openaiClient *openai.Client
	openAI := func() *openai.Client {
		if openaiClient == nil {
			opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
			if cfg.OpenAI.BaseURL != "" {
				opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
			}
			client := openai.NewClient(opts...)
			openaiClient = &client
		}
		return openaiClient
	}

	switch cfg.Providers.Completion {
	case config.ProviderOpenAI:
		model, err := llm.NewOpenAILLM(openAI(), llm.OpenAIConfig{Model: cfg.OpenAI.ChatModel}, logger)
		if err != nil {
			return nil, err
		}
		s.llm = model
	case config.ProviderGemini:
		model, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.llm = model
	case config.ProviderMock:
		s.llm = llm.NewMockLLM()
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Providers.Completion)
	}

	switch cfg.Providers.STT {
	case config.ProviderOpenAI:
		s.speechToText = stt.NewWhisperSpeechToText(openAI(), stt.WhisperConfig{
			Model:    cfg.OpenAI.TranscriptionModel,
			Language: cfg.Conversation.Language,
		}, logger)
	case config.ProviderGoogle:
		if cfg.Google.CredentialsFile != "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Google.CredentialsFile)
		}
		languageCode, ok := googleLanguageCodes[cfg.Conversation.Language]
		if !ok {
			languageCode = cfg.Conversation.Language
		}
		recognizer, err := stt.NewGoogleSpeechToText(ctx, languageCode, logger)
		if err != nil {
			return nil, err
		}
		s.speechToText = recognizer
		s.closers = append(s.closers, recognizer.Close)
	case config.ProviderMock:
		s.speechToText = stt.NewMockSpeechToText(logger)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Providers.STT)
	}

	switch cfg.Providers.TTS {
	case config.ProviderOpenAI:
		speaker, err := tts.NewOpenAITTS(openAI(), tts.OpenAIConfig{
			Model:   cfg.OpenAI.SpeechModel,
			Voice:   cfg.OpenAI.Voice,
			TempDir: cfg.Audio.TempDir,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.textToSpeech = speaker
	case config.ProviderElevenLabs:
		speaker, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabs.APIKey,
			VoiceID:      cfg.ElevenLabs.VoiceID,
			ModelID:      cfg.ElevenLabs.ModelID,
			LanguageCode: cfg.Conversation.Language,
			TempDir:      cfg.Audio.TempDir,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.textToSpeech = speaker
	case config.ProviderMock:
		s.textToSpeech = tts.NewMockTextToSpeech(cfg.Audio.TempDir)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Providers.TTS)
	}

	if cfg.TranslationEnabled() {
		s.translator = llm.NewTranslator(s.llm, cfg.Conversation.Language, cfg.Conversation.TranslationTarget, logger)
	} else {
		s.translator = llm.NoopTranslator{}
	}

	return s, nil
}
