// Package config loads charla settings from an optional .env file, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Provider names
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderGoogle     = "google"
	ProviderElevenLabs = "elevenlabs"
	ProviderMock       = "mock"
	ProviderLLM        = "llm"
	ProviderNone       = "none"
)

// Config is the full charla configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Conversation ConversationConfig `yaml:"conversation"`
	Audio        AudioConfig        `yaml:"audio"`
	Providers    ProvidersConfig    `yaml:"providers"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	ElevenLabs   ElevenLabsConfig   `yaml:"elevenlabs"`
	Google       GoogleConfig       `yaml:"google"`
}

type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	JWTSecret          string        `yaml:"jwt_secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	ICEServers         []string      `yaml:"ice_servers"`
}

type ConversationConfig struct {
	Language          string        `yaml:"language"`
	TranslationTarget string        `yaml:"translation_target"`
	Preamble          string        `yaml:"preamble"`
	HistoryWindow     int           `yaml:"history_window"`
	ServiceTimeout    time.Duration `yaml:"service_timeout"`
}

type AudioConfig struct {
	SampleRate     int           `yaml:"sample_rate"`
	MaxRecordTime  time.Duration `yaml:"max_record_time"`
	CaptureCommand string        `yaml:"capture_command"`
	TempDir        string        `yaml:"temp_dir"`
}

// ProvidersConfig selects the implementation behind each port
type ProvidersConfig struct {
	Completion  string `yaml:"completion"`
	STT         string `yaml:"stt"`
	TTS         string `yaml:"tts"`
	Translation string `yaml:"translation"`
}

type OpenAIConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	ChatModel          string `yaml:"chat_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	SpeechModel        string `yaml:"speech_model"`
	Voice              string `yaml:"voice"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	ModelID string `yaml:"model_id"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:               ":8080",
			TokenTTL:           24 * time.Hour,
			SessionIdleTimeout: 30 * time.Minute,
			CleanupInterval:    5 * time.Minute,
			ICEServers:         []string{"stun:stun.l.google.com:19302"},
		},
		Conversation: ConversationConfig{
			Language:          "es",
			TranslationTarget: "en",
			ServiceTimeout:    30 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			MaxRecordTime: 60 * time.Second,
		},
		Providers: ProvidersConfig{
			Completion:  ProviderOpenAI,
			STT:         ProviderOpenAI,
			TTS:         ProviderOpenAI,
			Translation: ProviderLLM,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. A .env file in
// the working directory is loaded into the environment first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Addr = ":" + port
	}
	str("CHARLA_ADDR", &c.Server.Addr)
	str("CHARLA_JWT_SECRET", &c.Server.JWTSecret)
	dur("CHARLA_TOKEN_TTL", &c.Server.TokenTTL)
	dur("CHARLA_SESSION_IDLE_TIMEOUT", &c.Server.SessionIdleTimeout)

	str("CHARLA_LANGUAGE", &c.Conversation.Language)
	str("CHARLA_TRANSLATION_TARGET", &c.Conversation.TranslationTarget)
	str("CHARLA_PREAMBLE", &c.Conversation.Preamble)
	num("CHARLA_HISTORY_WINDOW", &c.Conversation.HistoryWindow)
	dur("CHARLA_SERVICE_TIMEOUT", &c.Conversation.ServiceTimeout)

	num("CHARLA_SAMPLE_RATE", &c.Audio.SampleRate)
	dur("CHARLA_MAX_RECORD_TIME", &c.Audio.MaxRecordTime)
	str("CHARLA_CAPTURE_COMMAND", &c.Audio.CaptureCommand)
	str("CHARLA_TEMP_DIR", &c.Audio.TempDir)

	str("CHARLA_COMPLETION_PROVIDER", &c.Providers.Completion)
	str("CHARLA_STT_PROVIDER", &c.Providers.STT)
	str("CHARLA_TTS_PROVIDER", &c.Providers.TTS)
	str("CHARLA_TRANSLATION_PROVIDER", &c.Providers.Translation)

	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("ELEVEN_LABS_API_KEY", &c.ElevenLabs.APIKey)
	str("ELEVEN_LABS_VOICE_ID", &c.ElevenLabs.VoiceID)
	str("ELEVEN_LABS_MODEL_ID", &c.ElevenLabs.ModelID)
	str("GOOGLE_APPLICATION_CREDENTIALS", &c.Google.CredentialsFile)

	return errors.Join(errs...)
}

// Validate checks provider names, credentials of the selected providers and
// numeric ranges
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown provider %q (allowed: %v)", field, value, allowed))
	}

	oneOf("providers.completion", c.Providers.Completion, ProviderOpenAI, ProviderGemini, ProviderMock)
	oneOf("providers.stt", c.Providers.STT, ProviderOpenAI, ProviderGoogle, ProviderMock)
	oneOf("providers.tts", c.Providers.TTS, ProviderOpenAI, ProviderElevenLabs, ProviderMock)
	oneOf("providers.translation", c.Providers.Translation, ProviderLLM, ProviderNone)

	if c.usesOpenAI() && c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required by the selected providers"))
	}
	if c.Providers.Completion == ProviderGemini && c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required by the gemini completion provider"))
	}
	if c.Providers.TTS == ProviderElevenLabs && c.ElevenLabs.APIKey == "" {
		errs = append(errs, errors.New("ELEVEN_LABS_API_KEY is required by the elevenlabs speech provider"))
	}

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.MaxRecordTime <= 0 {
		errs = append(errs, fmt.Errorf("audio.max_record_time must be positive, got %s", c.Audio.MaxRecordTime))
	}
	if c.Conversation.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("conversation.history_window must not be negative, got %d", c.Conversation.HistoryWindow))
	}
	if c.Conversation.ServiceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("conversation.service_timeout must be positive, got %s", c.Conversation.ServiceTimeout))
	}
	if c.Conversation.Language == "" {
		errs = append(errs, errors.New("conversation.language is required"))
	}

	return errors.Join(errs...)
}

// TranslationEnabled reports whether user turns get a display translation
func (c Config) TranslationEnabled() bool {
	return c.Providers.Translation == ProviderLLM &&
		c.Conversation.TranslationTarget != "" &&
		c.Conversation.TranslationTarget != c.Conversation.Language
}

func (c Config) usesOpenAI() bool {
	return c.Providers.Completion == ProviderOpenAI ||
		c.Providers.STT == ProviderOpenAI ||
		c.Providers.TTS == ProviderOpenAI
}
