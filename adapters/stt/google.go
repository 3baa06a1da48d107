package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

const defaultLanguageCode = "es-ES"

// GoogleSpeechToText implements SpeechToText using Google Cloud Speech-to-Text.
// Credentials come from Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleSpeechToText struct {
	client       *speech.Client
	languageCode string
	logger       *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud Speech client
func NewGoogleSpeechToText(ctx context.Context, languageCode string, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	if languageCode == "" {
		languageCode = defaultLanguageCode
		logger.Info("Using default language code", zap.String("languageCode", languageCode))
	}

	return &GoogleSpeechToText{
		client:       client,
		languageCode: languageCode,
		logger:       logger,
	}, nil
}

// Transcribe implements repositories.SpeechToText
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audio *entities.AudioArtifact) (string, error) {
	encoding, err := getAudioEncoding(audio.Format)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(audio.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio artifact: %w", err)
	}

	g.logger.Info("Transcribing audio",
		zap.Int("audioSize", len(data)),
		zap.Int("sampleRate", audio.SampleRate),
		zap.String("languageCode", g.languageCode))

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          encoding,
			SampleRateHertz:   int32(audio.SampleRate),
			AudioChannelCount: int32(max(audio.Channels, 1)),
			LanguageCode:      g.languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	return joinTranscripts(resp.Results), nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// joinTranscripts takes the best alternative of every result
func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	var parts []string
	for _, result := range results {
		if len(result.Alternatives) > 0 {
			if t := strings.TrimSpace(result.Alternatives[0].Transcript); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

// getAudioEncoding maps artifact formats to the Speech API enum
func getAudioEncoding(format entities.AudioFormat) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch format {
	case entities.AudioFormatWAV, entities.AudioFormatPCM:
		return speechpb.RecognitionConfig_LINEAR16, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", format)
	}
}
