package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"narrator/logging"
)

// OpenAI accepts speeds between these bounds.
const (
	minOpenAISpeed = 0.25
	maxOpenAISpeed = 4.0
)

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAISynthesizer creates a synthesizer. Extra options (base URL,
// retries) are passed to the client.
func NewOpenAISynthesizer(apiKey, model string, logger *slog.Logger, opts ...option.RequestOption) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAISynthesizer{
		client: openai.NewClient(clientOpts...),
		model:  model,
		logger: logging.NewComponentLogger(logger, "tts"),
	}, nil
}

// Synthesize writes an mp3 clip for req to outPath.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req SpeechRequest, outPath string) error {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(clampSpeed(req.Rate)),
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write audio: %w", err)
	}
	s.logger.Debug("speech synthesized",
		logging.String("path", outPath),
		logging.Int("bytes", int(n)),
	)
	return f.Close()
}

func clampSpeed(rate float64) float64 {
	switch {
	case rate <= 0:
		return 1.0
	case rate < minOpenAISpeed:
		return minOpenAISpeed
	case rate > maxOpenAISpeed:
		return maxOpenAISpeed
	}
	return rate
}
