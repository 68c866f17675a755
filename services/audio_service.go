package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"narrator/logging"
	"narrator/utils"
)

// HTTPSynthesizer calls a JSON text-to-speech endpoint, rotating through a
// pool of API keys.
type HTTPSynthesizer struct {
	apiPool    *utils.APIKeyPool
	httpClient *http.Client
	endpoint   string
	ssml       bool
	format     string
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     *slog.Logger
}

// NewHTTPSynthesizer creates a synthesizer. When ssml is set, text is sent
// wrapped in a prosody element and the speed field stays at 1.0.
func NewHTTPSynthesizer(apiPool *utils.APIKeyPool, endpoint string, ssml bool, logger *slog.Logger) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		apiPool: apiPool,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		endpoint:   endpoint,
		ssml:       ssml,
		format:     "mp3",
		maxRetries: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
		logger: logging.NewComponentLogger(logger, "tts"),
	}
}

// TTSRequest is the provider request body
type TTSRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
	Format string  `json:"format"`
}

// TTSResponse is the provider's JSON reply; Async names a URL to fetch the
// audio from.
type TTSResponse struct {
	Async   string `json:"async,omitempty"`
	Error   int    `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Synthesize writes the clip for req to outPath, retrying with a fresh key
// after each failure.
func (hs *HTTPSynthesizer) Synthesize(ctx context.Context, req SpeechRequest, outPath string) error {
	if hs.endpoint == "" {
		return errors.New("tts endpoint is not configured")
	}

	body := TTSRequest{Text: req.Text, Voice: req.Voice, Speed: req.Rate, Format: hs.format}
	if hs.ssml {
		body.Text = WrapProsody(req.Text, req.Rate)
		body.Speed = 1.0
	}

	var lastErr error
	for attempt := 0; attempt < hs.maxRetries; attempt++ {
		apiKey, err := hs.apiPool.Acquire()
		if err != nil {
			return fmt.Errorf("no available API keys: %w", err)
		}

		audioData, err := hs.call(ctx, body, apiKey)
		if err == nil {
			return saveAudioFile(audioData, outPath)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		hs.apiPool.MarkFailed(apiKey, 60*time.Second)
		lastErr = err
		hs.logger.Warn("tts request failed",
			logging.Int("attempt", attempt+1),
			logging.Error(err),
		)
		if attempt == hs.maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hs.backoff(attempt)):
		}
	}

	return fmt.Errorf("failed after %d retries: %w", hs.maxRetries, lastErr)
}

func (hs *HTTPSynthesizer) call(ctx context.Context, body TTSRequest, apiKey string) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hs.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", apiKey)

	resp, err := hs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp TTSResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("API error: %s (code: %d)", errResp.Message, errResp.Error)
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	// Either JSON pointing at the audio, or the audio itself
	var apiResp TTSResponse
	if json.Unmarshal(data, &apiResp) == nil && apiResp.Async != "" {
		return hs.download(ctx, apiResp.Async)
	}
	return data, nil
}

func (hs *HTTPSynthesizer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func saveAudioFile(data []byte, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
