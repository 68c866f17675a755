package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/logging"
)

func TestOpenAISynthesizer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s, err := NewOpenAISynthesizer("sk-test", "", logging.NewNop(),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "clip", "subtitle_0.mp3")
	require.NoError(t, s.Synthesize(t.Context(), SpeechRequest{Text: "Hello", Voice: "alloy", Rate: 9}, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
	assert.Equal(t, "tts-1", body["model"])
	assert.Equal(t, "Hello", body["input"])
	assert.Equal(t, "alloy", body["voice"])
	assert.Equal(t, 4.0, body["speed"])
}

func TestOpenAISynthesizerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	s, err := NewOpenAISynthesizer("sk-test", "tts-1-hd", logging.NewNop(),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "a.mp3")
	assert.Error(t, s.Synthesize(t.Context(), SpeechRequest{Text: "x", Voice: "alloy"}, out))
	assert.NoFileExists(t, out)
}

func TestNewOpenAISynthesizerRequiresKey(t *testing.T) {
	_, err := NewOpenAISynthesizer("", "", logging.NewNop())
	assert.Error(t, err)
}

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-2, 1},
		{0.1, 0.25},
		{1.2, 1.2},
		{5, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampSpeed(tt.in))
	}
}
