package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VIDEO_RESOLUTION", "")
	t.Setenv("ASSET_FAILURE_POLICY", "")
	t.Setenv("TTS_PROVIDER", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 24.0, cfg.VideoFPS)
	assert.Equal(t, 1080, cfg.VideoWidth)
	assert.Equal(t, 1920, cfg.VideoHeight)
	assert.Equal(t, 24000, cfg.AudioSampleRate)
	assert.Equal(t, 8.0, cfg.MusicCrossfadeSeconds)
	assert.Equal(t, 0.05, cfg.MusicWeight)
	assert.Equal(t, 1.0, cfg.VoiceWeight)
	assert.Equal(t, 1.0, cfg.FallbackDurationSeconds)
	assert.Equal(t, PolicyFailFast, cfg.AssetFailurePolicy)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VIDEO_RESOLUTION", "1920x1080")
	t.Setenv("VIDEO_FPS", "30")
	t.Setenv("TTS_API_KEYS", " k1 , ,k2")
	t.Setenv("ASSET_FAILURE_POLICY", "DEGRADE")
	t.Setenv("FALLBACK_DURATION_SECONDS", "1.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.VideoWidth)
	assert.Equal(t, 30.0, cfg.VideoFPS)
	assert.Equal(t, []string{"k1", "k2"}, cfg.TTSAPIKeys)
	assert.Equal(t, PolicyDegrade, cfg.AssetFailurePolicy)
	assert.Equal(t, 1.5, cfg.FallbackDurationSeconds)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fps", func(c *Config) { c.VideoFPS = 0 }},
		{"negative crossfade", func(c *Config) { c.MusicCrossfadeSeconds = -1 }},
		{"zero fallback", func(c *Config) { c.FallbackDurationSeconds = 0 }},
		{"unknown policy", func(c *Config) { c.AssetFailurePolicy = "retry" }},
		{"unknown provider", func(c *Config) { c.TTSProvider = "carrier-pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, validConfig().Validate())
}

func TestParseResolution(t *testing.T) {
	w, h, err := parseResolution("720X1280")
	require.NoError(t, err)
	assert.Equal(t, 720, w)
	assert.Equal(t, 1280, h)

	_, _, err = parseResolution("wide")
	assert.Error(t, err)
	_, _, err = parseResolution("0x10")
	assert.Error(t, err)
}

func TestLoadJobFile(t *testing.T) {
	dir := t.TempDir()
	manifest := `
output = "out/video.mp4"
lines = ["Hi.", "A much longer line of dialogue."]
fps = 30

[voice]
speed = 1.25

[background]
footage = "bg.mp4"
music = ["a.mp3", "/abs/b.mp3"]
crossfade_seconds = 4
`
	path := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	job, err := LoadJobFile(path, validConfig())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out", "video.mp4"), job.Output)
	assert.Equal(t, filepath.Join(dir, "bg.mp4"), job.Background.Footage)
	assert.Equal(t, []string{filepath.Join(dir, "a.mp3"), "/abs/b.mp3"}, job.Background.Music)
	assert.Equal(t, 30.0, job.FPS)
	assert.Equal(t, 1080, job.Width)
	assert.Equal(t, 1.25, job.Voice.Speed)
	assert.Equal(t, "voice-a", job.Voice.Name)
	assert.Equal(t, 4.0, *job.Background.CrossfadeSeconds)
	assert.Equal(t, 0.05, *job.Mix.MusicWeight)
	assert.Equal(t, 1.0, *job.Mix.VoiceWeight)
}

func TestLoadJobFileRejectsMissingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.toml")
	require.NoError(t, os.WriteFile(path, []byte(`lines = ["x"]`), 0o644))

	_, err := LoadJobFile(path, validConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output is required")
}

func validConfig() *Config {
	return &Config{
		VideoFPS:                24,
		VideoWidth:              1080,
		VideoHeight:             1920,
		AudioSampleRate:         24000,
		MusicCrossfadeSeconds:   8,
		MusicWeight:             0.05,
		VoiceWeight:             1.0,
		FallbackDurationSeconds: 1.0,
		FontSize:                64,
		FontColor:               "#ffffff",
		AssetFailurePolicy:      PolicyFailFast,
		TTSProvider:             "http",
		TTSVoice:                "voice-a",
		BackgroundFootage:       "/default/bg.mp4",
	}
}
