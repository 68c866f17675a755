package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Asset failure policies.
const (
	PolicyFailFast = "fail_fast"
	PolicyDegrade  = "degrade"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	TempDir     string
	OutputDir   string
	CORSOrigins []string
	JWTSecret   string
	DatabaseURL string

	// Logging
	LogLevel  string
	LogFormat string

	// External tools
	FFmpegBin  string
	FFprobeBin string
	SoxBin     string

	// Render settings
	AudioSampleRate         int
	VideoFPS                float64
	VideoWidth              int
	VideoHeight             int
	MusicCrossfadeSeconds   float64
	MusicWeight             float64
	VoiceWeight             float64
	FallbackDurationSeconds float64
	AssetFailurePolicy      string
	StreamToolOutput        bool

	// Subtitles
	FontPath  string
	FontSize  float64
	FontColor string

	// Speech synthesis
	TTSProvider              string
	TTSEndpoint              string
	TTSAPIKeys               []string
	TTSVoice                 string
	TTSSSML                  bool
	OpenAIAPIKey             string
	OpenAITTSModel           string
	MaxConcurrentTTSRequests int

	// Background media
	BackgroundFootage string
	BackgroundMusic   []string
	PexelsAPIKey      string

	// Scheduling and publishing
	ScheduleCron       string
	ScheduleSubreddit  string
	ScheduleTimeFrame  string
	YouTubeSecretPath  string
	YouTubeTokenPath   string
	YouTubePrivacy     string
	YouTubeCategoryID  string
	PublishAfterRender bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	width, height, err := parseResolution(getEnv("VIDEO_RESOLUTION", "1080x1920"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		TempDir:     getEnv("TEMP_DIR", "./temp"),
		OutputDir:   getEnv("OUTPUT_DIR", "./output"),
		CORSOrigins: parseList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		JWTSecret:   getEnv("API_JWT_SECRET", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		FFmpegBin:  getEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin: getEnv("FFPROBE_BIN", "ffprobe"),
		SoxBin:     getEnv("SOX_BIN", "sox"),

		AudioSampleRate:         getEnvAsInt("AUDIO_SAMPLE_RATE", 24000),
		VideoFPS:                getEnvAsFloat("VIDEO_FPS", 24),
		VideoWidth:              width,
		VideoHeight:             height,
		MusicCrossfadeSeconds:   getEnvAsFloat("MUSIC_CROSSFADE_SECONDS", 8),
		MusicWeight:             getEnvAsFloat("MUSIC_WEIGHT", 0.05),
		VoiceWeight:             getEnvAsFloat("VOICE_WEIGHT", 1.0),
		FallbackDurationSeconds: getEnvAsFloat("FALLBACK_DURATION_SECONDS", 1.0),
		AssetFailurePolicy:      strings.ToLower(getEnv("ASSET_FAILURE_POLICY", PolicyFailFast)),
		StreamToolOutput:        getEnvAsBool("STREAM_TOOL_OUTPUT", true),

		FontPath:  getEnv("FONT_PATH", ""),
		FontSize:  getEnvAsFloat("FONT_SIZE", 64),
		FontColor: getEnv("FONT_COLOR", "#ffffff"),

		TTSProvider:              strings.ToLower(getEnv("TTS_PROVIDER", "http")),
		TTSEndpoint:              getEnv("TTS_ENDPOINT", ""),
		TTSAPIKeys:               parseList(getEnv("TTS_API_KEYS", "")),
		TTSVoice:                 getEnv("TTS_VOICE", "en-US-ChristopherNeural"),
		TTSSSML:                  getEnvAsBool("TTS_SSML", false),
		OpenAIAPIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAITTSModel:           getEnv("OPENAI_TTS_MODEL", "tts-1"),
		MaxConcurrentTTSRequests: getEnvAsInt("MAX_CONCURRENT_TTS_REQUESTS", 0),

		BackgroundFootage: getEnv("BACKGROUND_FOOTAGE", ""),
		BackgroundMusic:   parseList(getEnv("BACKGROUND_MUSIC", "")),
		PexelsAPIKey:      getEnv("PEXELS_API_KEY", ""),

		ScheduleCron:       getEnv("SCHEDULE_CRON", ""),
		ScheduleSubreddit:  getEnv("SCHEDULE_SUBREDDIT", ""),
		ScheduleTimeFrame:  getEnv("SCHEDULE_TIME_FRAME", "day"),
		YouTubeSecretPath:  getEnv("YOUTUBE_CLIENT_SECRET", "./youtube/client_secret.json"),
		YouTubeTokenPath:   getEnv("YOUTUBE_TOKEN_PATH", "./youtube/token.json"),
		YouTubePrivacy:     getEnv("YOUTUBE_PRIVACY", "unlisted"),
		YouTubeCategoryID:  getEnv("YOUTUBE_CATEGORY_ID", "23"),
		PublishAfterRender: getEnvAsBool("PUBLISH_AFTER_RENDER", false),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.VideoFPS <= 0 {
		return errors.New("VIDEO_FPS must be positive")
	}
	if c.AudioSampleRate <= 0 {
		return errors.New("AUDIO_SAMPLE_RATE must be positive")
	}
	if c.MusicCrossfadeSeconds < 0 {
		return errors.New("MUSIC_CROSSFADE_SECONDS must not be negative")
	}
	if c.FallbackDurationSeconds <= 0 {
		return errors.New("FALLBACK_DURATION_SECONDS must be positive")
	}
	if c.FontSize <= 0 {
		return errors.New("FONT_SIZE must be positive")
	}
	switch c.AssetFailurePolicy {
	case PolicyFailFast, PolicyDegrade:
	default:
		return fmt.Errorf("ASSET_FAILURE_POLICY must be %q or %q", PolicyFailFast, PolicyDegrade)
	}
	switch c.TTSProvider {
	case "http", "openai":
	default:
		return fmt.Errorf("TTS_PROVIDER %q is not supported", c.TTSProvider)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseResolution(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("VIDEO_RESOLUTION %q must look like WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("VIDEO_RESOLUTION %q has an invalid width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("VIDEO_RESOLUTION %q has an invalid height", s)
	}
	return width, height, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %s, FPS: %g, Size: %dx%d, TTS: %s, Policy: %s}",
		c.Port, c.VideoFPS, c.VideoWidth, c.VideoHeight, c.TTSProvider, c.AssetFailurePolicy)
}
