package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// JobFile is the TOML manifest describing a single render.
type JobFile struct {
	Output string   `toml:"output"`
	Title  string   `toml:"title"`
	Lines  []string `toml:"lines"`
	Text   string   `toml:"text"`
	FPS    float64  `toml:"fps"`
	Width  int      `toml:"width"`
	Height int      `toml:"height"`

	Font       JobFont       `toml:"font"`
	Voice      JobVoice      `toml:"voice"`
	Background JobBackground `toml:"background"`
	Mix        JobMix        `toml:"mix"`
}

// JobFont configures subtitle rendering.
type JobFont struct {
	Path  string  `toml:"path"`
	Size  float64 `toml:"size"`
	Color string  `toml:"color"`
}

// JobVoice configures speech synthesis.
type JobVoice struct {
	Name  string  `toml:"name"`
	Speed float64 `toml:"speed"`
}

// JobBackground configures footage and the music bed.
type JobBackground struct {
	Footage          string   `toml:"footage"`
	StockKeywords    string   `toml:"stock_keywords"`
	Music            []string `toml:"music"`
	Shuffle          bool     `toml:"shuffle"`
	CrossfadeSeconds *float64 `toml:"crossfade_seconds"`
}

// JobMix configures relative volumes of the final mix.
type JobMix struct {
	MusicWeight *float64 `toml:"music_weight"`
	VoiceWeight *float64 `toml:"voice_weight"`
}

// LoadJobFile parses a manifest, fills unset values from cfg, and resolves
// relative paths against the manifest's directory.
func LoadJobFile(path string, cfg *Config) (JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JobFile{}, fmt.Errorf("read job file: %w", err)
	}
	var job JobFile
	if err := toml.Unmarshal(data, &job); err != nil {
		return JobFile{}, fmt.Errorf("parse job file %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return JobFile{}, err
	}
	job.resolvePaths(base)
	job.ApplyDefaults(cfg)

	if err := job.Validate(); err != nil {
		return JobFile{}, fmt.Errorf("job file %s: %w", path, err)
	}
	return job, nil
}

// ApplyDefaults copies process-wide defaults into unset manifest fields.
func (j *JobFile) ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if j.FPS == 0 {
		j.FPS = cfg.VideoFPS
	}
	if j.Width == 0 {
		j.Width = cfg.VideoWidth
	}
	if j.Height == 0 {
		j.Height = cfg.VideoHeight
	}
	if j.Font.Path == "" {
		j.Font.Path = cfg.FontPath
	}
	if j.Font.Size == 0 {
		j.Font.Size = cfg.FontSize
	}
	if j.Font.Color == "" {
		j.Font.Color = cfg.FontColor
	}
	if j.Voice.Name == "" {
		j.Voice.Name = cfg.TTSVoice
	}
	if j.Voice.Speed == 0 {
		j.Voice.Speed = 1.0
	}
	if j.Background.Footage == "" && j.Background.StockKeywords == "" {
		j.Background.Footage = cfg.BackgroundFootage
	}
	if len(j.Background.Music) == 0 {
		j.Background.Music = append([]string(nil), cfg.BackgroundMusic...)
	}
	if j.Background.CrossfadeSeconds == nil {
		v := cfg.MusicCrossfadeSeconds
		j.Background.CrossfadeSeconds = &v
	}
	if j.Mix.MusicWeight == nil {
		v := cfg.MusicWeight
		j.Mix.MusicWeight = &v
	}
	if j.Mix.VoiceWeight == nil {
		v := cfg.VoiceWeight
		j.Mix.VoiceWeight = &v
	}
}

// Validate checks the manifest after defaults were applied.
func (j *JobFile) Validate() error {
	if strings.TrimSpace(j.Output) == "" {
		return errors.New("output is required")
	}
	if len(j.Lines) > 0 && strings.TrimSpace(j.Text) != "" {
		return errors.New("set either lines or text, not both")
	}
	if j.FPS <= 0 {
		return errors.New("fps must be positive")
	}
	if j.Width <= 0 || j.Height <= 0 {
		return errors.New("width and height must be positive")
	}
	if j.Voice.Speed <= 0 {
		return errors.New("voice speed must be positive")
	}
	if j.Background.Footage == "" && j.Background.StockKeywords == "" {
		return errors.New("background footage or stock_keywords is required")
	}
	if j.Background.CrossfadeSeconds != nil && *j.Background.CrossfadeSeconds < 0 {
		return errors.New("crossfade_seconds must not be negative")
	}
	return nil
}

func (j *JobFile) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	j.Output = resolve(j.Output)
	j.Font.Path = resolve(j.Font.Path)
	j.Background.Footage = resolve(j.Background.Footage)
	for i, m := range j.Background.Music {
		j.Background.Music[i] = resolve(m)
	}
}
