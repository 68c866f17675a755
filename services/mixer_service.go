package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"narrator/logging"
	"narrator/models"
	"narrator/utils"
)

// Workspace file names for the audio stages.
const (
	silenceFile   = "silence.wav"
	musicFile     = "music.wav"
	voiceoverFile = "voiceover.wav"
	audioFile     = "audio.wav"
)

// BuildAudioMixSpec derives the mix from the timeline. Voice inserts are
// padded by their entry's start time; fallback entries and lines without a
// clip are left out. An empty timeline is rejected.
func BuildAudioMixSpec(tl models.Timeline, assets []models.LineAsset, bed models.MusicBed, weights models.MixWeights, sampleRate int) (models.AudioMixSpec, error) {
	if tl.FPS <= 0 {
		return models.AudioMixSpec{}, fmt.Errorf("%w: %g", ErrInvalidFPS, tl.FPS)
	}
	if len(tl.Entries) == 0 || tl.TotalFrames == 0 {
		return models.AudioMixSpec{}, ErrEmptyTimeline
	}

	voices := make(map[int]string, len(assets))
	for _, a := range assets {
		voices[a.LineIndex] = a.VoicePath
	}

	inserts := make([]models.VoiceInsert, 0, len(tl.Entries))
	for _, e := range tl.Entries {
		path := voices[e.LineIndex]
		if e.Fallback || path == "" {
			continue
		}
		inserts = append(inserts, models.VoiceInsert{
			LineIndex:        e.LineIndex,
			VoicePath:        path,
			PadOffsetSeconds: float64(e.StartFrame) / tl.FPS,
		})
	}

	return models.AudioMixSpec{
		SilenceSeconds: tl.Seconds(),
		SampleRate:     sampleRate,
		VoiceInserts:   inserts,
		MusicBed:       bed,
		Weights:        weights,
	}, nil
}

// AudioMixer produces the final audio track in four dependent stages:
// silence canvas, music bed, voice mix, final mix.
type AudioMixer struct {
	runner    utils.Runner
	soxBin    string
	ffmpegBin string
	stream    bool
	logger    *slog.Logger
}

// NewAudioMixer creates a mixer. Empty binaries default to sox and ffmpeg.
func NewAudioMixer(runner utils.Runner, soxBin, ffmpegBin string, stream bool, logger *slog.Logger) *AudioMixer {
	if soxBin == "" {
		soxBin = "sox"
	}
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &AudioMixer{
		runner:    runner,
		soxBin:    soxBin,
		ffmpegBin: ffmpegBin,
		stream:    stream,
		logger:    logging.NewComponentLogger(logger, "mixer"),
	}
}

// Mix runs every stage inside dir and returns the final audio path. music is
// the crossfade chain built for spec.MusicBed.
func (m *AudioMixer) Mix(ctx context.Context, dir string, spec models.AudioMixSpec, music models.FilterChain) (string, error) {
	if spec.SilenceSeconds <= 0 {
		return "", ErrEmptyTimeline
	}
	if spec.SampleRate <= 0 {
		return "", fmt.Errorf("sample rate must be positive, got %d", spec.SampleRate)
	}
	for _, track := range spec.MusicBed.Tracks {
		if !utils.FileExists(track) {
			return "", fmt.Errorf("%w: music track %s", ErrMissingInput, track)
		}
	}

	silence, err := m.silence(ctx, dir, spec)
	if err != nil {
		return "", fmt.Errorf("silence track: %w", err)
	}

	musicPath, err := m.musicBed(ctx, dir, spec, music)
	if err != nil {
		return "", fmt.Errorf("music bed: %w", err)
	}

	voice, err := m.voiceMix(ctx, dir, silence, spec)
	if err != nil {
		return "", fmt.Errorf("voice mix: %w", err)
	}

	out, err := m.finalMix(ctx, dir, spec, musicPath, voice)
	if err != nil {
		return "", fmt.Errorf("final mix: %w", err)
	}

	m.logger.Info("audio mixed",
		logging.String("path", out),
		logging.Float64("seconds", spec.SilenceSeconds),
		logging.Int("voice_inserts", len(spec.VoiceInserts)),
		logging.Int("music_tracks", len(spec.MusicBed.Tracks)),
	)
	return out, nil
}

func (m *AudioMixer) silence(ctx context.Context, dir string, spec models.AudioMixSpec) (string, error) {
	out := filepath.Join(dir, silenceFile)
	_, err := m.run(ctx, m.soxBin, out,
		"-n",
		"-r", strconv.Itoa(spec.SampleRate),
		out,
		"trim", "0.0", utils.FormatSeconds(spec.SilenceSeconds),
	)
	return out, err
}

// musicBed returns "" when there are no tracks.
func (m *AudioMixer) musicBed(ctx context.Context, dir string, spec models.AudioMixSpec, chain models.FilterChain) (string, error) {
	tracks := spec.MusicBed.Tracks
	if len(tracks) == 0 {
		m.logger.Info("no background music, final mix is voice only")
		return "", nil
	}

	out := filepath.Join(dir, musicFile)
	args := []string{"-y", "-vn"}
	for _, track := range tracks {
		args = append(args, "-i", track)
	}
	if len(chain.Stages) > 0 {
		args = append(args,
			"-filter_complex", utils.SerializeFilterChain(chain),
			"-map", "["+chain.Output+"]",
		)
	} else {
		args = append(args, "-map", "0:a")
	}
	args = append(args, "-ar", strconv.Itoa(spec.SampleRate), out)

	_, err := m.run(ctx, m.ffmpegBin, out, args...)
	return out, err
}

// voiceMix lays every insert over the silence canvas. With nothing to
// insert the canvas itself is the voice track.
func (m *AudioMixer) voiceMix(ctx context.Context, dir, silence string, spec models.AudioMixSpec) (string, error) {
	if len(spec.VoiceInserts) == 0 {
		m.logger.Warn("no voice clips to mix, using silence as voice track")
		return silence, nil
	}

	out := filepath.Join(dir, voiceoverFile)
	args := []string{"-m", "-v", "0", silence}
	for _, in := range spec.VoiceInserts {
		args = append(args, padInput(m.soxBin, in, spec.SampleRate))
	}
	args = append(args, "--multi-threaded", out)

	_, err := m.run(ctx, m.soxBin, out, args...)
	return out, err
}

func (m *AudioMixer) finalMix(ctx context.Context, dir string, spec models.AudioMixSpec, music, voice string) (string, error) {
	out := filepath.Join(dir, audioFile)
	var args []string
	if music != "" {
		args = append(args, "-m",
			"-v", formatNumber(spec.Weights.Music), music,
		)
	}
	args = append(args,
		"-v", formatNumber(spec.Weights.Voice), voice,
		out,
		"trim", "0.0", utils.FormatSeconds(spec.SilenceSeconds),
	)

	_, err := m.run(ctx, m.soxBin, out, args...)
	return out, err
}

func (m *AudioMixer) run(ctx context.Context, bin, output string, args ...string) (utils.Result, error) {
	return utils.RunChecked(ctx, m.runner, utils.Command{
		Name:   bin,
		Args:   args,
		Output: output,
		Stream: m.stream,
	})
}

// padInput is a sox input pipe that converts a clip to the canvas rate in
// mono and delays it by its pad offset. sox -m refuses mixed sample rates.
func padInput(soxBin string, in models.VoiceInsert, sampleRate int) string {
	return fmt.Sprintf("|%s %s -p rate %d channels 1 pad %s",
		shellQuote(soxBin), shellQuote(in.VoicePath), sampleRate, utils.FormatSeconds(in.PadOffsetSeconds))
}

// shellQuote single-quotes s for the shell sox uses to open input pipes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
