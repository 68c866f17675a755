package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"narrator/logging"
	"narrator/models"
	"narrator/utils"
)

// FFProbe measures durations with the ffprobe binary.
type FFProbe struct {
	runner utils.Runner
	binary string
}

// NewFFProbe creates a prober. An empty binary defaults to "ffprobe".
func NewFFProbe(runner utils.Runner, binary string) *FFProbe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &FFProbe{runner: runner, binary: binary}
}

// Probe returns the container duration of path. Zero or negative durations
// are reported as ErrNoVoiceClip.
func (p *FFProbe) Probe(ctx context.Context, path string) (float64, error) {
	res, err := utils.RunChecked(ctx, p.runner, utils.Command{
		Name:    p.binary,
		Args:    []string{"-v", "error", "-hide_banner", "-show_entries", "format=duration", "-of", "json", "--", path},
		Capture: true,
	})
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbeDuration(res.Stdout)
}

func parseProbeDuration(output string) (float64, error) {
	duration := gjson.Get(output, "format.duration")
	if !duration.Exists() {
		return 0, fmt.Errorf("%w: ffprobe reported no duration", ErrNoVoiceClip)
	}
	seconds := duration.Float()
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: duration %q", ErrNoVoiceClip, duration.String())
	}
	return seconds, nil
}

// ProbedDuration is the measured (or substituted) length of one line.
type ProbedDuration struct {
	LineIndex int
	Seconds   float64
	// Fallback is set when measurement failed and the fallback was used;
	// the line's voice clip must not be mixed.
	Fallback bool
}

// DurationProbe runs the probe phase over every line concurrently and
// recovers individual failures with a fixed fallback duration.
type DurationProbe struct {
	prober      DurationProber
	fallback    float64
	concurrency int
	logger      *slog.Logger
}

// NewDurationProbe creates the probe phase. concurrency <= 0 means unbounded.
func NewDurationProbe(prober DurationProber, fallbackSeconds float64, concurrency int, logger *slog.Logger) *DurationProbe {
	if fallbackSeconds <= 0 {
		fallbackSeconds = 1.0
	}
	return &DurationProbe{
		prober:      prober,
		fallback:    fallbackSeconds,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "prober"),
	}
}

// ProbeAll measures every line's voice clip. The result is indexed like
// lines. A line without a voice clip, or whose clip fails to probe, gets the
// fallback duration and a warning. Only context cancellation is an error.
func (p *DurationProbe) ProbeAll(ctx context.Context, lines []models.Line, assets []models.LineAsset) ([]ProbedDuration, error) {
	voices := make(map[int]string, len(assets))
	for _, a := range assets {
		voices[a.LineIndex] = a.VoicePath
	}

	out := make([]ProbedDuration, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, line := range lines {
		g.Go(func() error {
			out[i] = p.probeLine(gctx, line, voices[line.Index])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *DurationProbe) probeLine(ctx context.Context, line models.Line, voicePath string) ProbedDuration {
	err := fmt.Errorf("%w: no clip was produced", ErrNoVoiceClip)
	if voicePath != "" {
		var seconds float64
		seconds, err = p.prober.Probe(ctx, voicePath)
		if err == nil && seconds <= 0 {
			err = fmt.Errorf("%w: duration %g", ErrNoVoiceClip, seconds)
		}
		if err == nil {
			return ProbedDuration{LineIndex: line.Index, Seconds: seconds}
		}
	}

	p.logger.Warn("empty voice clip, using fallback duration",
		logging.Int(logging.FieldLineIndex, line.Index),
		logging.String("text", line.Text),
		logging.String("path", voicePath),
		logging.Float64("fallback_seconds", p.fallback),
		logging.Error(err),
	)
	return ProbedDuration{LineIndex: line.Index, Seconds: p.fallback, Fallback: true}
}
