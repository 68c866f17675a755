package services

import (
	"context"

	"narrator/models"
)

// SpeechRequest is one synthesis call. Text has already been through
// RewritePauses; Rate is a multiplier where 1.0 is normal speed.
type SpeechRequest struct {
	Text  string
	Voice string
	Rate  float64
}

// SpeechSynthesizer writes a voice clip for req to outPath. A provider may
// produce a silent clip for degenerate text; callers must tolerate that.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest, outPath string) error
}

// ImageRequest is one subtitle image to rasterize.
type ImageRequest struct {
	Text     string
	MaxWidth int
	Style    models.SubtitleStyle
}

// ImageRenderer writes an image for req to outPath. The image height is
// chosen by the renderer.
type ImageRenderer interface {
	Render(ctx context.Context, req ImageRequest, outPath string) error
}

// DurationProber measures the playable length of a media file in seconds.
type DurationProber interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// ProgressFunc receives coarse progress updates during a render.
type ProgressFunc func(step string, percent int)

func (f ProgressFunc) report(step string, percent int) {
	if f != nil {
		f(step, percent)
	}
}
