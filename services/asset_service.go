package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"narrator/config"
	"narrator/logging"
	"narrator/models"
)

// AssetParams are the per-render inputs to asset generation.
type AssetParams struct {
	// Dir receives subtitle_<i>.png and subtitle_<i>.mp3.
	Dir      string
	MaxWidth int
	Style    models.SubtitleStyle
	Voice    string
	Rate     float64
}

// LineResult is the outcome of one line's requests. Image and voice succeed
// or fail independently.
type LineResult struct {
	Asset    models.LineAsset
	ImageErr error
	VoiceErr error
}

// Err returns the line's failures, or nil when both artifacts exist.
func (r LineResult) Err() error {
	var errs []error
	if r.ImageErr != nil {
		errs = append(errs, &AssetError{LineIndex: r.Asset.LineIndex, Kind: AssetKindImage, Err: r.ImageErr})
	}
	if r.VoiceErr != nil {
		errs = append(errs, &AssetError{LineIndex: r.Asset.LineIndex, Kind: AssetKindVoice, Err: r.VoiceErr})
	}
	return errors.Join(errs...)
}

// AssetProducer requests a subtitle image and a voice clip for every line.
type AssetProducer struct {
	images        ImageRenderer
	speech        SpeechSynthesizer
	policy        string
	maxConcurrent int
	logger        *slog.Logger
}

// NewAssetProducer creates a producer. policy is config.PolicyFailFast or
// config.PolicyDegrade; maxConcurrent <= 0 runs every request at once.
func NewAssetProducer(images ImageRenderer, speech SpeechSynthesizer, policy string, maxConcurrent int, logger *slog.Logger) *AssetProducer {
	if policy == "" {
		policy = config.PolicyFailFast
	}
	return &AssetProducer{
		images:        images,
		speech:        speech,
		policy:        policy,
		maxConcurrent: maxConcurrent,
		logger:        logging.NewComponentLogger(logger, "assets"),
	}
}

// Produce issues all image and speech requests concurrently and returns one
// result per line in line order.
//
// Under fail_fast the first failure cancels the rest and is returned as an
// *AssetError. Under degrade failures are recorded on the line's result and
// logged; the line then renders without the missing artifact.
func (p *AssetProducer) Produce(ctx context.Context, lines []models.Line, params AssetParams) ([]LineResult, error) {
	start := time.Now()
	results := make([]LineResult, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	if p.maxConcurrent > 0 {
		g.SetLimit(p.maxConcurrent)
	}

	for i, line := range lines {
		imagePath := filepath.Join(params.Dir, fmt.Sprintf("subtitle_%d.png", line.Index))
		voicePath := filepath.Join(params.Dir, fmt.Sprintf("subtitle_%d.mp3", line.Index))
		results[i].Asset.LineIndex = line.Index

		g.Go(func() error {
			err := p.images.Render(gctx, ImageRequest{Text: line.Text, MaxWidth: params.MaxWidth, Style: params.Style}, imagePath)
			if err == nil {
				results[i].Asset.ImagePath = imagePath
				return nil
			}
			results[i].ImageErr = err
			return p.failure(line, AssetKindImage, err)
		})

		g.Go(func() error {
			req := SpeechRequest{Text: RewritePauses(line.Text), Voice: params.Voice, Rate: params.Rate}
			err := p.speech.Synthesize(gctx, req, voicePath)
			if err == nil {
				results[i].Asset.VoicePath = voicePath
				return nil
			}
			results[i].VoiceErr = err
			return p.failure(line, AssetKindVoice, err)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("assets generated",
		logging.Int("lines", len(lines)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (p *AssetProducer) failure(line models.Line, kind string, err error) error {
	assetErr := &AssetError{LineIndex: line.Index, Kind: kind, Err: err}
	if p.policy == config.PolicyFailFast {
		return assetErr
	}
	p.logger.Warn("asset failed, continuing without it",
		logging.Int(logging.FieldLineIndex, line.Index),
		logging.String("kind", kind),
		logging.String("text", line.Text),
		logging.Error(err),
	)
	return nil
}

// Assets extracts the LineAssets from results.
func Assets(results []LineResult) []models.LineAsset {
	assets := make([]models.LineAsset, len(results))
	for i, r := range results {
		assets[i] = r.Asset
	}
	return assets
}
