package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"narrator/config"
	"narrator/models"
	"narrator/services"
	"narrator/utils"
)

// newSynthesizer picks the speech provider named by TTS_PROVIDER.
func newSynthesizer(cfg *config.Config, logger *slog.Logger) (services.SpeechSynthesizer, error) {
	switch cfg.TTSProvider {
	case "openai":
		s, err := services.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.OpenAITTSModel, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "http", "":
		pool := utils.NewAPIKeyPool(cfg.TTSAPIKeys)
		if pool.Len() == 0 {
			return nil, fmt.Errorf("TTS_API_KEYS is empty")
		}
		return services.NewHTTPSynthesizer(pool, cfg.TTSEndpoint, cfg.TTSSSML, logger), nil
	}
	return nil, fmt.Errorf("TTS_PROVIDER %q is not supported", cfg.TTSProvider)
}

// newComposer wires the render pipeline against the real external tools.
func newComposer(cfg *config.Config, logger *slog.Logger) (*services.ComposerService, error) {
	speech, err := newSynthesizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := utils.NewExecRunner(logger)
	ids := utils.UUIDGenerator{}

	assets := services.NewAssetProducer(
		services.NewSubtitleRenderer(ids, logger),
		speech,
		cfg.AssetFailurePolicy,
		cfg.MaxConcurrentTTSRequests,
		logger,
	)
	probe := services.NewDurationProbe(
		services.NewFFProbe(runner, cfg.FFprobeBin),
		cfg.FallbackDurationSeconds,
		0,
		logger,
	)
	mixer := services.NewAudioMixer(runner, cfg.SoxBin, cfg.FFmpegBin, cfg.StreamToolOutput, logger)

	composer := services.NewComposerService(assets, probe, mixer, runner, ids, services.ComposerOptions{
		FFmpegBin:  cfg.FFmpegBin,
		TempDir:    cfg.TempDir,
		SampleRate: cfg.AudioSampleRate,
		Stream:     cfg.StreamToolOutput,
	}, logger)
	if cfg.PexelsAPIKey != "" {
		composer.WithFootageSource(services.NewStockVideoService(cfg.PexelsAPIKey, logger))
	}
	return composer, nil
}

// jobOptions converts a validated manifest into render options.
func jobOptions(job config.JobFile, tp *services.TextProcessor) models.RenderOptions {
	lines := services.NewLines(job.Lines)
	if strings.TrimSpace(job.Text) != "" {
		lines = tp.SplitIntoLines(job.Text)
	}

	var crossfade float64
	if job.Background.CrossfadeSeconds != nil {
		crossfade = *job.Background.CrossfadeSeconds
	}
	var weights models.MixWeights
	if job.Mix.MusicWeight != nil {
		weights.Music = *job.Mix.MusicWeight
	}
	if job.Mix.VoiceWeight != nil {
		weights.Voice = *job.Mix.VoiceWeight
	}

	return models.RenderOptions{
		OutputPath: job.Output,
		Title:      job.Title,
		Lines:      lines,
		FPS:        job.FPS,
		Size:       models.FrameSize{Width: job.Width, Height: job.Height},
		Subtitle: models.SubtitleStyle{
			FontPath: job.Font.Path,
			FontSize: job.Font.Size,
			Color:    job.Font.Color,
		},
		Voice:             job.Voice.Name,
		VoiceSpeed:        job.Voice.Speed,
		BackgroundFootage: job.Background.Footage,
		StockKeywords:     job.Background.StockKeywords,
		BackgroundMusic:   job.Background.Music,
		ShuffleMusic:      job.Background.Shuffle,
		CrossfadeSeconds:  crossfade,
		Weights:           weights,
	}
}

// authorizedPublisher returns a publisher ready to upload. The consent
// prompt, if any, reads from in and writes to out.
func authorizedPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) (*services.YouTubePublisher, error) {
	pub := services.NewYouTubePublisher(cfg.YouTubeSecretPath, cfg.YouTubeTokenPath, logger)
	if err := pub.Authorize(ctx, in, out); err != nil {
		return nil, err
	}
	return pub, nil
}
