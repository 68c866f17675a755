package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"narrator/logging"
	"narrator/models"
	"narrator/utils"
)

// subtitleWidthRatio is the share of the frame width a subtitle may use.
const subtitleWidthRatio = 0.75

// ComposerService runs the whole render: assets, probing, timeline, audio
// mix, and the final video pass.
type ComposerService struct {
	assets     *AssetProducer
	probe      *DurationProbe
	mixer      *AudioMixer
	footage    FootageSource
	runner     utils.Runner
	ids        utils.IDGenerator
	ffmpegBin  string
	tempDir    string
	sampleRate int
	stream     bool
	logger     *slog.Logger
}

// ComposerOptions configures a ComposerService.
type ComposerOptions struct {
	FFmpegBin  string
	TempDir    string
	SampleRate int
	Stream     bool
}

// WithFootageSource enables stock footage for jobs that name keywords.
func (cs *ComposerService) WithFootageSource(src FootageSource) *ComposerService {
	cs.footage = src
	return cs
}

// NewComposerService creates a new composer service
func NewComposerService(assets *AssetProducer, probe *DurationProbe, mixer *AudioMixer, runner utils.Runner, ids utils.IDGenerator, opts ComposerOptions, logger *slog.Logger) *ComposerService {
	if opts.FFmpegBin == "" {
		opts.FFmpegBin = "ffmpeg"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 24000
	}
	if ids == nil {
		ids = utils.UUIDGenerator{}
	}
	return &ComposerService{
		assets:     assets,
		probe:      probe,
		mixer:      mixer,
		runner:     runner,
		ids:        ids,
		ffmpegBin:  opts.FFmpegBin,
		tempDir:    opts.TempDir,
		sampleRate: opts.SampleRate,
		stream:     opts.Stream,
		logger:     logging.NewComponentLogger(logger, "composer"),
	}
}

// Render produces opts.OutputPath. The workspace is removed on every exit
// path, and the outputs only appear once every stage has succeeded.
func (cs *ComposerService) Render(ctx context.Context, opts models.RenderOptions, progress ProgressFunc) (result models.RenderResult, err error) {
	if len(opts.Lines) == 0 {
		return result, ErrEmptyTimeline
	}
	if !validFPS(opts.FPS) {
		return result, fmt.Errorf("%w: %g", ErrInvalidFPS, opts.FPS)
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return result, errors.New("output path is required")
	}

	started := time.Now()
	logger := cs.logger.With(logging.String("output", opts.OutputPath))

	ws, err := utils.CreateWorkspace(cs.tempDir, cs.ids.NewID("render"), cs.logger)
	if err != nil {
		return result, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if opts.BackgroundFootage == "" && opts.StockKeywords != "" {
		if cs.footage == nil {
			return result, fmt.Errorf("%w: no footage source for keywords %q", ErrMissingInput, opts.StockKeywords)
		}
		progress.report("Fetching background footage", 5)
		if opts.BackgroundFootage, err = cs.footage.FetchFootage(ctx, opts.StockKeywords, opts.Size, ws.Dir); err != nil {
			return result, fmt.Errorf("fetch footage: %w", err)
		}
	}

	progress.report("Generating subtitles and voice-over", 10)
	lineResults, err := cs.assets.Produce(ctx, opts.Lines, AssetParams{
		Dir:      ws.Dir,
		MaxWidth: int(math.Floor(float64(opts.Size.Width) * subtitleWidthRatio)),
		Style:    opts.Subtitle,
		Voice:    opts.Voice,
		Rate:     opts.VoiceSpeed,
	})
	if err != nil {
		return result, fmt.Errorf("generate assets: %w", err)
	}
	assets := Assets(lineResults)

	progress.report("Measuring voice clips", 40)
	durations, err := cs.probe.ProbeAll(ctx, opts.Lines, assets)
	if err != nil {
		return result, fmt.Errorf("probe durations: %w", err)
	}

	job, err := cs.PlanJob(opts, durations, assets)
	if err != nil {
		return result, err
	}

	progress.report("Mixing audio", 55)
	audio, err := cs.mixer.Mix(ctx, ws.Dir, job.Audio, job.Graph.Music)
	if err != nil {
		return result, fmt.Errorf("mix audio: %w", err)
	}

	progress.report("Rendering video", 75)
	staged, err := cs.renderVideo(ctx, ws, job, audio)
	if err != nil {
		return result, fmt.Errorf("render video: %w", err)
	}

	result = models.RenderResult{
		OutputPath: opts.OutputPath,
		Timeline:   job.Timeline,
		Fallbacks: lo.FilterMap(job.Timeline.Entries, func(e models.TimelineEntry, _ int) (int, bool) {
			return e.LineIndex, e.Fallback
		}),
	}

	var stagedSRT string
	if opts.WriteSubtitles {
		stagedSRT = ws.Path("render.srt")
		if err := WriteSRT(stagedSRT, job.Timeline, opts.Lines); err != nil {
			return models.RenderResult{}, fmt.Errorf("write subtitles: %w", err)
		}
		result.SubtitlePath = strings.TrimSuffix(opts.OutputPath, filepath.Ext(opts.OutputPath)) + ".srt"
	}
	if err := publishOutputs(staged, opts.OutputPath, stagedSRT, result.SubtitlePath); err != nil {
		return models.RenderResult{}, err
	}

	progress.report("Completed", 100)
	logger.Info("render complete",
		logging.Int("lines", len(opts.Lines)),
		logging.Int("total_frames", job.Timeline.TotalFrames),
		logging.Float64("seconds", job.Timeline.Seconds()),
		logging.Int("fallbacks", len(result.Fallbacks)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// PlanJob folds measured durations into a RenderJob without touching any
// external tool. An empty timeline is rejected.
func (cs *ComposerService) PlanJob(opts models.RenderOptions, durations []ProbedDuration, assets []models.LineAsset) (models.RenderJob, error) {
	return NewRenderJob(opts, durations, assets, cs.sampleRate)
}

// NewRenderJob builds the timeline, audio mix, and filter graph for one run.
func NewRenderJob(opts models.RenderOptions, durations []ProbedDuration, assets []models.LineAsset, sampleRate int) (models.RenderJob, error) {
	tl, err := BuildTimeline(durations, opts.FPS)
	if err != nil {
		return models.RenderJob{}, fmt.Errorf("build timeline: %w", err)
	}

	bed := models.MusicBed{
		Tracks:           slices.Clone(opts.BackgroundMusic),
		CrossfadeSeconds: opts.CrossfadeSeconds,
	}
	if opts.ShuffleMusic {
		bed.Tracks = lo.Shuffle(bed.Tracks)
	}

	audio, err := BuildAudioMixSpec(tl, assets, bed, opts.Weights, sampleRate)
	if err != nil {
		return models.RenderJob{}, err
	}

	return models.RenderJob{
		OutputPath:        opts.OutputPath,
		FPS:               opts.FPS,
		Size:              opts.Size,
		BackgroundFootage: opts.BackgroundFootage,
		Timeline:          tl,
		Audio:             audio,
		Graph:             BuildFilterGraph(tl, assets, opts.Size, bed),
	}, nil
}

// VideoArgs returns the ffmpeg arguments for the final video pass.
func VideoArgs(job models.RenderJob, audioPath, outPath string) []string {
	seconds := utils.FormatSeconds(job.Timeline.Seconds())
	args := []string{
		"-y",
		"-stream_loop", "-1",
		"-ss", "0",
		"-to", seconds,
		"-i", job.BackgroundFootage,
		"-i", audioPath,
	}
	for _, in := range job.Graph.VideoInputs {
		args = append(args, "-i", in.Path)
	}
	args = append(args,
		"-filter_complex", utils.SerializeFilterChain(job.Graph.Video),
		"-map", "["+job.Graph.Video.Output+"]",
		"-map", "1:a",
		"-pix_fmt", "yuv420p",
		"-t", seconds,
		outPath,
	)
	return args
}

// renderVideo renders into the workspace and returns the staged file.
func (cs *ComposerService) renderVideo(ctx context.Context, ws *utils.Workspace, job models.RenderJob, audioPath string) (string, error) {
	if len(job.Timeline.Entries) == 0 {
		return "", ErrEmptyTimeline
	}
	if !utils.FileExists(job.BackgroundFootage) {
		return "", fmt.Errorf("%w: background footage %q", ErrMissingInput, job.BackgroundFootage)
	}

	ext := filepath.Ext(job.OutputPath)
	if ext == "" {
		ext = ".mp4"
	}
	staged := ws.Path("render" + ext)

	if _, err := utils.RunChecked(ctx, cs.runner, utils.Command{
		Name:   cs.ffmpegBin,
		Args:   VideoArgs(job, audioPath, staged),
		Output: staged,
		Stream: cs.stream,
	}); err != nil {
		return "", err
	}
	return staged, nil
}

// publishOutputs moves the staged subtitles, then the video, into place. A
// failed video move takes the subtitles back out so nothing is left behind.
func publishOutputs(video, videoDst, srt, srtDst string) error {
	if srt != "" {
		if err := utils.MoveFile(srt, srtDst); err != nil {
			return fmt.Errorf("write subtitles: %w", err)
		}
	}
	if err := utils.MoveFile(video, videoDst); err != nil {
		if srt != "" {
			_ = os.Remove(srtDst)
		}
		return fmt.Errorf("move output: %w", err)
	}
	return nil
}
