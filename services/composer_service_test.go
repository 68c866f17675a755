package services

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/config"
	"narrator/logging"
	"narrator/models"
	"narrator/utils"
)

type composerFixture struct {
	composer *ComposerService
	runner   *recordingRunner
	speech   *fakeSpeech
	images   *fakeImages
	tempDir  string
	outDir   string
	footage  string
}

func newComposerFixture(t *testing.T, prober DurationProber, runner *recordingRunner) composerFixture {
	t.Helper()
	root := t.TempDir()
	fx := composerFixture{
		runner:  runner,
		speech:  &fakeSpeech{},
		images:  &fakeImages{},
		tempDir: filepath.Join(root, "temp"),
		outDir:  filepath.Join(root, "out"),
		footage: touch(t, filepath.Join(root, "media", "footage.mp4")),
	}
	logger := logging.NewNop()
	fx.composer = NewComposerService(
		NewAssetProducer(fx.images, fx.speech, config.PolicyFailFast, 0, logger),
		NewDurationProbe(prober, 1.0, 0, logger),
		NewAudioMixer(runner, "sox", "ffmpeg", false, logger),
		runner,
		&utils.SequenceGenerator{},
		ComposerOptions{TempDir: fx.tempDir, SampleRate: 24000},
		logger,
	)
	return fx
}

func (fx composerFixture) options(texts ...string) models.RenderOptions {
	return models.RenderOptions{
		OutputPath:        filepath.Join(fx.outDir, "video.mp4"),
		Lines:             NewLines(texts),
		FPS:               24,
		Size:              models.FrameSize{Width: 1080, Height: 1920},
		Subtitle:          models.SubtitleStyle{FontSize: 64, Color: "#ffffff"},
		Voice:             "voice",
		VoiceSpeed:        1.0,
		BackgroundFootage: fx.footage,
		Weights:           defaultWeights,
	}
}

func assertWorkspaceGone(t *testing.T, tempDir string) {
	t.Helper()
	entries, err := os.ReadDir(tempDir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace and lock must be removed")
}

func TestRenderSuccess(t *testing.T) {
	runner := &recordingRunner{}
	fx := newComposerFixture(t, fakeProber{"subtitle_0.mp3": 1.2, "subtitle_1.mp3": 3.05}, runner)

	opts := fx.options("Hi.", "A much longer line of dialogue.")
	opts.WriteSubtitles = true

	var steps []string
	result, err := fx.composer.Render(t.Context(), opts, func(step string, _ int) {
		steps = append(steps, step)
	})
	require.NoError(t, err)

	assert.FileExists(t, opts.OutputPath)
	assert.FileExists(t, filepath.Join(fx.outDir, "video.srt"))
	assert.Equal(t, 103, result.Timeline.TotalFrames)
	assert.Empty(t, result.Fallbacks)
	assert.Equal(t, "Completed", steps[len(steps)-1])
	assertWorkspaceGone(t, fx.tempDir)

	cmds := runner.recorded()
	require.Len(t, cmds, 4, "silence, voice mix, final mix, video")
	video := cmds[3]
	assert.Equal(t, "ffmpeg", video.Name)
	assert.Contains(t, video.Args, "-stream_loop")
	assert.Contains(t, video.Args, "1:a")
	assert.Contains(t, video.Args, "[out]")
}

func TestRenderProbeFailureDegradesToSilentSubtitle(t *testing.T) {
	runner := &recordingRunner{}
	fx := newComposerFixture(t, fakeProber{"subtitle_0.mp3": 1.2, "subtitle_2.mp3": 2.0}, runner)

	result, err := fx.composer.Render(t.Context(), fx.options("First.", "***", "Third."), nil)
	require.NoError(t, err)

	require.Len(t, result.Timeline.Entries, 3)
	assert.Equal(t, []int{1}, result.Fallbacks)
	assert.Equal(t, 29, result.Timeline.Entries[0].DurationFrames)
	assert.Equal(t, 24, result.Timeline.Entries[1].DurationFrames)
	assert.Equal(t, 48, result.Timeline.Entries[2].DurationFrames)

	voiceMix := soxCommands(runner.recorded())[1]
	inserts := pipeInputs(voiceMix)
	require.Len(t, inserts, 2)
	assert.Contains(t, inserts[0], "subtitle_0.mp3")
	assert.Contains(t, inserts[1], "subtitle_2.mp3")

	// All three images still overlay.
	video := runner.recorded()[len(runner.recorded())-1]
	var images int
	for _, a := range video.Args {
		if filepath.Ext(a) == ".png" {
			images++
		}
	}
	assert.Equal(t, 3, images)
}

func TestRenderVideoFailureLeavesNothingBehind(t *testing.T) {
	runner := &recordingRunner{exitFor: func(c utils.Command) int {
		if c.Name == "ffmpeg" {
			return 1
		}
		return 0
	}}
	fx := newComposerFixture(t, fakeProber{"subtitle_0.mp3": 1.2}, runner)
	opts := fx.options("Hi.")

	_, err := fx.composer.Render(t.Context(), opts, nil)

	var exitErr *utils.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode)
	assert.NoFileExists(t, opts.OutputPath)
	assertWorkspaceGone(t, fx.tempDir)
}

func TestRenderEmptyLinesIsRejected(t *testing.T) {
	runner := &recordingRunner{}
	fx := newComposerFixture(t, fakeProber{}, runner)
	footage := &fakeFootage{}
	fx.composer.WithFootageSource(footage)
	opts := fx.options()
	opts.BackgroundFootage = ""
	opts.StockKeywords = "ocean waves"

	_, err := fx.composer.Render(t.Context(), opts, nil)
	require.ErrorIs(t, err, ErrEmptyTimeline)
	assert.Empty(t, runner.recorded(), "no external tool may run for an empty timeline")
	assert.Zero(t, footage.calls)
	assert.NoDirExists(t, fx.tempDir)
	assert.NoFileExists(t, opts.OutputPath)
	assertWorkspaceGone(t, fx.tempDir)
}

func TestRenderMissingFootage(t *testing.T) {
	runner := &recordingRunner{}
	fx := newComposerFixture(t, fakeProber{"subtitle_0.mp3": 1}, runner)
	opts := fx.options("Hi.")
	opts.BackgroundFootage = filepath.Join(fx.outDir, "nope.mp4")

	_, err := fx.composer.Render(t.Context(), opts, nil)
	require.ErrorIs(t, err, ErrMissingInput)
	assertWorkspaceGone(t, fx.tempDir)
}

func TestRenderRejectsInvalidFPS(t *testing.T) {
	for _, fps := range []float64{0, -24, math.NaN(), math.Inf(1)} {
		fx := newComposerFixture(t, fakeProber{}, &recordingRunner{})
		opts := fx.options("Hi.")
		opts.FPS = fps

		_, err := fx.composer.Render(t.Context(), opts, nil)
		assert.ErrorIs(t, err, ErrInvalidFPS, "fps %g", fps)
		assert.Empty(t, fx.speech.requests, "fps %g", fps)
		assert.Empty(t, fx.images.requests, "fps %g", fps)
		assert.NoDirExists(t, fx.tempDir)
	}
}

func TestRenderSubtitleFailureLeavesNoVideo(t *testing.T) {
	runner := &recordingRunner{}
	fx := newComposerFixture(t, fakeProber{"subtitle_0.mp3": 1.2}, runner)
	opts := fx.options("Hi.")
	opts.WriteSubtitles = true
	require.NoError(t, os.MkdirAll(filepath.Join(fx.outDir, "video.srt"), 0o755))

	_, err := fx.composer.Render(t.Context(), opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write subtitles")
	assert.NoFileExists(t, opts.OutputPath)
	assert.NoFileExists(t, filepath.Join(fx.outDir, "video.srt.partial"))
	assertWorkspaceGone(t, fx.tempDir)
}

type fakeFootage struct{ calls int }

func (f *fakeFootage) FetchFootage(_ context.Context, _ string, _ models.FrameSize, dir string) (string, error) {
	f.calls++
	path := filepath.Join(dir, "stock_footage.mp4")
	return path, os.WriteFile(path, []byte("mp4"), 0o644)
}

func TestRenderFetchesStockFootage(t *testing.T) {
	runner := &recordingRunner{}
	fx := newComposerFixture(t, fakeProber{"subtitle_0.mp3": 1}, runner)
	footage := &fakeFootage{}
	fx.composer.WithFootageSource(footage)

	opts := fx.options("Hi.")
	opts.BackgroundFootage = ""
	opts.StockKeywords = "ocean waves"

	_, err := fx.composer.Render(t.Context(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, footage.calls)
	assertWorkspaceGone(t, fx.tempDir)
}

func TestVideoArgsInputOrder(t *testing.T) {
	tl := scenarioTimeline(t)
	job, err := NewRenderJob(models.RenderOptions{
		OutputPath:        "/out/video.mp4",
		FPS:               24,
		Size:              models.FrameSize{Width: 1080, Height: 1920},
		BackgroundFootage: "/media/bg.mp4",
		Weights:           defaultWeights,
	}, []ProbedDuration{{LineIndex: 0, Seconds: 1.2}, {LineIndex: 1, Seconds: 3.05}}, scenarioAssets(), 24000)
	require.NoError(t, err)
	assert.Equal(t, tl, job.Timeline)

	args := VideoArgs(job, "/ws/audio.wav", "/ws/render.mp4")
	assert.Equal(t, []string{
		"-y", "-stream_loop", "-1", "-ss", "0", "-to", "4.291667",
		"-i", "/media/bg.mp4",
		"-i", "/ws/audio.wav",
		"-i", "/ws/subtitle_0.png",
		"-i", "/ws/subtitle_1.png",
	}, args[:15])
	assert.Equal(t, "/ws/render.mp4", args[len(args)-1])
}
