package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/logging"
	"narrator/models"
	"narrator/utils"
)

var defaultWeights = models.MixWeights{Music: 0.05, Voice: 1.0}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestBuildAudioMixSpecPadOffsets(t *testing.T) {
	tl := scenarioTimeline(t)
	spec, err := BuildAudioMixSpec(tl, scenarioAssets(), models.MusicBed{}, defaultWeights, 24000)
	require.NoError(t, err)

	require.Len(t, spec.VoiceInserts, 2)
	for i, in := range spec.VoiceInserts {
		assert.Equal(t, float64(tl.Entries[i].StartFrame)/tl.FPS, in.PadOffsetSeconds)
	}
	assert.Equal(t, 0.0, spec.VoiceInserts[0].PadOffsetSeconds)
	assert.InDelta(t, 29.0/24.0, spec.VoiceInserts[1].PadOffsetSeconds, 1e-12)
	assert.InDelta(t, 103.0/24.0, spec.SilenceSeconds, 1e-12)
	assert.Equal(t, 24000, spec.SampleRate)
}

func TestBuildAudioMixSpecExcludesFallbackLines(t *testing.T) {
	tl, err := BuildTimeline([]ProbedDuration{
		{LineIndex: 0, Seconds: 1.2},
		{LineIndex: 1, Seconds: 1.0, Fallback: true},
		{LineIndex: 2, Seconds: 2.0},
	}, 24)
	require.NoError(t, err)

	assets := []models.LineAsset{
		{LineIndex: 0, VoicePath: "v0"},
		{LineIndex: 1, VoicePath: "v1"},
		{LineIndex: 2, VoicePath: "v2"},
	}
	spec, err := BuildAudioMixSpec(tl, assets, models.MusicBed{}, defaultWeights, 24000)
	require.NoError(t, err)

	require.Len(t, spec.VoiceInserts, 2)
	assert.Equal(t, 0, spec.VoiceInserts[0].LineIndex)
	assert.Equal(t, 2, spec.VoiceInserts[1].LineIndex)
	assert.Equal(t, float64(tl.Entries[2].StartFrame)/24, spec.VoiceInserts[1].PadOffsetSeconds)
}

func TestBuildAudioMixSpecRejectsEmptyTimeline(t *testing.T) {
	tl, err := BuildTimeline(nil, 24)
	require.NoError(t, err)

	_, err = BuildAudioMixSpec(tl, nil, models.MusicBed{}, defaultWeights, 24000)
	assert.ErrorIs(t, err, ErrEmptyTimeline)
}

func TestMixRunsStagesInOrder(t *testing.T) {
	dir := t.TempDir()
	music := []string{touch(t, filepath.Join(dir, "in", "a.mp3")), touch(t, filepath.Join(dir, "in", "b.mp3"))}
	bed := models.MusicBed{Tracks: music, CrossfadeSeconds: 8}

	tl := scenarioTimeline(t)
	spec, err := BuildAudioMixSpec(tl, scenarioAssets(), bed, defaultWeights, 24000)
	require.NoError(t, err)
	graph := BuildFilterGraph(tl, scenarioAssets(), models.FrameSize{Width: 1080, Height: 1920}, bed)

	runner := &recordingRunner{}
	out, err := NewAudioMixer(runner, "", "", false, logging.NewNop()).Mix(t.Context(), dir, spec, graph.Music)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio.wav"), out)

	cmds := runner.recorded()
	require.Len(t, cmds, 4)

	assert.Equal(t, "sox", cmds[0].Name)
	assert.Equal(t, []string{"-n", "-r", "24000", filepath.Join(dir, "silence.wav"), "trim", "0.0", "4.291667"}, cmds[0].Args)

	assert.Equal(t, "ffmpeg", cmds[1].Name)
	assert.Equal(t, []string{
		"-y", "-vn", "-i", music[0], "-i", music[1],
		"-filter_complex", "[0][1]acrossfade=d=8:c1=tri:c2=tri[music]",
		"-map", "[music]",
		"-ar", "24000",
		filepath.Join(dir, "music.wav"),
	}, cmds[1].Args)

	assert.Equal(t, "sox", cmds[2].Name)
	assert.Equal(t, []string{"-m", "-v", "0", filepath.Join(dir, "silence.wav")}, cmds[2].Args[:4])
	assert.Equal(t, []string{
		"|'sox' '/ws/subtitle_0.mp3' -p rate 24000 channels 1 pad 0.000000",
		"|'sox' '/ws/subtitle_1.mp3' -p rate 24000 channels 1 pad 1.208333",
	}, pipeInputs(cmds[2]))
	assert.Equal(t, []string{"--multi-threaded", filepath.Join(dir, "voiceover.wav")}, cmds[2].Args[len(cmds[2].Args)-2:])

	assert.Equal(t, []string{
		"-m",
		"-v", "0.05", filepath.Join(dir, "music.wav"),
		"-v", "1", filepath.Join(dir, "voiceover.wav"),
		filepath.Join(dir, "audio.wav"),
		"trim", "0.0", "4.291667",
	}, cmds[3].Args)
}

func TestMixWithoutMusicIsVoiceOnly(t *testing.T) {
	dir := t.TempDir()
	spec, err := BuildAudioMixSpec(scenarioTimeline(t), scenarioAssets(), models.MusicBed{}, defaultWeights, 24000)
	require.NoError(t, err)

	runner := &recordingRunner{}
	_, err = NewAudioMixer(runner, "sox", "ffmpeg", false, logging.NewNop()).Mix(t.Context(), dir, spec, models.FilterChain{})
	require.NoError(t, err)

	cmds := runner.recorded()
	require.Len(t, cmds, 3)
	for _, c := range cmds {
		assert.Equal(t, "sox", c.Name)
	}
	assert.NotContains(t, cmds[2].Args, "-m")
	assert.Equal(t, []string{"-v", "1", filepath.Join(dir, "voiceover.wav")}, cmds[2].Args[:3])
}

func TestMixSingleTrackMapsDirectly(t *testing.T) {
	dir := t.TempDir()
	track := touch(t, filepath.Join(dir, "in", "only.mp3"))
	bed := models.MusicBed{Tracks: []string{track}, CrossfadeSeconds: 8}
	spec, err := BuildAudioMixSpec(scenarioTimeline(t), scenarioAssets(), bed, defaultWeights, 24000)
	require.NoError(t, err)

	runner := &recordingRunner{}
	_, err = NewAudioMixer(runner, "", "", false, logging.NewNop()).Mix(t.Context(), dir, spec, models.FilterChain{})
	require.NoError(t, err)

	music := runner.recorded()[1]
	assert.NotContains(t, music.Args, "-filter_complex")
	assert.Contains(t, music.Args, "0:a")
}

func TestMixWithoutVoiceInsertsUsesSilence(t *testing.T) {
	dir := t.TempDir()
	tl, err := BuildTimeline([]ProbedDuration{{LineIndex: 0, Seconds: 1, Fallback: true}}, 24)
	require.NoError(t, err)
	spec, err := BuildAudioMixSpec(tl, []models.LineAsset{{LineIndex: 0, VoicePath: "v0"}}, models.MusicBed{}, defaultWeights, 24000)
	require.NoError(t, err)
	require.Empty(t, spec.VoiceInserts)

	runner := &recordingRunner{}
	_, err = NewAudioMixer(runner, "", "", false, logging.NewNop()).Mix(t.Context(), dir, spec, models.FilterChain{})
	require.NoError(t, err)

	cmds := runner.recorded()
	require.Len(t, cmds, 2)
	assert.Contains(t, cmds[1].Args, filepath.Join(dir, "silence.wav"))
}

func TestMixStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	spec, err := BuildAudioMixSpec(scenarioTimeline(t), scenarioAssets(), models.MusicBed{}, defaultWeights, 24000)
	require.NoError(t, err)

	runner := &recordingRunner{exitFor: func(c utils.Command) int {
		if filepath.Base(c.Output) == "voiceover.wav" {
			return 2
		}
		return 0
	}}
	_, err = NewAudioMixer(runner, "", "", false, logging.NewNop()).Mix(t.Context(), dir, spec, models.FilterChain{})

	var exitErr *utils.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode)
	assert.Len(t, runner.recorded(), 2, "final mix must not run after a failed stage")
}

func TestMixRejectsEmptyAndMissingInputs(t *testing.T) {
	mixer := NewAudioMixer(&recordingRunner{}, "", "", false, logging.NewNop())

	_, err := mixer.Mix(t.Context(), t.TempDir(), models.AudioMixSpec{SampleRate: 24000}, models.FilterChain{})
	assert.ErrorIs(t, err, ErrEmptyTimeline)

	spec := models.AudioMixSpec{
		SilenceSeconds: 1,
		SampleRate:     24000,
		MusicBed:       models.MusicBed{Tracks: []string{"/nope/missing.mp3"}},
	}
	_, err = mixer.Mix(t.Context(), t.TempDir(), spec, models.FilterChain{})
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'/tmp/it'\''s.mp3'`, shellQuote("/tmp/it's.mp3"))
}
