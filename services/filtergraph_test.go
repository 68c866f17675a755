package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/models"
	"narrator/utils"
)

func scenarioTimeline(t *testing.T) models.Timeline {
	t.Helper()
	tl, err := BuildTimeline([]ProbedDuration{{LineIndex: 0, Seconds: 1.2}, {LineIndex: 1, Seconds: 3.05}}, 24)
	require.NoError(t, err)
	return tl
}

func scenarioAssets() []models.LineAsset {
	return []models.LineAsset{
		{LineIndex: 0, ImagePath: "/ws/subtitle_0.png", VoicePath: "/ws/subtitle_0.mp3"},
		{LineIndex: 1, ImagePath: "/ws/subtitle_1.png", VoicePath: "/ws/subtitle_1.mp3"},
	}
}

func TestBuildFilterGraphVideoChain(t *testing.T) {
	graph := BuildFilterGraph(scenarioTimeline(t), scenarioAssets(), models.FrameSize{Width: 1080, Height: 1920}, models.MusicBed{})

	assert.Equal(t, []models.OverlayInput{
		{LineIndex: 0, Path: "/ws/subtitle_0.png", Window: models.FrameWindow{Start: 0, End: 28}},
		{LineIndex: 1, Path: "/ws/subtitle_1.png", Window: models.FrameWindow{Start: 29, End: 102}},
	}, graph.VideoInputs)

	assert.Equal(t,
		"[0:v]scale=w=1080:h=1920:force_original_aspect_ratio=increase[scaled];"+
			"[scaled]crop=w=1080:h=1920[cropped];"+
			"[cropped]fps=fps=24[base];"+
			"[base][2:v]overlay=x=W/2-w/2:y=H/2-h/2:enable='between(n,0,28)'[v1];"+
			"[v1][3:v]overlay=x=W/2-w/2:y=H/2-h/2:enable='between(n,29,102)'[out]",
		utils.SerializeFilterChain(graph.Video))
	assert.Equal(t, VideoOutputLabel, graph.Video.Output)
}

func TestBuildFilterGraphStagesChainLinearly(t *testing.T) {
	graph := BuildFilterGraph(scenarioTimeline(t), scenarioAssets(), models.FrameSize{Width: 720, Height: 1280}, models.MusicBed{})

	stages := graph.Video.Stages
	for i := 1; i < len(stages); i++ {
		assert.Equal(t, stages[i-1].Output, stages[i].Inputs[0], "stage %d must consume the previous output", i)
	}
	assert.Equal(t, VideoOutputLabel, stages[len(stages)-1].Output)
}

func TestBuildFilterGraphIsDeterministic(t *testing.T) {
	tl := scenarioTimeline(t)
	bed := models.MusicBed{Tracks: []string{"a.mp3", "b.mp3"}, CrossfadeSeconds: 8}
	size := models.FrameSize{Width: 1080, Height: 1920}

	first := BuildFilterGraph(tl, scenarioAssets(), size, bed)
	second := BuildFilterGraph(tl, scenarioAssets(), size, bed)
	assert.Equal(t, first, second)
}

func TestBuildFilterGraphSkipsMissingImages(t *testing.T) {
	assets := scenarioAssets()
	assets[0].ImagePath = ""

	graph := BuildFilterGraph(scenarioTimeline(t), assets, models.FrameSize{Width: 1080, Height: 1920}, models.MusicBed{})
	require.Len(t, graph.VideoInputs, 1)
	assert.Equal(t, 1, graph.VideoInputs[0].LineIndex)

	last := graph.Video.Stages[len(graph.Video.Stages)-1]
	assert.Equal(t, []string{"base", "2:v"}, last.Inputs)
	assert.Equal(t, VideoOutputLabel, last.Output)
}

func TestBuildFilterGraphWithoutOverlays(t *testing.T) {
	graph := BuildFilterGraph(scenarioTimeline(t), nil, models.FrameSize{Width: 1080, Height: 1920}, models.MusicBed{})
	assert.Empty(t, graph.VideoInputs)
	assert.Len(t, graph.Video.Stages, 3)
	assert.Equal(t, VideoOutputLabel, graph.Video.Stages[2].Output)
}

func TestMusicChain(t *testing.T) {
	tests := []struct {
		name       string
		bed        models.MusicBed
		want       string
		crossfades int
	}{
		{
			name: "no tracks",
			bed:  models.MusicBed{CrossfadeSeconds: 8},
			want: "",
		},
		{
			name: "single track needs no filter",
			bed:  models.MusicBed{Tracks: []string{"a.mp3"}, CrossfadeSeconds: 8},
			want: "",
		},
		{
			name:       "two tracks",
			bed:        models.MusicBed{Tracks: []string{"a.mp3", "b.mp3"}, CrossfadeSeconds: 8},
			want:       "[0][1]acrossfade=d=8:c1=tri:c2=tri[music]",
			crossfades: 1,
		},
		{
			name:       "three tracks",
			bed:        models.MusicBed{Tracks: []string{"a.mp3", "b.mp3", "c.mp3"}, CrossfadeSeconds: 2.5},
			want:       "[0][1]acrossfade=d=2.5:c1=tri:c2=tri[m1];[m1][2]acrossfade=d=2.5:c1=tri:c2=tri[music]",
			crossfades: 2,
		},
		{
			name:       "zero crossfade concatenates",
			bed:        models.MusicBed{Tracks: []string{"a.mp3", "b.mp3", "c.mp3"}},
			want:       "[0][1][2]concat=n=3:v=0:a=1[music]",
			crossfades: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := BuildFilterGraph(models.Timeline{FPS: 24}, nil, models.FrameSize{Width: 10, Height: 10}, tt.bed)
			assert.Equal(t, tt.want, utils.SerializeFilterChain(graph.Music))
			assert.Len(t, graph.MusicCrossfades, tt.crossfades)
		})
	}
}

func TestMusicCrossfadesPreserveOrder(t *testing.T) {
	bed := models.MusicBed{Tracks: []string{"c.mp3", "a.mp3", "b.mp3"}, CrossfadeSeconds: 8}
	graph := BuildFilterGraph(models.Timeline{FPS: 24}, nil, models.FrameSize{Width: 10, Height: 10}, bed)

	assert.Equal(t, []models.Crossfade{
		{Track: "a.mp3", Duration: 8, Curve: "tri"},
		{Track: "b.mp3", Duration: 8, Curve: "tri"},
	}, graph.MusicCrossfades)
}
