package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/models"
)

func TestBuildTimelineScenario(t *testing.T) {
	tl, err := BuildTimeline([]ProbedDuration{
		{LineIndex: 0, Seconds: 1.2},
		{LineIndex: 1, Seconds: 3.05},
	}, 24)
	require.NoError(t, err)

	assert.Equal(t, []models.TimelineEntry{
		{LineIndex: 0, StartFrame: 0, EndFrame: 28, DurationFrames: 29},
		{LineIndex: 1, StartFrame: 29, EndFrame: 102, DurationFrames: 74},
	}, tl.Entries)
	assert.Equal(t, 103, tl.TotalFrames)
	assert.InDelta(t, 103.0/24.0, tl.Seconds(), 1e-9)
}

func TestBuildTimelineInvariants(t *testing.T) {
	tests := []struct {
		name      string
		fps       float64
		durations []float64
	}{
		{"single", 24, []float64{0.5}},
		{"short clips", 30, []float64{0.01, 0.02, 0.03}},
		{"fractional fps", 29.97, []float64{1.5, 2.25, 0.9, 4.0}},
		{"long", 60, []float64{10, 20.5, 3.3333, 7.77, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]ProbedDuration, len(tt.durations))
			for i, d := range tt.durations {
				in[i] = ProbedDuration{LineIndex: i, Seconds: d}
			}
			tl, err := BuildTimeline(in, tt.fps)
			require.NoError(t, err)
			require.Len(t, tl.Entries, len(tt.durations))

			assert.Equal(t, 0, tl.Entries[0].StartFrame)
			sum := 0
			for i, e := range tl.Entries {
				assert.Equal(t, i, e.LineIndex)
				assert.Equal(t, int(math.Ceil(tt.durations[i]*tt.fps)), e.DurationFrames)
				assert.GreaterOrEqual(t, e.DurationFrames, 1)
				assert.Equal(t, e.StartFrame+e.DurationFrames-1, e.EndFrame)
				if i > 0 {
					assert.Equal(t, tl.Entries[i-1].EndFrame+1, e.StartFrame)
				}
				sum += e.DurationFrames
			}
			assert.Equal(t, sum, tl.TotalFrames)
			assert.Equal(t, tl.Entries[len(tl.Entries)-1].EndFrame+1, tl.TotalFrames)
		})
	}
}

func TestBuildTimelineOrdersByLineIndex(t *testing.T) {
	tl, err := BuildTimeline([]ProbedDuration{
		{LineIndex: 2, Seconds: 1},
		{LineIndex: 0, Seconds: 1},
		{LineIndex: 1, Seconds: 2},
	}, 10)
	require.NoError(t, err)

	require.Len(t, tl.Entries, 3)
	assert.Equal(t, 0, tl.Entries[0].LineIndex)
	assert.Equal(t, 10, tl.Entries[1].StartFrame)
	assert.Equal(t, 2, tl.Entries[2].LineIndex)
	assert.Equal(t, 30, tl.Entries[2].StartFrame)
}

func TestBuildTimelineEmpty(t *testing.T) {
	tl, err := BuildTimeline(nil, 24)
	require.NoError(t, err)
	assert.Empty(t, tl.Entries)
	assert.Equal(t, 0, tl.TotalFrames)
}

func TestBuildTimelineRejectsBadInput(t *testing.T) {
	_, err := BuildTimeline([]ProbedDuration{{Seconds: 1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidFPS)

	_, err = BuildTimeline([]ProbedDuration{{Seconds: 1}}, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidFPS)

	_, err = BuildTimeline([]ProbedDuration{{LineIndex: 0, Seconds: 1}, {LineIndex: 1, Seconds: 0}}, 24)
	assert.ErrorIs(t, err, ErrNoVoiceClip)

	_, err = BuildTimeline([]ProbedDuration{{Seconds: -2}}, 24)
	assert.ErrorIs(t, err, ErrNoVoiceClip)
}

func TestBuildTimelineIsPure(t *testing.T) {
	in := []ProbedDuration{{LineIndex: 1, Seconds: 2}, {LineIndex: 0, Seconds: 1}}
	first, err := BuildTimeline(in, 24)
	require.NoError(t, err)
	second, err := BuildTimeline(in, 24)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, in[0].LineIndex, "input must not be reordered")
}

func TestFallbackEntryUsesFallbackFrames(t *testing.T) {
	tl, err := BuildTimeline([]ProbedDuration{
		{LineIndex: 0, Seconds: 1.2},
		{LineIndex: 1, Seconds: 1.0, Fallback: true},
	}, 24)
	require.NoError(t, err)

	assert.True(t, tl.Entries[1].Fallback)
	assert.Equal(t, 24, tl.Entries[1].DurationFrames)
}
