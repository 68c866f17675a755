package services

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"

	"narrator/models"
)

// FramesFor converts a duration to a whole number of frames, rounding up so
// a clip is never cut short.
func FramesFor(seconds, fps float64) int {
	return int(math.Ceil(seconds * fps))
}

func validFPS(fps float64) bool {
	return fps > 0 && !math.IsInf(fps, 0)
}

// BuildTimeline folds durations into contiguous frame windows in line order.
// Durations must already be positive; failed probes are expected to carry the
// fallback duration by now.
func BuildTimeline(durations []ProbedDuration, fps float64) (models.Timeline, error) {
	if !validFPS(fps) {
		return models.Timeline{}, fmt.Errorf("%w: %g", ErrInvalidFPS, fps)
	}

	ordered := slices.Clone(durations)
	slices.SortStableFunc(ordered, func(a, b ProbedDuration) int {
		return cmp.Compare(a.LineIndex, b.LineIndex)
	})
	for _, d := range ordered {
		if !(d.Seconds > 0) || math.IsInf(d.Seconds, 0) {
			return models.Timeline{}, fmt.Errorf("line %d: %w: duration %g", d.LineIndex, ErrNoVoiceClip, d.Seconds)
		}
	}

	entries := lo.Reduce(ordered, func(acc []models.TimelineEntry, d ProbedDuration, _ int) []models.TimelineEntry {
		start := 0
		if n := len(acc); n > 0 {
			start = acc[n-1].EndFrame + 1
		}
		frames := FramesFor(d.Seconds, fps)
		return append(acc, models.TimelineEntry{
			LineIndex:      d.LineIndex,
			StartFrame:     start,
			EndFrame:       start + frames - 1,
			DurationFrames: frames,
			Fallback:       d.Fallback,
		})
	}, make([]models.TimelineEntry, 0, len(ordered)))

	return models.Timeline{
		FPS:     fps,
		Entries: entries,
		TotalFrames: lo.SumBy(entries, func(e models.TimelineEntry) int {
			return e.DurationFrames
		}),
	}, nil
}
