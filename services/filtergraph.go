package services

import (
	"fmt"
	"strconv"

	"narrator/models"
)

// Labels used by the generated filter chains.
const (
	VideoOutputLabel = "out"
	MusicOutputLabel = "music"

	// firstOverlayInput is the ffmpeg input index of the first subtitle
	// image: 0 is the footage and 1 the mixed audio.
	firstOverlayInput = 2
	crossfadeCurve    = "tri"
)

// BuildFilterGraph derives the overlay chain and the music crossfade chain.
// It reads only paths and frame windows, so the same inputs always yield the
// same graph.
func BuildFilterGraph(tl models.Timeline, assets []models.LineAsset, size models.FrameSize, bed models.MusicBed) models.FilterGraph {
	images := make(map[int]string, len(assets))
	for _, a := range assets {
		images[a.LineIndex] = a.ImagePath
	}

	inputs := make([]models.OverlayInput, 0, len(tl.Entries))
	for _, e := range tl.Entries {
		path := images[e.LineIndex]
		if path == "" {
			continue
		}
		inputs = append(inputs, models.OverlayInput{LineIndex: e.LineIndex, Path: path, Window: e.Window()})
	}

	crossfades := make([]models.Crossfade, 0, len(bed.Tracks))
	for i := 1; i < len(bed.Tracks); i++ {
		crossfades = append(crossfades, models.Crossfade{
			Track:    bed.Tracks[i],
			Duration: bed.CrossfadeSeconds,
			Curve:    crossfadeCurve,
		})
	}

	return models.FilterGraph{
		VideoInputs:     inputs,
		MusicCrossfades: crossfades,
		Video:           videoChain(inputs, size, tl.FPS),
		Music:           musicChain(bed),
	}
}

// videoChain scales and crops the footage to the frame, then overlays each
// image centered, enabled only inside its window.
func videoChain(inputs []models.OverlayInput, size models.FrameSize, fps float64) models.FilterChain {
	w, h := strconv.Itoa(size.Width), strconv.Itoa(size.Height)
	stages := []models.FilterStage{
		{
			Inputs:  []string{"0:v"},
			Filter:  "scale",
			Options: []models.FilterOption{{Key: "w", Value: w}, {Key: "h", Value: h}, {Key: "force_original_aspect_ratio", Value: "increase"}},
			Output:  "scaled",
		},
		{
			Inputs:  []string{"scaled"},
			Filter:  "crop",
			Options: []models.FilterOption{{Key: "w", Value: w}, {Key: "h", Value: h}},
			Output:  "cropped",
		},
		{
			Inputs:  []string{"cropped"},
			Filter:  "fps",
			Options: []models.FilterOption{{Key: "fps", Value: formatNumber(fps)}},
			Output:  "base",
		},
	}

	prev := "base"
	for i, in := range inputs {
		out := fmt.Sprintf("v%d", i+1)
		if i == len(inputs)-1 {
			out = VideoOutputLabel
		}
		stages = append(stages, models.FilterStage{
			Inputs: []string{prev, fmt.Sprintf("%d:v", firstOverlayInput+i)},
			Filter: "overlay",
			Options: []models.FilterOption{
				{Key: "x", Value: "W/2-w/2"},
				{Key: "y", Value: "H/2-h/2"},
				{Key: "enable", Value: fmt.Sprintf("'between(n,%d,%d)'", in.Window.Start, in.Window.End)},
			},
			Output: out,
		})
		prev = out
	}
	if len(inputs) == 0 {
		stages[len(stages)-1].Output = VideoOutputLabel
	}

	return models.FilterChain{Stages: stages, Output: VideoOutputLabel}
}

// musicChain joins tracks end to end. With a positive crossfade each pair is
// joined by a triangular acrossfade; with zero a single concat is used. A
// bed of fewer than two tracks needs no filter.
func musicChain(bed models.MusicBed) models.FilterChain {
	n := len(bed.Tracks)
	if n < 2 {
		return models.FilterChain{}
	}

	if bed.CrossfadeSeconds <= 0 {
		inputs := make([]string, n)
		for i := range inputs {
			inputs[i] = strconv.Itoa(i)
		}
		return models.FilterChain{
			Stages: []models.FilterStage{{
				Inputs: inputs,
				Filter: "concat",
				Options: []models.FilterOption{
					{Key: "n", Value: strconv.Itoa(n)},
					{Key: "v", Value: "0"},
					{Key: "a", Value: "1"},
				},
				Output: MusicOutputLabel,
			}},
			Output: MusicOutputLabel,
		}
	}

	stages := make([]models.FilterStage, 0, n-1)
	prev := "0"
	for i := 1; i < n; i++ {
		out := fmt.Sprintf("m%d", i)
		if i == n-1 {
			out = MusicOutputLabel
		}
		stages = append(stages, models.FilterStage{
			Inputs: []string{prev, strconv.Itoa(i)},
			Filter: "acrossfade",
			Options: []models.FilterOption{
				{Key: "d", Value: formatNumber(bed.CrossfadeSeconds)},
				{Key: "c1", Value: crossfadeCurve},
				{Key: "c2", Value: crossfadeCurve},
			},
			Output: out,
		})
		prev = out
	}
	return models.FilterChain{Stages: stages, Output: MusicOutputLabel}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
