package models

// Line is one narrative text block. Index is its position in the narrative
// and drives every downstream ordering.
type Line struct {
	Index int
	Text  string
}

// LineAsset pairs the rendered subtitle image and synthesized voice clip for
// one line. An empty path means that artifact was not produced.
type LineAsset struct {
	LineIndex int
	ImagePath string
	VoicePath string
}

// TimelineEntry is the inclusive frame window [StartFrame, EndFrame] of one line.
type TimelineEntry struct {
	LineIndex      int
	StartFrame     int
	EndFrame       int
	DurationFrames int
	// Fallback is set when the line's clip could not be measured and the
	// fallback duration was used instead.
	Fallback bool
}

// Window returns the entry's inclusive frame window.
func (e TimelineEntry) Window() FrameWindow {
	return FrameWindow{Start: e.StartFrame, End: e.EndFrame}
}

// Timeline is the frame-accurate layout of all lines.
type Timeline struct {
	FPS         float64
	Entries     []TimelineEntry
	TotalFrames int
}

// Seconds returns the render duration.
func (t Timeline) Seconds() float64 {
	if t.FPS <= 0 {
		return 0
	}
	return float64(t.TotalFrames) / t.FPS
}

// StartSeconds returns the time at which entry i begins.
func (t Timeline) StartSeconds(i int) float64 {
	return float64(t.Entries[i].StartFrame) / t.FPS
}

// EndSeconds returns the time just after entry i's last frame.
func (t Timeline) EndSeconds(i int) float64 {
	return float64(t.Entries[i].EndFrame+1) / t.FPS
}

// FrameWindow is an inclusive frame range during which an overlay is shown.
type FrameWindow struct {
	Start int
	End   int
}

// MusicBed is the ordered list of background tracks joined by crossfades.
type MusicBed struct {
	Tracks           []string
	CrossfadeSeconds float64
}

// VoiceInsert places a voice clip at PadOffsetSeconds on the silence canvas.
type VoiceInsert struct {
	LineIndex        int
	VoicePath        string
	PadOffsetSeconds float64
}

// MixWeights are the relative volumes used for the final mix.
type MixWeights struct {
	Music float64
	Voice float64
}

// AudioMixSpec is derived from a Timeline and a MusicBed.
type AudioMixSpec struct {
	SilenceSeconds float64
	SampleRate     int
	VoiceInserts   []VoiceInsert
	MusicBed       MusicBed
	Weights        MixWeights
}

// OverlayInput is one subtitle image with its display window.
type OverlayInput struct {
	LineIndex int
	Path      string
	Window    FrameWindow
}

// Crossfade joins Track onto the running music bed.
type Crossfade struct {
	Track    string
	Duration float64
	Curve    string
}

// FilterOption is one key=value argument of a filter.
type FilterOption struct {
	Key   string
	Value string
}

// FilterStage is a single node in a linear filter chain.
type FilterStage struct {
	Inputs  []string
	Filter  string
	Options []FilterOption
	Output  string
}

// FilterChain is an ordered list of stages; each stage consumes the
// previous stage's output label. Output names the final label.
type FilterChain struct {
	Stages []FilterStage
	Output string
}

// FilterGraph is a read-only view computed from a Timeline and MusicBed.
type FilterGraph struct {
	VideoInputs     []OverlayInput
	MusicCrossfades []Crossfade
	Video           FilterChain
	Music           FilterChain
}

// FrameSize is the output resolution in pixels.
type FrameSize struct {
	Width  int
	Height int
}

// RenderJob aggregates everything needed for one composition run.
type RenderJob struct {
	OutputPath        string
	FPS               float64
	Size              FrameSize
	BackgroundFootage string
	Timeline          Timeline
	Audio             AudioMixSpec
	Graph             FilterGraph
}
