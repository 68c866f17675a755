package models

// SubtitleStyle selects the font used for subtitle images.
type SubtitleStyle struct {
	FontPath string
	FontSize float64
	Color    string
}

// RenderOptions describes one composition run before any asset exists.
type RenderOptions struct {
	OutputPath string
	Title      string
	Lines      []Line
	FPS        float64
	Size       FrameSize
	Subtitle   SubtitleStyle

	Voice      string
	VoiceSpeed float64

	BackgroundFootage string
	// StockKeywords fetches footage when BackgroundFootage is empty.
	StockKeywords    string
	BackgroundMusic  []string
	ShuffleMusic     bool
	CrossfadeSeconds float64
	Weights          MixWeights

	// WriteSubtitles emits an .srt file next to the output.
	WriteSubtitles bool
}

// RenderResult reports where a finished render ended up.
type RenderResult struct {
	OutputPath   string
	SubtitlePath string
	Timeline     Timeline
	Fallbacks    []int
}
