package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"narrator/models"
	"narrator/utils"
)

// FormatSRT renders the timeline as SubRip cues using the same frame windows
// as the video overlays.
func FormatSRT(tl models.Timeline, lines []models.Line) string {
	text := make(map[int]string, len(lines))
	for _, l := range lines {
		text[l.Index] = l.Text
	}

	var b strings.Builder
	for i, e := range tl.Entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			utils.FormatSRTTimestamp(tl.StartSeconds(i)),
			utils.FormatSRTTimestamp(tl.EndSeconds(i)),
			text[e.LineIndex],
		)
	}
	return b.String()
}

// WriteSRT writes FormatSRT output to path.
func WriteSRT(path string, tl models.Timeline, lines []models.Line) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(FormatSRT(tl, lines)), 0o644)
}
