package services

import (
	"fmt"
	"strings"
)

// pauseToken marks a dramatic pause inside a line.
const pauseToken = " - "

// RewritePauses turns the pause delimiter into an ellipsis, which speech
// engines read as a longer break.
func RewritePauses(text string) string {
	return strings.ReplaceAll(text, pauseToken, "...")
}

// ProsodyRate formats a rate multiplier as a relative SSML rate, 1.2 -> "+20%".
func ProsodyRate(rate float64) string {
	return fmt.Sprintf("%+.0f%%", (rate-1)*100)
}

// WrapProsody wraps text in an SSML prosody element for providers that
// accept markup.
func WrapProsody(text string, rate float64) string {
	return fmt.Sprintf(`<prosody rate="%s">%s</prosody>`, ProsodyRate(rate), escapeSSML(text))
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeSSML(s string) string {
	return ssmlEscaper.Replace(s)
}
