package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"narrator/models"
)

// TextProcessor turns free text into narrative Lines
type TextProcessor struct {
	MaxLineLength     int     // Default: 100 chars
	AvgWordsPerMinute float64 // Default: 150 words per minute
}

// NewTextProcessor creates a new text processor
func NewTextProcessor(maxLineLength int) *TextProcessor {
	if maxLineLength <= 0 {
		maxLineLength = 100
	}
	return &TextProcessor{
		MaxLineLength:     maxLineLength,
		AvgWordsPerMinute: 150.0,
	}
}

// TextStats summarizes how a text block will be narrated
type TextStats struct {
	TotalChars        int     `json:"total_chars"`
	TotalWords        int     `json:"total_words"`
	Lines             int     `json:"lines"`
	EstimatedDuration float64 `json:"estimated_duration"`
}

// SplitIntoLines splits text into Lines where each Line is one subtitle image
// and one voice clip. Prioritizes readability and sentence boundaries.
func (tp *TextProcessor) SplitIntoLines(text string) []models.Line {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return []models.Line{}
	}

	chunks := []string{}
	for _, paragraph := range strings.Split(text, "\n") {
		for _, sentence := range tp.splitIntoSentences(paragraph) {
			if len(sentence) <= tp.MaxLineLength {
				chunks = append(chunks, sentence)
				continue
			}
			// Sentence too long, split by clauses (comma, semicolon)
			chunks = append(chunks, tp.splitByClauses(sentence, tp.MaxLineLength)...)
		}
	}

	return NewLines(chunks)
}

// PostLines turns a titled post into Lines: the title first, then the body.
func (tp *TextProcessor) PostLines(title, body string) []models.Line {
	texts := []string{}
	if t := strings.TrimSpace(norm.NFC.String(title)); t != "" {
		texts = append(texts, t)
	}
	for _, line := range tp.SplitIntoLines(body) {
		texts = append(texts, line.Text)
	}
	return NewLines(texts)
}

// NewLines indexes texts in order, dropping blank entries.
func NewLines(texts []string) []models.Line {
	lines := make([]models.Line, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		lines = append(lines, models.Line{Index: len(lines), Text: text})
	}
	return lines
}

// splitByClauses splits a long sentence by punctuation (comma, semicolon) or words if needed
func (tp *TextProcessor) splitByClauses(text string, limit int) []string {
	chunks := []string{}

	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';'
	})

	currentMsg := ""
	for i, part := range parts {
		part = strings.TrimSpace(part)

		// Add comma back if it's not the last part (approximation)
		suffix := ""
		if i < len(parts)-1 {
			suffix = ","
		}

		if len(currentMsg)+len(part)+len(suffix)+1 <= limit {
			if currentMsg != "" {
				currentMsg += " " + part + suffix
			} else {
				currentMsg = part + suffix
			}
			continue
		}

		if currentMsg != "" {
			chunks = append(chunks, currentMsg)
		}
		if len(part+suffix) > limit {
			chunks = append(chunks, tp.smartSplit(part+suffix, limit)...)
			currentMsg = ""
		} else {
			currentMsg = part + suffix
		}
	}

	if currentMsg != "" {
		chunks = append(chunks, currentMsg)
	}

	return chunks
}

// smartSplit splits a long text at the best punctuation or word boundary
// below limit, hard-splitting only when no boundary exists.
func (tp *TextProcessor) smartSplit(text string, limit int) []string {
	var chunks []string
	remaining := text

	for len(remaining) > limit {
		searchStart := limit / 3

		// 1. Try splitting at major punctuation
		splitIdx := -1
		for _, punc := range []string{";", ":", ",", " - ", " — "} {
			if idx := strings.LastIndex(remaining[searchStart:limit], punc); idx != -1 {
				if actual := searchStart + idx + len(punc); actual > splitIdx {
					splitIdx = actual
				}
			}
		}

		// 2. Fallback: last space before limit
		if splitIdx == -1 {
			splitIdx = strings.LastIndex(remaining[:limit], " ")
		}

		// 3. Last resort: hard split at limit, on a rune boundary
		if splitIdx <= 0 {
			splitIdx = limit
			for splitIdx > 0 && !isRuneStart(remaining[splitIdx]) {
				splitIdx--
			}
			if splitIdx == 0 {
				splitIdx = limit
			}
		}

		if chunk := strings.TrimSpace(remaining[:splitIdx]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimSpace(remaining[splitIdx:])
	}

	if remaining != "" {
		chunks = append(chunks, remaining)
	}

	return chunks
}

// EstimateDuration estimates how long it takes to speak the text
func (tp *TextProcessor) EstimateDuration(text string) float64 {
	wordCount := tp.countWords(text)
	if wordCount == 0 {
		return 0.0
	}

	durationSeconds := float64(wordCount) / tp.AvgWordsPerMinute * 60.0

	// Add 10% buffer for natural pauses
	return durationSeconds * 1.1
}

// countWords counts the number of words in text
func (tp *TextProcessor) countWords(text string) int {
	return len(strings.Fields(text))
}

// splitIntoSentences splits text into individual sentences
func (tp *TextProcessor) splitIntoSentences(text string) []string {
	sentences := []string{}
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		// Only split when followed by whitespace, to keep abbreviations like 3.5 intact
		if tp.isSentenceEnding(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	if sentence := strings.TrimSpace(current.String()); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}

// isSentenceEnding checks if character is a sentence ending
func (tp *TextProcessor) isSentenceEnding(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？'
}

// GetStats returns statistics about text processing
func (tp *TextProcessor) GetStats(text string) TextStats {
	lines := tp.SplitIntoLines(text)

	total := 0.0
	for _, line := range lines {
		total += tp.EstimateDuration(line.Text)
	}

	return TextStats{
		TotalChars:        len(text),
		TotalWords:        tp.countWords(text),
		Lines:             len(lines),
		EstimatedDuration: total,
	}
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
