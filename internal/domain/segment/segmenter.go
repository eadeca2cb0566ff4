package segment

import "strings"

// Substitutions applied before splitting so downstream synthesis pronounces
// abbreviations naturally. Order matters: longer forms first.
var pronunciationFixes = []struct {
	abbr   string
	spoken string
}{
	{"Mrs.", "Missus"},
	{"Mr.", "Mister"},
	{"Ms.", "Miss"},
	{"Dr.", "Doctor"},
	{"Prof.", "Professor"},
	{"St.", "Saint"},
	{"vs.", "versus"},
	{"etc.", "et cetera"},
}

// Segment is a sentence-level span of chapter text. Offsets index into the
// normalized text and are contiguous across the segment list.
type Segment struct {
	ChapterID string `json:"chapter_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// Normalize rewrites pronunciation-sensitive abbreviations. Exposed so the
// synthesis path sends providers the same text the segmenter indexed.
func Normalize(text string) string {
	for _, fix := range pronunciationFixes {
		text = strings.ReplaceAll(text, fix.abbr, fix.spoken)
	}
	return text
}

// Split normalizes text and breaks it into sentence segments on runs of
// terminal punctuation. Empty fragments are dropped. The operation is
// deterministic: identical input yields identical segments.
func Split(chapterID, text string) []Segment {
	normalized := Normalize(text)

	var segments []Segment
	offset := 0

	for _, raw := range splitSentences(normalized) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		segments = append(segments, Segment{
			ChapterID: chapterID,
			Index:     len(segments),
			Text:      trimmed,
			Start:     offset,
			End:       offset + len(trimmed),
		})
		// +1 for the stripped delimiter.
		offset += len(trimmed) + 1
	}
	return segments
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// splitSentences cuts on runs of sentence-terminal punctuation, treating a
// run like "?!" or "..." as a single delimiter.
func splitSentences(text string) []string {
	var parts []string
	var current strings.Builder
	inDelimiter := false

	for _, r := range text {
		if isTerminal(r) {
			inDelimiter = true
			continue
		}
		if inDelimiter {
			parts = append(parts, current.String())
			current.Reset()
			inDelimiter = false
		}
		current.WriteRune(r)
	}
	parts = append(parts, current.String())
	return parts
}
