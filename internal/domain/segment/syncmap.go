package segment

import (
	"math"
	"strings"
)

// Timing heuristics. The mapping is an estimate from reading speed, not
// forced alignment against the waveform; sub-50ms accuracy is aspirational.
const (
	defaultWordsPerMinute = 150.0
	charsPerWord          = 5.0

	sentencePause = 0.5
	commaPause    = 0.3
	minDuration   = 0.1
)

// Timing is the estimated playback span for one segment.
type Timing struct {
	SegmentIndex int     `json:"segment_index"`
	Start        float64 `json:"start_time"`
	End          float64 `json:"end_time"`
	Confidence   float64 `json:"confidence"`
}

// Mapping is the ordered time-to-text table for one artifact.
type Mapping struct {
	ArtifactID    string   `json:"artifact_id"`
	Timings       []Timing `json:"timings"`
	TotalDuration float64  `json:"total_duration"`
	Quality       string   `json:"quality"`
}

// BuildMapping estimates per-segment timing from word counts at a fixed
// reading rate. When actualDuration is positive the mapping is scaled so the
// final segment ends exactly at the audio's real end.
func BuildMapping(artifactID string, segments []Segment, actualDuration float64) Mapping {
	mapping := Mapping{ArtifactID: artifactID, Quality: "poor"}
	if len(segments) == 0 {
		return mapping
	}

	wordsPerSecond := defaultWordsPerMinute / 60.0

	current := 0.0
	for _, seg := range segments {
		words := countWords(seg.Text)
		duration := float64(words) / wordsPerSecond
		duration = adjustDuration(seg.Text, duration)

		mapping.Timings = append(mapping.Timings, Timing{
			SegmentIndex: seg.Index,
			Start:        round3(current),
			End:          round3(current + duration),
			Confidence:   confidence(seg.Text, duration),
		})
		current += duration
	}
	mapping.TotalDuration = round3(current)

	if actualDuration > 0 {
		normalize(&mapping, actualDuration)
	}
	mapping.Quality = grade(mapping)
	return mapping
}

func countWords(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		// Fall back to the character heuristic for unbroken runs.
		words = int(math.Ceil(float64(len(text)) / charsPerWord))
	}
	return words
}

// adjustDuration applies the pacing heuristics: punctuation pauses, faster
// dialogue, slower long sentences.
func adjustDuration(text string, duration float64) float64 {
	pauses := strings.Count(text, ",") + strings.Count(text, ";") + strings.Count(text, ":")
	duration += float64(pauses) * commaPause
	duration += sentencePause

	if strings.ContainsAny(text, `"'`) {
		duration *= 0.9
	}
	if len(strings.Fields(text)) > 20 {
		duration *= 1.1
	}
	return math.Max(duration, minDuration)
}

func confidence(text string, duration float64) float64 {
	c := 0.8
	words := len(strings.Fields(text))
	if words > 10 {
		c += 0.1
	}
	if words < 3 {
		c -= 0.2
	}
	if duration >= 1.0 && duration <= 10.0 {
		c += 0.1
	} else if duration > 15.0 {
		c -= 0.2
	}
	return math.Max(0.1, math.Min(1.0, c))
}

// normalize scales all timings so the mapping spans exactly total, then
// closes any rounding gaps between adjacent segments.
func normalize(m *Mapping, total float64) {
	last := m.Timings[len(m.Timings)-1].End
	if last <= 0 {
		return
	}
	scale := total / last
	for i := range m.Timings {
		m.Timings[i].Start = round3(m.Timings[i].Start * scale)
		m.Timings[i].End = round3(m.Timings[i].End * scale)
	}
	for i := 1; i < len(m.Timings); i++ {
		m.Timings[i].Start = m.Timings[i-1].End
	}
	m.TotalDuration = round3(total)
}

func grade(m Mapping) string {
	if len(m.Timings) == 0 {
		return "poor"
	}
	sum := 0.0
	durations := 0.0
	for _, t := range m.Timings {
		sum += t.Confidence
		durations += t.End - t.Start
	}
	avgConfidence := sum / float64(len(m.Timings))
	avgDuration := durations / float64(len(m.Timings))

	switch {
	case avgConfidence > 0.85 && avgDuration >= 0.5 && avgDuration <= 8.0:
		return "excellent"
	case avgConfidence > 0.7 && avgDuration >= 0.3 && avgDuration <= 12.0:
		return "good"
	case avgConfidence > 0.5:
		return "fair"
	default:
		return "poor"
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
