package segment

import (
	"math"
	"testing"
)

func TestBuildMappingOrderedAndContiguous(t *testing.T) {
	segments := Split("ch-1", "The carriage arrived at noon. Everyone hurried outside to greet the visitors. It began to rain.")
	mapping := BuildMapping("art-1", segments, 0)

	if len(mapping.Timings) != len(segments) {
		t.Fatalf("expected %d timings, got %d", len(segments), len(mapping.Timings))
	}
	for i, timing := range mapping.Timings {
		if timing.SegmentIndex != i {
			t.Fatalf("timing %d out of order: %+v", i, timing)
		}
		if timing.End <= timing.Start {
			t.Fatalf("timing %d not increasing: %+v", i, timing)
		}
		if i > 0 && math.Abs(timing.Start-mapping.Timings[i-1].End) > 0.002 {
			t.Fatalf("timing %d not contiguous with previous", i)
		}
	}
	if mapping.TotalDuration <= 0 {
		t.Fatal("expected positive total duration")
	}
}

func TestBuildMappingNormalizesToActualDuration(t *testing.T) {
	segments := Split("ch-1", "A short one. A somewhat longer sentence follows here. The end.")
	mapping := BuildMapping("art-1", segments, 42.0)

	if mapping.TotalDuration != 42.0 {
		t.Fatalf("expected total 42.0, got %f", mapping.TotalDuration)
	}
	last := mapping.Timings[len(mapping.Timings)-1]
	if math.Abs(last.End-42.0) > 0.01 {
		t.Fatalf("expected last end near 42.0, got %f", last.End)
	}
	for i := 1; i < len(mapping.Timings); i++ {
		if mapping.Timings[i].Start != mapping.Timings[i-1].End {
			t.Fatalf("gap between timings %d and %d", i-1, i)
		}
	}
}

func TestBuildMappingLongerTextTakesLonger(t *testing.T) {
	short := BuildMapping("a", Split("ch", "Hello there."), 0)
	long := BuildMapping("b", Split("ch", "Hello there, and welcome to a considerably longer sentence that takes more time to read aloud."), 0)

	if long.TotalDuration <= short.TotalDuration {
		t.Fatalf("expected longer text to map to longer duration: %f vs %f",
			long.TotalDuration, short.TotalDuration)
	}
}

func TestBuildMappingEmptySegments(t *testing.T) {
	mapping := BuildMapping("art-1", nil, 10)
	if len(mapping.Timings) != 0 || mapping.Quality != "poor" {
		t.Fatalf("unexpected mapping for empty input: %+v", mapping)
	}
}

func TestConfidenceBounds(t *testing.T) {
	segments := Split("ch-1", "Go. Now.")
	mapping := BuildMapping("art-1", segments, 0)
	for _, timing := range mapping.Timings {
		if timing.Confidence < 0.1 || timing.Confidence > 1.0 {
			t.Fatalf("confidence out of bounds: %+v", timing)
		}
	}
}
