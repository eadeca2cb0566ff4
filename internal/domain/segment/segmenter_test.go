package segment

import (
	"reflect"
	"testing"
)

const austenOpening = "It is a truth universally acknowledged, that a single man in possession of a good fortune, must be in want of a wife."

func TestSplitSingleSentenceStripsTerminalPeriod(t *testing.T) {
	segments := Split("ch-1", austenOpening)

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Text != austenOpening[:len(austenOpening)-1] {
		t.Fatalf("expected terminal period stripped, got %q", seg.Text)
	}
	if seg.Start != 0 || seg.End != len(seg.Text) {
		t.Fatalf("unexpected offsets: %d-%d", seg.Start, seg.End)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	text := "First sentence. Second one! Third, with a comma? Fourth."
	first := Split("ch-1", text)
	second := Split("ch-1", text)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical input must produce identical segments")
	}
	if len(first) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(first))
	}
}

func TestSplitOffsetsAreContiguousAndOrdered(t *testing.T) {
	text := "One. Two. Three."
	segments := Split("ch-1", text)

	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
		if seg.End != seg.Start+len(seg.Text) {
			t.Fatalf("segment %d end mismatch: %+v", i, seg)
		}
		if i > 0 {
			prev := segments[i-1]
			if seg.Start != prev.End+1 {
				t.Fatalf("segment %d not contiguous: prev end %d, start %d", i, prev.End, seg.Start)
			}
		}
	}
}

func TestSplitDropsEmptyFragments(t *testing.T) {
	segments := Split("ch-1", "Wait... what?! Really.")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	if segments[0].Text != "Wait" || segments[1].Text != "what" || segments[2].Text != "Really" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestNormalizeExpandsAbbreviations(t *testing.T) {
	got := Normalize("Mr. Darcy met Mrs. Bennet and Dr. Jones.")
	want := "Mister Darcy met Missus Bennet and Doctor Jones."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	// Abbreviation periods must not create segment boundaries.
	segments := Split("ch-1", "Mr. Darcy smiled. He left.")
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}
	if segments[0].Text != "Mister Darcy smiled" {
		t.Fatalf("unexpected first segment: %q", segments[0].Text)
	}
}

func TestSplitEmptyText(t *testing.T) {
	if segments := Split("ch-1", ""); len(segments) != 0 {
		t.Fatalf("expected no segments, got %+v", segments)
	}
	if segments := Split("ch-1", "   ...   "); len(segments) != 0 {
		t.Fatalf("expected no segments for punctuation only, got %+v", segments)
	}
}
