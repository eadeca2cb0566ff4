package tts

import (
	"context"
	"fmt"
	"strings"
	"testing"

	platformtest "bookaudio-server-go/internal/platform/testing"
)

type fakeProvider struct {
	name  string
	calls int
	fail  bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (*Result, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("backend down")
	}
	return &Result{
		Audio:      []byte(strings.Repeat("a", len(text)*10)),
		Format:     "mp3",
		SampleRate: 24000,
	}, nil
}

func (f *fakeProvider) Voices() []Voice {
	return []Voice{{ID: f.name + "-voice", Name: f.name}}
}

func newTestOrchestrator(t *testing.T, names ...string) (*Orchestrator, map[string]*fakeProvider) {
	t.Helper()
	o := NewOrchestrator(platformtest.SetupTestLogger(t).Slog())
	fakes := make(map[string]*fakeProvider)
	for _, name := range names {
		f := &fakeProvider{name: name}
		fakes[name] = f
		o.Register(f)
	}
	return o, fakes
}

func TestSelectByTextLength(t *testing.T) {
	o, _ := newTestOrchestrator(t, ProviderEdge, ProviderOpenAI, ProviderDoubao)

	cases := []struct {
		textLen int
		want    string
	}{
		{100, ProviderEdge},
		{999, ProviderEdge},
		{1000, ProviderOpenAI},
		{4999, ProviderOpenAI},
		{5000, ProviderDoubao},
		{50000, ProviderDoubao},
	}
	for _, tc := range cases {
		p, err := o.Select(tc.textLen, "")
		if err != nil {
			t.Fatalf("select for %d chars: %v", tc.textLen, err)
		}
		if p.Name() != tc.want {
			t.Fatalf("for %d chars expected %s, got %s", tc.textLen, tc.want, p.Name())
		}
	}
}

func TestSelectPreferredProviderWins(t *testing.T) {
	o, _ := newTestOrchestrator(t, ProviderEdge, ProviderDoubao)

	p, err := o.Select(50, ProviderDoubao)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderDoubao {
		t.Fatalf("expected preferred doubao, got %s", p.Name())
	}

	if _, err := o.Select(50, "nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestSelectFallsBackWhenTierMissing(t *testing.T) {
	o, _ := newTestOrchestrator(t, ProviderEdge)

	p, err := o.Select(100000, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderEdge {
		t.Fatalf("expected fallback to edge, got %s", p.Name())
	}
}

func TestSynthesizeFillsDuration(t *testing.T) {
	o, fakes := newTestOrchestrator(t, ProviderEdge)
	p, _ := o.Select(10, "")

	desc, err := o.Synthesize(context.Background(), p, "hello world", SynthesisOptions{Voice: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if fakes[ProviderEdge].calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", fakes[ProviderEdge].calls)
	}
	if desc.Duration <= 0 {
		t.Fatalf("expected estimated duration, got %f", desc.Duration)
	}
	if desc.Provider != ProviderEdge || desc.Voice != "v1" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	o, _ := newTestOrchestrator(t, ProviderEdge)
	p, _ := o.Select(10, "")

	if _, err := o.Synthesize(context.Background(), p, "", SynthesisOptions{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestCircuitBreakerTripsAfterRepeatedFailures(t *testing.T) {
	o, fakes := newTestOrchestrator(t, ProviderEdge)
	fakes[ProviderEdge].fail = true
	p, _ := o.Select(10, "")

	for i := 0; i < 5; i++ {
		if _, err := o.Synthesize(context.Background(), p, "text", SynthesisOptions{}); err == nil {
			t.Fatal("expected failure")
		}
	}
	callsBefore := fakes[ProviderEdge].calls

	// Tripped breaker must short-circuit without touching the backend.
	if _, err := o.Synthesize(context.Background(), p, "text", SynthesisOptions{}); err == nil {
		t.Fatal("expected breaker error")
	}
	if fakes[ProviderEdge].calls != callsBefore {
		t.Fatalf("breaker did not short-circuit: %d calls", fakes[ProviderEdge].calls)
	}
}

func TestVoicesAggregated(t *testing.T) {
	o, _ := newTestOrchestrator(t, ProviderDoubao, ProviderEdge)

	voices := o.Voices()
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	// Sorted by provider name.
	if voices[0].Provider != ProviderDoubao || voices[1].Provider != ProviderEdge {
		t.Fatalf("unexpected order: %+v", voices)
	}
}
