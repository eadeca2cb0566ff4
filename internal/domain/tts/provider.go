package tts

import (
	"context"
	"fmt"
)

// Provider names used by the selection heuristic.
const (
	ProviderEdge   = "edge"
	ProviderOpenAI = "openai"
	ProviderDoubao = "doubao"
)

// SynthesisOptions carries per-request overrides; zero values fall back to
// the adapter's configured defaults.
type SynthesisOptions struct {
	Voice      string
	Language   string
	Speed      float64
	Format     string
	SampleRate int
}

// Result is a provider's raw output. Duration is zero when the backend
// returned no timing metadata; the orchestrator derives an estimate then.
type Result struct {
	Audio      []byte
	Duration   float64
	Format     string
	SampleRate int
	BitRate    int
}

// Provider is one external synthesis backend.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) (*Result, error)
	Voices() []Voice
}

type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

// SynthesisError tags a failure with the backend that produced it. The
// orchestrator never retries across providers; callers decide fallback.
type SynthesisError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis failed on %s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("synthesis failed on %s: %s", e.Provider, e.Reason)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
