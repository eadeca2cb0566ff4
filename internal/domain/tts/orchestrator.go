package tts

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"bookaudio-server-go/internal/platform/errors"
)

// Length thresholds for automatic provider selection. Short chapters go to
// the free tier, mid-length to the premium tier, long ones to the bulk tier.
const (
	ShortTextLimit = 1000
	MidTextLimit   = 5000
)

// Descriptor is the orchestrator's finished product: synthesized audio plus
// the metadata the persistence layer records.
type Descriptor struct {
	Audio      []byte
	Duration   float64
	Provider   string
	Voice      string
	Format     string
	SampleRate int
	BitRate    int
}

// Orchestrator routes synthesis requests to a registered provider and guards
// each backend with a circuit breaker.
type Orchestrator struct {
	mu        sync.RWMutex
	providers map[string]Provider
	breakers  map[string]*circuitBreaker
	logger    *slog.Logger
}

func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		providers: make(map[string]Provider),
		breakers:  make(map[string]*circuitBreaker),
		logger:    logger,
	}
}

func (o *Orchestrator) Register(p Provider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.providers[p.Name()] = p
	o.breakers[p.Name()] = newCircuitBreaker(5, 30*time.Second)
}

// Select picks a provider for the given text length. An explicit preference
// wins when that provider is registered; otherwise the length heuristic
// applies, falling back to whichever provider exists.
func (o *Orchestrator) Select(textLen int, preferred string) (Provider, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if preferred != "" {
		if p, ok := o.providers[preferred]; ok {
			return p, nil
		}
		return nil, errors.New(errors.KindValidation, "tts.select",
			"unknown provider: "+preferred)
	}

	var order []string
	switch {
	case textLen < ShortTextLimit:
		order = []string{ProviderEdge, ProviderOpenAI, ProviderDoubao}
	case textLen < MidTextLimit:
		order = []string{ProviderOpenAI, ProviderDoubao, ProviderEdge}
	default:
		order = []string{ProviderDoubao, ProviderOpenAI, ProviderEdge}
	}
	for _, name := range order {
		if p, ok := o.providers[name]; ok {
			return p, nil
		}
	}
	return nil, errors.New(errors.KindProvider, "tts.select", "no providers registered")
}

// Synthesize runs the chosen provider and fills in duration when the backend
// reported none.
func (o *Orchestrator) Synthesize(ctx context.Context, p Provider, text string, opts SynthesisOptions) (*Descriptor, error) {
	if text == "" {
		return nil, errors.New(errors.KindValidation, "tts.synthesize", "text cannot be empty")
	}

	breaker := o.breaker(p.Name())
	if breaker != nil && breaker.open() {
		return nil, errors.New(errors.KindProvider, "tts.synthesize",
			"provider "+p.Name()+" temporarily unavailable")
	}

	start := time.Now()
	result, err := p.Synthesize(ctx, text, opts)
	if err != nil {
		if breaker != nil {
			breaker.recordFailure()
		}
		o.logger.Error("synthesis failed",
			"provider", p.Name(), "chars", len(text), "error", err)
		return nil, errors.Wrap(errors.KindProvider, "tts.synthesize",
			"synthesis failed", &SynthesisError{Provider: p.Name(), Reason: "backend call", Err: err})
	}
	if breaker != nil {
		breaker.recordSuccess()
	}

	duration := result.Duration
	if duration <= 0 {
		duration = EstimateDuration(result.Audio, result.Format)
	}

	o.logger.Info("synthesis complete",
		"provider", p.Name(),
		"chars", len(text),
		"bytes", len(result.Audio),
		"duration", duration,
		"elapsed", time.Since(start))

	return &Descriptor{
		Audio:      result.Audio,
		Duration:   duration,
		Provider:   p.Name(),
		Voice:      opts.Voice,
		Format:     result.Format,
		SampleRate: result.SampleRate,
		BitRate:    result.BitRate,
	}, nil
}

// Voices aggregates the catalogs of all registered providers, ordered by
// provider name for stable output.
func (o *Orchestrator) Voices() []Voice {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.providers))
	for name := range o.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []Voice
	for _, name := range names {
		for _, v := range o.providers[name].Voices() {
			v.Provider = name
			all = append(all, v)
		}
	}
	return all
}

func (o *Orchestrator) Providers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.providers))
	for name := range o.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *Orchestrator) breaker(name string) *circuitBreaker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.breakers[name]
}

type circuitBreaker struct {
	mu          sync.Mutex
	maxFailures int
	failures    int
	lastFailure time.Time
	retryAfter  time.Duration
	tripped     bool
}

func newCircuitBreaker(maxFailures int, retryAfter time.Duration) *circuitBreaker {
	return &circuitBreaker{maxFailures: maxFailures, retryAfter: retryAfter}
}

func (cb *circuitBreaker) open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.tripped {
		return false
	}
	if time.Since(cb.lastFailure) > cb.retryAfter {
		// Half-open: allow one probe through.
		cb.tripped = false
		cb.failures = cb.maxFailures - 1
		return false
	}
	return true
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.tripped = false
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.maxFailures {
		cb.tripped = true
	}
}
