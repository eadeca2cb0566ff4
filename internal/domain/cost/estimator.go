package cost

import (
	"math"
	"strings"

	"bookaudio-server-go/internal/domain/tts"
)

// Per-character USD rates keyed by voice. The rate follows the voice, not
// the provider picked at synthesis time, so an estimate for a given text and
// voice never changes when routing does.
const (
	defaultRatePerChar = 0.000004
	openaiRatePerChar  = 0.000030
	doubaoRatePerChar  = 0.000008
)

var voiceRates = map[string]float64{
	// OpenAI premium voices.
	"nova":    openaiRatePerChar,
	"alloy":   openaiRatePerChar,
	"onyx":    openaiRatePerChar,
	"shimmer": openaiRatePerChar,
	"echo":    openaiRatePerChar,
	"fable":   openaiRatePerChar,
}

// Estimate is the predicted cost of synthesizing one text.
type Estimate struct {
	Chars    int     `json:"character_count"`
	Rate     float64 `json:"rate_per_char"`
	Cost     float64 `json:"estimated_cost"`
	Provider string  `json:"provider"`
	Voice    string  `json:"voice"`
}

// Estimator prices synthesis requests before any provider is called.
type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate prices the text at the voice's per-character rate and reports
// which provider the length heuristic would route to. Identical input always
// produces an identical estimate, and more text never costs less.
func (e *Estimator) Estimate(text, voice string) Estimate {
	chars := len(text)
	rate := RateForVoice(voice)
	return Estimate{
		Chars:    chars,
		Rate:     rate,
		Cost:     Round(rate * float64(chars)),
		Provider: providerForLength(chars),
		Voice:    voice,
	}
}

// RateForVoice looks up the per-character rate for a voice. Unknown voices
// use the default tier rate.
func RateForVoice(voice string) float64 {
	if rate, ok := voiceRates[voice]; ok {
		return rate
	}
	// Doubao voice IDs follow the BV###_streaming convention.
	if strings.HasPrefix(voice, "BV") {
		return doubaoRatePerChar
	}
	return defaultRatePerChar
}

func providerForLength(chars int) string {
	switch {
	case chars < tts.ShortTextLimit:
		return tts.ProviderEdge
	case chars < tts.MidTextLimit:
		return tts.ProviderOpenAI
	default:
		return tts.ProviderDoubao
	}
}

// Round snaps a USD amount to 4 decimal places, the granularity all caps
// and ledgers operate at.
func Round(usd float64) float64 {
	return math.Round(usd*10000) / 10000
}
