package openai

import (
	"context"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"bookaudio-server-go/internal/domain/tts"
	"bookaudio-server-go/internal/platform/config"
)

// Provider wraps the OpenAI speech endpoint. This is the premium tier used
// for mid-length chapters and explicit high-quality requests.
type Provider struct {
	client *goopenai.Client
	voice  string
	speed  float64
}

func New(cfg config.TTSConfig) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	p := &Provider{
		client: goopenai.NewClientWithConfig(clientCfg),
		voice:  cfg.Voice,
		speed:  cfg.Speed,
	}
	if p.voice == "" {
		p.voice = string(goopenai.VoiceNova)
	}
	if p.speed <= 0 {
		p.speed = 1.0
	}
	return p
}

func (p *Provider) Name() string {
	return tts.ProviderOpenAI
}

func (p *Provider) Synthesize(ctx context.Context, text string, opts tts.SynthesisOptions) (*tts.Result, error) {
	voice := opts.Voice
	if voice == "" {
		voice = p.voice
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = p.speed
	}

	resp, err := p.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.TTSModel1HD,
		Input:          text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "speech request", Err: err}
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "read response", Err: err}
	}

	return &tts.Result{
		Audio:      audio,
		Format:     "mp3",
		SampleRate: 24000,
		BitRate:    160000,
	}, nil
}

func (p *Provider) Voices() []tts.Voice {
	return []tts.Voice{
		{ID: string(goopenai.VoiceNova), Name: "Nova", Language: "en-US", Gender: "Female", Description: "Bright, energetic narrator"},
		{ID: string(goopenai.VoiceAlloy), Name: "Alloy", Language: "en-US", Gender: "Neutral", Description: "Balanced general-purpose voice"},
		{ID: string(goopenai.VoiceOnyx), Name: "Onyx", Language: "en-US", Gender: "Male", Description: "Deep, authoritative voice"},
		{ID: string(goopenai.VoiceShimmer), Name: "Shimmer", Language: "en-US", Gender: "Female", Description: "Soft, expressive voice"},
	}
}
