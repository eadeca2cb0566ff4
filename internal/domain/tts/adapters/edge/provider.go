package edge

import (
	"context"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"bookaudio-server-go/internal/domain/tts"
	"bookaudio-server-go/internal/platform/config"
)

// Provider synthesizes speech through the Microsoft Edge neural voices. The
// service is free, which makes it the default tier for short chapters.
type Provider struct {
	voice      string
	format     string
	sampleRate int
}

func New(cfg config.TTSConfig) *Provider {
	p := &Provider{
		voice:      cfg.Voice,
		format:     cfg.Format,
		sampleRate: cfg.SampleRate,
	}
	if p.voice == "" {
		p.voice = "en-US-AriaNeural"
	}
	if p.format == "" {
		p.format = "mp3"
	}
	if p.sampleRate <= 0 {
		p.sampleRate = 24000
	}
	return p
}

func (p *Provider) Name() string {
	return tts.ProviderEdge
}

func (p *Provider) Synthesize(ctx context.Context, text string, opts tts.SynthesisOptions) (*tts.Result, error) {
	voice := opts.Voice
	if voice == "" {
		voice = p.voice
	}

	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(voice))
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "create communicator", Err: err}
	}

	// Stream blocks on the network and takes no context, so it runs in a
	// goroutine while we watch for cancellation.
	type output struct {
		data []byte
		err  error
	}
	done := make(chan output, 1)
	go func() {
		data, err := communicate.Stream()
		done <- output{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "canceled", Err: ctx.Err()}
	case out := <-done:
		if out.err != nil {
			return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "synthesis", Err: out.err}
		}
		return &tts.Result{
			Audio:      out.data,
			Format:     p.format,
			SampleRate: p.sampleRate,
			BitRate:    128000,
		}, nil
	}
}

func (p *Provider) Voices() []tts.Voice {
	return []tts.Voice{
		{ID: "en-US-AriaNeural", Name: "Aria", Language: "en-US", Gender: "Female", Description: "Natural narrator voice"},
		{ID: "en-US-GuyNeural", Name: "Guy", Language: "en-US", Gender: "Male", Description: "Friendly male voice"},
		{ID: "en-GB-SoniaNeural", Name: "Sonia", Language: "en-GB", Gender: "Female", Description: "British female voice"},
		{ID: "zh-CN-XiaoxiaoNeural", Name: "Xiaoxiao", Language: "zh-CN", Gender: "Female", Description: "Mandarin female voice"},
	}
}
