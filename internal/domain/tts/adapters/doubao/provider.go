package doubao

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bookaudio-server-go/internal/domain/tts"
	"bookaudio-server-go/internal/platform/config"
)

const defaultAPIURL = "https://openspeech.bytedance.com/api/v1/tts"

// Provider calls the Volcengine (Doubao) speech API. Its bulk pricing makes
// it the tier of choice for long chapters.
type Provider struct {
	appID   string
	token   string
	cluster string
	apiURL  string
	voice   string
	speed   float64
	client  *http.Client
}

func New(cfg config.TTSConfig) *Provider {
	p := &Provider{
		appID:   cfg.AppID,
		token:   cfg.Token,
		cluster: cfg.Cluster,
		apiURL:  cfg.BaseURL,
		voice:   cfg.Voice,
		speed:   cfg.Speed,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	if p.apiURL == "" {
		p.apiURL = defaultAPIURL
	}
	if p.cluster == "" {
		p.cluster = "volcano_tts"
	}
	if p.voice == "" {
		p.voice = "BV503_streaming"
	}
	if p.speed <= 0 {
		p.speed = 1.0
	}
	return p
}

func (p *Provider) Name() string {
	return tts.ProviderDoubao
}

type apiRequest struct {
	App     appPayload     `json:"app"`
	User    userPayload    `json:"user"`
	Audio   audioPayload   `json:"audio"`
	Request requestPayload `json:"request"`
}

type appPayload struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type userPayload struct {
	UID string `json:"uid"`
}

type audioPayload struct {
	VoiceType  string  `json:"voice_type"`
	Encoding   string  `json:"encoding"`
	SpeedRatio float64 `json:"speed_ratio"`
}

type requestPayload struct {
	ReqID     string `json:"reqid"`
	Text      string `json:"text"`
	TextType  string `json:"text_type"`
	Operation string `json:"operation"`
}

type apiResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration"`
	} `json:"addition"`
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

	payload := apiRequest{
		App:   appPayload{AppID: p.appID, Token: p.token, Cluster: p.cluster},
		User:  userPayload{UID: uuid.NewString()},
		Audio: audioPayload{VoiceType: voice, Encoding: "mp3", SpeedRatio: speed},
		Request: requestPayload{
			ReqID:     uuid.NewString(),
			Text:      text,
			TextType:  "plain",
			Operation: "query",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer;"+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "http call", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &tts.SynthesisError{Provider: p.Name(),
			Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "decode response", Err: err}
	}
	if parsed.Code != 3000 {
		return nil, &tts.SynthesisError{Provider: p.Name(),
			Reason: fmt.Sprintf("api error %d: %s", parsed.Code, parsed.Message)}
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		return nil, &tts.SynthesisError{Provider: p.Name(), Reason: "decode audio", Err: err}
	}

	result := &tts.Result{
		Audio:      audio,
		Format:     "mp3",
		SampleRate: 24000,
		BitRate:    128000,
	}
	if ms := parseDurationMs(parsed.Addition.Duration); ms > 0 {
		result.Duration = float64(ms) / 1000.0
	}
	return result, nil
}

func parseDurationMs(s string) int64 {
	var ms int64
	if s == "" {
		return 0
	}
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return 0
	}
	return ms
}

func (p *Provider) Voices() []tts.Voice {
	return []tts.Voice{
		{ID: "BV503_streaming", Name: "Ava", Language: "en-US", Gender: "Female", Description: "Long-form narration voice"},
		{ID: "BV702_streaming", Name: "Stefan", Language: "en-US", Gender: "Male", Description: "Calm narration voice"},
		{ID: "BV001_streaming", Name: "Tongyong", Language: "zh-CN", Gender: "Female", Description: "Mandarin narration voice"},
	}
}
