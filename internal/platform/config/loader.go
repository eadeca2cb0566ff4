package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from defaults, an optional yaml file and
// environment variables, in that order of precedence.
type Loader struct {
	path      string
	useDotEnv bool
}

func NewLoader(path string) *Loader {
	return &Loader{
		path:      path,
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	cfg := Default()
	path := ""

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", l.path, err)
			}
			path = l.path
		case os.IsNotExist(err):
			// Missing file falls back to defaults.
		default:
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}

	applyEnvOverrides(cfg)
	return &Result{Config: cfg, Path: path}, nil
}

// applyEnvOverrides injects secrets that should not live in the yaml file.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		tts := cfg.TTS["openai"]
		tts.APIKey = key
		cfg.TTS["openai"] = tts
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		tts := cfg.TTS["openai"]
		tts.BaseURL = base
		cfg.TTS["openai"] = tts
	}
	if appID := os.Getenv("DOUBAO_APPID"); appID != "" {
		tts := cfg.TTS["doubao"]
		tts.AppID = appID
		cfg.TTS["doubao"] = tts
	}
	if token := os.Getenv("DOUBAO_TOKEN"); token != "" {
		tts := cfg.TTS["doubao"]
		tts.Token = token
		cfg.TTS["doubao"] = tts
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
}
