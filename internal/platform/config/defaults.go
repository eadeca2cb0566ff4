package config

import "time"

// Default returns the configuration used when no config file overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8090,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "server.log",
		},
		Storage: StorageConfig{
			DSN: "data/bookaudio.db",
		},
		Blob: BlobConfig{
			Dir:     "data/audio",
			TempDir: "data/audio/tmp",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
			Prefix:  "bookaudio",
		},
		TTS: map[string]TTSConfig{
			"edge": {
				Type:       "edge",
				Voice:      "en-US-AriaNeural",
				Format:     "mp3",
				SampleRate: 24000,
				Speed:      1.0,
			},
			"openai": {
				Type:       "openai",
				Voice:      "nova",
				Format:     "mp3",
				SampleRate: 24000,
				Speed:      1.0,
			},
			"doubao": {
				Type:       "doubao",
				Voice:      "BV503_streaming",
				Format:     "mp3",
				SampleRate: 24000,
				Speed:      1.0,
				BaseURL:    "https://openspeech.bytedance.com/api/v1/tts",
				Cluster:    "volcano_tts",
			},
		},
		Cost: CostConfig{
			ChapterCapUSD: 0.10,
			BookCapUSD:    1.00,
			HourlyCapsUSD: map[string]float64{
				"generate-chapter": 0.50,
				"generate-book":    2.00,
			},
		},
		Cache: CacheConfig{
			MetadataTTL:     Duration(5 * time.Minute),
			AudioTTL:        Duration(30 * time.Minute),
			AudioMaxEntries: 100,
			ArtifactTTL:     Duration(7 * 24 * time.Hour),
		},
		Limits: LimitsConfig{
			StreamRequests:      100,
			StreamWindow:        Duration(15 * time.Minute),
			GenerateRequests:    20,
			GenerateWindow:      Duration(time.Hour),
			HighQualityRequests: 5,
			BandwidthMbps:       10,
		},
		Batch: BatchConfig{
			Size:        3,
			Delay:       Duration(2 * time.Second),
			CallTimeout: Duration(2 * time.Minute),
		},
		Maintenance: MaintenanceConfig{
			SweepInterval:     Duration(time.Hour),
			TempSweepInterval: Duration(10 * time.Minute),
			TempMaxAge:        Duration(15 * time.Minute),
		},
	}
}
