package config

type Config struct {
	Server      ServerConfig         `yaml:"server"`
	Log         LogConfig            `yaml:"log"`
	Storage     StorageConfig        `yaml:"storage"`
	Blob        BlobConfig           `yaml:"blob"`
	Redis       RedisConfig          `yaml:"redis"`
	TTS         map[string]TTSConfig `yaml:"tts"`
	Cost        CostConfig           `yaml:"cost"`
	Cache       CacheConfig          `yaml:"cache"`
	Limits      LimitsConfig         `yaml:"limits"`
	Batch       BatchConfig          `yaml:"batch"`
	Maintenance MaintenanceConfig    `yaml:"maintenance"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

type BlobConfig struct {
	Dir     string `yaml:"dir"`
	TempDir string `yaml:"temp_dir"`
}

// RedisConfig enables the redis-backed ledgers. When disabled the in-memory
// ledgers are used, which is sufficient for a single process.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type TTSConfig struct {
	Type       string  `yaml:"type"`
	Voice      string  `yaml:"voice"`
	Format     string  `yaml:"format"`
	SampleRate int     `yaml:"sample_rate"`
	Speed      float64 `yaml:"speed"`
	APIKey     string  `yaml:"api_key"`
	BaseURL    string  `yaml:"url"`
	AppID      string  `yaml:"appid"`
	Token      string  `yaml:"token"`
	Cluster    string  `yaml:"cluster"`
}

type CostConfig struct {
	ChapterCapUSD float64 `yaml:"chapter_cap_usd"`
	BookCapUSD    float64 `yaml:"book_cap_usd"`
	// Per-requester rolling-hour ceilings keyed by endpoint.
	HourlyCapsUSD map[string]float64 `yaml:"hourly_caps_usd"`
}

type CacheConfig struct {
	MetadataTTL     Duration `yaml:"metadata_ttl"`
	AudioTTL        Duration `yaml:"audio_ttl"`
	AudioMaxEntries int      `yaml:"audio_max_entries"`
	// How long a persisted artifact stays eligible for serving before the
	// maintenance sweep removes it.
	ArtifactTTL Duration `yaml:"artifact_ttl"`
}

type LimitsConfig struct {
	StreamRequests   int      `yaml:"stream_requests"`
	StreamWindow     Duration `yaml:"stream_window"`
	GenerateRequests int      `yaml:"generate_requests"`
	GenerateWindow   Duration `yaml:"generate_window"`
	// Stricter generation ceiling applied to high-quality requests.
	HighQualityRequests int     `yaml:"high_quality_requests"`
	BandwidthMbps       float64 `yaml:"bandwidth_mbps"`
}

type BatchConfig struct {
	Size  int      `yaml:"size"`
	Delay Duration `yaml:"delay"`
	// Deadline applied to each provider call inside a batch member.
	CallTimeout Duration `yaml:"call_timeout"`
}

type MaintenanceConfig struct {
	SweepInterval     Duration `yaml:"sweep_interval"`
	TempSweepInterval Duration `yaml:"temp_sweep_interval"`
	TempMaxAge        Duration `yaml:"temp_max_age"`
}
