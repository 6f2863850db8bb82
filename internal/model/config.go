package model

import "time"

// Config is the process configuration, assembled from defaults, the config
// file, HEATSHEET_* environment variables and CLI flags.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http" json:"http"`
	Crawl  CrawlConfig  `yaml:"crawl" json:"crawl"`
	Server ServerConfig `yaml:"server" json:"server"`
	Cache  CacheConfig  `yaml:"cache" json:"cache"`
	LLM    LLMConfig    `yaml:"llm" json:"llm"`
	Notify NotifyConfig `yaml:"notify" json:"notify"`
	Output OutputConfig `yaml:"output" json:"output"`
}

// HTTPConfig governs every request the page driver and fetchers issue.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	InsecureTLS       bool          `yaml:"insecure_tls" json:"insecure_tls"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	HTTPProxy         string        `yaml:"http_proxy" json:"http_proxy,omitempty"`
	HTTPSProxy        string        `yaml:"https_proxy" json:"https_proxy,omitempty"`
	NoProxy           string        `yaml:"no_proxy" json:"no_proxy,omitempty"`
}

// CrawlConfig governs the navigation machine and the meet worker pool.
type CrawlConfig struct {
	MeetTimeout  time.Duration `yaml:"meet_timeout" json:"meet_timeout"`
	PollTimeout  time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Workers      int           `yaml:"workers" json:"workers"`
	ResultsDir   string        `yaml:"results_dir" json:"results_dir"`
	DebugDir     string        `yaml:"debug_dir" json:"debug_dir"`
}

// ServerConfig configures the HTTP trigger service.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// CacheConfig configures the layered page/document cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Dir       string        `yaml:"dir" json:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" json:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" json:"disk_ttl"`
}

// LLMConfig configures the optional ambiguity annotator. Empty provider
// means disabled; annotations are advisory and never change a dictionary.
type LLMConfig struct {
	Provider  string `yaml:"provider" json:"provider,omitempty"`
	Model     string `yaml:"model" json:"model,omitempty"`
	APIKey    string `yaml:"-" json:"-"` // environment only, never persisted
	BaseURL   string `yaml:"base_url" json:"base_url,omitempty"`
	Timeout   int    `yaml:"timeout" json:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`
}

// NotifyConfig configures the optional meet-complete publisher. No brokers
// means disabled.
type NotifyConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers,omitempty"`
	Topic   string   `yaml:"topic" json:"topic,omitempty"`
}

// OutputConfig holds CLI presentation knobs.
type OutputConfig struct {
	Verbose bool   `yaml:"verbose" json:"verbose"`
	Format  string `yaml:"format" json:"format"` // json or csv, calendar command only
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "Heatsheet/0.3 (+https://github.com/ppiankov/heatsheet)",
			MaxBodyBytes:      4_000_000,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Crawl: CrawlConfig{
			MeetTimeout:  20 * time.Minute,
			PollTimeout:  30 * time.Second,
			PollInterval: 500 * time.Millisecond,
			Workers:      2,
			ResultsDir:   "results",
			DebugDir:     "debug",
		},
		Server: ServerConfig{
			Addr: ":8077",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".heatsheet-cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 400,
		},
		Notify: NotifyConfig{
			Topic: "meets.crawled",
		},
		Output: OutputConfig{
			Format: "csv",
		},
	}
}
