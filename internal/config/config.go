package config

import "time"

// Config holds every setting the binaries read at startup.
type Config struct {
	LLM     LLMConfig     `koanf:"llm"`
	Search  SearchConfig  `koanf:"search"`
	Reader  ReaderConfig  `koanf:"reader"`
	Server  ServerConfig  `koanf:"server"`
	History HistoryConfig `koanf:"history"`
	Archive ArchiveConfig `koanf:"archive"`
	Tracing TracingConfig `koanf:"tracing"`
	Log     LogConfig     `koanf:"log"`
}

type LLMConfig struct {
	APIKey         string  `koanf:"api_key" validate:"required"`
	BaseURL        string  `koanf:"base_url" validate:"omitempty,url"`
	Model          string  `koanf:"model" validate:"required"`
	Temperature    float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxIterations  int     `koanf:"max_iterations" validate:"gte=1"`
	EmbeddingModel string  `koanf:"embedding_model"`
}

type SearchConfig struct {
	APIKey     string        `koanf:"api_key" validate:"required"`
	Endpoint   string        `koanf:"endpoint" validate:"required,url"`
	NumResults int           `koanf:"num_results" validate:"gte=1,lte=20"`
	Timeout    time.Duration `koanf:"timeout"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
	CacheSize  int           `koanf:"cache_size" validate:"gte=0"`
}

type ReaderConfig struct {
	Enabled  bool          `koanf:"enabled"`
	MaxBytes int64         `koanf:"max_bytes" validate:"gte=1024"`
	MaxChars int           `koanf:"max_chars" validate:"gte=256"`
	Timeout  time.Duration `koanf:"timeout"`
}

type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           string        `koanf:"port" validate:"required,numeric"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	RateLimit      int64         `koanf:"rate_limit" validate:"gte=0"`
	RatePeriod     time.Duration `koanf:"rate_period"`
	AccessTokens   []string      `koanf:"access_tokens"`
	// TrustedProxies lists the proxies whose forwarding headers set the client IP.
	// Empty means the peer address is the client.
	TrustedProxies []string `koanf:"trusted_proxies" validate:"dive,ip|cidr"`
}

type HistoryConfig struct {
	Driver      string `koanf:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `koanf:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=Driver postgres"`
	MaxTurns    int    `koanf:"max_turns" validate:"gte=0"`
}

type ArchiveConfig struct {
	Enabled bool `koanf:"enabled"`
}

type TracingConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint" validate:"required_if=Enabled true"`
	APIKey   string `koanf:"api_key"`
	Project  string `koanf:"project"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:          "gpt-4o",
			Temperature:    0,
			MaxIterations:  8,
			EmbeddingModel: "text-embedding-3-small",
		},
		Search: SearchConfig{
			Endpoint:   "https://serpapi.com/search",
			NumResults: 5,
			Timeout:    20 * time.Second,
			CacheTTL:   10 * time.Minute,
			CacheSize:  256,
		},
		Reader: ReaderConfig{
			Enabled:  true,
			MaxBytes: 5 << 20,
			MaxChars: 8000,
			Timeout:  20 * time.Second,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			RequestTimeout: 120 * time.Second,
			AllowedOrigins: []string{"https://dash-ai-williammiras-projects.vercel.app"},
			RateLimit:      30,
			RatePeriod:     time.Minute,
		},
		History: HistoryConfig{
			Driver:     "memory",
			SQLitePath: "dash.db",
			MaxTurns:   20,
		},
		Tracing: TracingConfig{
			Project: "dash",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
