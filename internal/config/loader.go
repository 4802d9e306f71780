package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ErrInvalidConfig marks a configuration that cannot start the service.
var ErrInvalidConfig = errors.New("invalid configuration")

// envMappings maps environment variables onto config keys.
var envMappings = map[string]string{
	"OPENAI_API_KEY":              "llm.api_key",
	"OPENAI_BASE_URL":             "llm.base_url",
	"DASH_MODEL":                  "llm.model",
	"DASH_TEMPERATURE":            "llm.temperature",
	"DASH_MAX_ITERATIONS":         "llm.max_iterations",
	"DASH_EMBEDDING_MODEL":        "llm.embedding_model",
	"SERPAPI_API_KEY":             "search.api_key",
	"SERPAPI_ENDPOINT":            "search.endpoint",
	"DASH_SEARCH_RESULTS":         "search.num_results",
	"DASH_SEARCH_TIMEOUT":         "search.timeout",
	"DASH_SEARCH_CACHE_TTL":       "search.cache_ttl",
	"DASH_SEARCH_CACHE_SIZE":      "search.cache_size",
	"DASH_READER_ENABLED":         "reader.enabled",
	"DASH_READER_MAX_BYTES":       "reader.max_bytes",
	"DASH_READER_MAX_CHARS":       "reader.max_chars",
	"DASH_READER_TIMEOUT":         "reader.timeout",
	"IP_ADDRESS":                  "server.host",
	"PORT":                        "server.port",
	"DASH_REQUEST_TIMEOUT":        "server.request_timeout",
	"DASH_ALLOWED_ORIGINS":        "server.allowed_origins",
	"DASH_RATE_LIMIT":             "server.rate_limit",
	"DASH_RATE_PERIOD":            "server.rate_period",
	"DASH_ACCESS_TOKENS":          "server.access_tokens",
	"DASH_TRUSTED_PROXIES":        "server.trusted_proxies",
	"DASH_HISTORY_DRIVER":         "history.driver",
	"DB_PATH":                     "history.sqlite_path",
	"DB_CONNECTION_STRING":        "history.postgres_dsn",
	"DASH_HISTORY_MAX_TURNS":      "history.max_turns",
	"DASH_ARCHIVE_ENABLED":        "archive.enabled",
	"TRACING_ENABLED":             "tracing.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "tracing.endpoint",
	"TRACING_API_KEY":             "tracing.api_key",
	"TRACING_PROJECT":             "tracing.project",
	"LOG_LEVEL":                   "log.level",
	"LOG_JSON":                    "log.json",
}

// Load reads the process environment on top of the defaults.
func Load() (*Config, error) {
	return LoadFromEnviron(os.Environ())
}

// LoadFromEnviron builds a validated Config from KEY=VALUE pairs layered over Default().
func LoadFromEnviron(environ []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		EnvironFunc: func() []string { return environ },
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envMappings[key]
			if !ok {
				return "", nil
			}
			return path, strings.TrimSpace(value)
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and the cross-section constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Archive.Enabled && cfg.History.PostgresDSN == "" {
		return fmt.Errorf("%w: archive requires DB_CONNECTION_STRING", ErrInvalidConfig)
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RatePeriod <= 0 {
		return fmt.Errorf("%w: rate period must be positive when rate limiting is on", ErrInvalidConfig)
	}
	return nil
}
