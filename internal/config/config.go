package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names the environment variable holding the config file path
const PathEnvVar = "MEMENEM_CONFIG"

// DefaultPaths are searched in order when no config path is given
var DefaultPaths = []string{"memenem.yaml", "memenem.yml", "/etc/memenem/config.yaml"}

// Config is the complete service configuration
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	Cache      CacheConfig      `koanf:"cache"`
	Processing ProcessingConfig `koanf:"processing"`
	Limits     LimitsConfig     `koanf:"limits"`
	AI         AIConfig         `koanf:"ai"`
	Sources    SourcesConfig    `koanf:"sources"`
	HTTP       HTTPConfig       `koanf:"http"`
	Janitor    JanitorConfig    `koanf:"janitor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	Backend      string `koanf:"backend"`
	SQLitePath   string `koanf:"sqlite_path"`
	ValkeyAddr   string `koanf:"valkey_addr"`
	ValkeyPass   string `koanf:"valkey_password"`
	ValkeyDB     int    `koanf:"valkey_db"`
	ValkeyPrefix string `koanf:"valkey_prefix"`
}

// CacheConfig holds the TTL of each cache category
type CacheConfig struct {
	TemplatesTTL time.Duration `koanf:"templates_ttl"`
	CaptionsTTL  time.Duration `koanf:"captions_ttl"`
	JobsTTL      time.Duration `koanf:"jobs_ttl"`
	ResultsTTL   time.Duration `koanf:"results_ttl"`
}

type ProcessingConfig struct {
	BatchSize            int           `koanf:"batch_size"`
	MaxConcurrentBatches int           `koanf:"max_concurrent_batches"`
	RateLimitDelay       time.Duration `koanf:"rate_limit_delay"`
	MaxConcurrentJobs    int           `koanf:"max_concurrent_jobs"`
	TemplatePoolFactor   int           `koanf:"template_pool_factor"`
}

type LimitsConfig struct {
	MaxTemplates  int `koanf:"max_templates"`
	MaxVariations int `koanf:"max_variations"`
}

// AIConfig configures the caption providers, tried in Providers order
type AIConfig struct {
	Providers        []string      `koanf:"providers"`
	GeminiAPIKey     string        `koanf:"gemini_api_key"`
	GeminiModel      string        `koanf:"gemini_model"`
	OpenAIAPIKey     string        `koanf:"openai_api_key"`
	OpenAIModel      string        `koanf:"openai_model"`
	OpenAIBaseURL    string        `koanf:"openai_base_url"`
	Timeout          time.Duration `koanf:"timeout"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

type SourcesConfig struct {
	Enabled           []string      `koanf:"enabled"`
	ImgflipURL        string        `koanf:"imgflip_url"`
	RedditURL         string        `koanf:"reddit_url"`
	Subreddits        []string      `koanf:"subreddits"`
	KnowYourMemeURL   string        `koanf:"knowyourmeme_url"`
	UserAgent         string        `koanf:"user_agent"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
}

type HTTPConfig struct {
	SubmitPerMinute int           `koanf:"submit_per_minute"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

type JanitorConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used before any file or environment
// overrides are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend:      "sqlite",
			SQLitePath:   "memenem.db",
			ValkeyAddr:   "127.0.0.1:6379",
			ValkeyPrefix: "memenem",
		},
		Cache: CacheConfig{
			TemplatesTTL: time.Hour,
			CaptionsTTL:  24 * time.Hour,
			JobsTTL:      2 * time.Hour,
			ResultsTTL:   12 * time.Hour,
		},
		Processing: ProcessingConfig{
			BatchSize:            2,
			MaxConcurrentBatches: 1,
			RateLimitDelay:       2 * time.Second,
			MaxConcurrentJobs:    4,
			TemplatePoolFactor:   2,
		},
		Limits: LimitsConfig{
			MaxTemplates:  10,
			MaxVariations: 6,
		},
		AI: AIConfig{
			Providers:        []string{"gemini", "openai"},
			GeminiModel:      "gemini-2.0-flash",
			OpenAIModel:      "gpt-4o-mini",
			Timeout:          30 * time.Second,
			BreakerThreshold: 3,
			BreakerTimeout:   time.Minute,
		},
		Sources: SourcesConfig{
			Enabled:           []string{"imgflip", "reddit", "knowyourmeme"},
			ImgflipURL:        "https://api.imgflip.com",
			RedditURL:         "https://www.reddit.com",
			KnowYourMemeURL:   "https://knowyourmeme.com",
			RequestsPerSecond: 1,
			Timeout:           30 * time.Second,
		},
		HTTP: HTTPConfig{
			SubmitPerMinute: 10,
			CORSOrigins:     []string{"*"},
			RequestTimeout:  60 * time.Second,
		},
		Janitor: JanitorConfig{
			Interval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence. A .env file in the working
// directory is loaded into the environment first. An empty path falls back to
// MEMENEM_CONFIG and then DefaultPaths.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"host":             "server.host",
	"port":             "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"store_backend":   "store.backend",
	"sqlite_path":     "store.sqlite_path",
	"valkey_addr":     "store.valkey_addr",
	"valkey_password": "store.valkey_password",
	"valkey_db":       "store.valkey_db",
	"valkey_prefix":   "store.valkey_prefix",

	"cache_templates_ttl": "cache.templates_ttl",
	"cache_captions_ttl":  "cache.captions_ttl",
	"cache_jobs_ttl":      "cache.jobs_ttl",
	"cache_results_ttl":   "cache.results_ttl",

	"batch_size":             "processing.batch_size",
	"max_concurrent_batches": "processing.max_concurrent_batches",
	"rate_limit_delay":       "processing.rate_limit_delay",
	"max_concurrent_jobs":    "processing.max_concurrent_jobs",
	"template_pool_factor":   "processing.template_pool_factor",

	"max_templates":  "limits.max_templates",
	"max_variations": "limits.max_variations",

	"ai_providers":         "ai.providers",
	"gemini_api_key":       "ai.gemini_api_key",
	"gemini_model":         "ai.gemini_model",
	"openai_api_key":       "ai.openai_api_key",
	"openai_model":         "ai.openai_model",
	"openai_base_url":      "ai.openai_base_url",
	"ai_timeout":           "ai.timeout",
	"ai_breaker_threshold": "ai.breaker_threshold",
	"ai_breaker_timeout":   "ai.breaker_timeout",

	"sources":                     "sources.enabled",
	"imgflip_url":                 "sources.imgflip_url",
	"reddit_url":                  "sources.reddit_url",
	"subreddits":                  "sources.subreddits",
	"knowyourmeme_url":            "sources.knowyourmeme_url",
	"scraper_user_agent":          "sources.user_agent",
	"scraper_requests_per_second": "sources.requests_per_second",
	"scraper_timeout":             "sources.timeout",

	"submit_per_minute": "http.submit_per_minute",
	"cors_origins":      "http.cors_origins",
	"request_timeout":   "http.request_timeout",

	"janitor_interval": "janitor.interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envKey maps MEMENEM_* variables onto config keys. Unknown variables are
// dropped. GEMINI_API_KEY and OPENAI_API_KEY are accepted unprefixed too.
func envKey(name string) string {
	name = strings.ToLower(name)
	switch name {
	case "gemini_api_key", "openai_api_key":
		return envMappings[name]
	}
	if !strings.HasPrefix(name, "memenem_") {
		return ""
	}
	return envMappings[strings.TrimPrefix(name, "memenem_")]
}

var listKeys = []string{"ai.providers", "sources.enabled", "sources.subreddits", "http.cors_origins"}

// splitLists turns comma separated environment values into string slices
func splitLists(k *koanf.Koanf) error {
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if err := k.Set(key, items); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Store.Backend == "sqlite" || c.Store.Backend == "valkey", "store.backend must be sqlite or valkey, got %q", c.Store.Backend)
	check(c.Store.Backend != "sqlite" || c.Store.SQLitePath != "", "store.sqlite_path is required for the sqlite backend")
	check(c.Store.Backend != "valkey" || c.Store.ValkeyAddr != "", "store.valkey_addr is required for the valkey backend")

	check(c.Cache.TemplatesTTL > 0, "cache.templates_ttl must be positive")
	check(c.Cache.CaptionsTTL > 0, "cache.captions_ttl must be positive")
	check(c.Cache.JobsTTL > 0, "cache.jobs_ttl must be positive")
	check(c.Cache.ResultsTTL > 0, "cache.results_ttl must be positive")

	check(c.Processing.BatchSize >= 1, "processing.batch_size must be at least 1")
	check(c.Processing.MaxConcurrentBatches >= 1, "processing.max_concurrent_batches must be at least 1")
	check(c.Processing.RateLimitDelay >= 0, "processing.rate_limit_delay cannot be negative")
	check(c.Processing.MaxConcurrentJobs >= 1, "processing.max_concurrent_jobs must be at least 1")
	check(c.Processing.TemplatePoolFactor >= 1, "processing.template_pool_factor must be at least 1")

	check(c.Limits.MaxTemplates >= 1, "limits.max_templates must be at least 1")
	check(c.Limits.MaxVariations >= 1, "limits.max_variations must be at least 1")

	for _, p := range c.AI.Providers {
		check(p == "gemini" || p == "openai", "ai.providers: unknown provider %q", p)
	}
	for _, s := range c.Sources.Enabled {
		check(s == "imgflip" || s == "reddit" || s == "knowyourmeme", "sources.enabled: unknown source %q", s)
	}
	check(len(c.Sources.Enabled) > 0, "sources.enabled must list at least one source")
	check(c.Sources.RequestsPerSecond >= 0, "sources.requests_per_second cannot be negative")
	check(c.HTTP.SubmitPerMinute >= 0, "http.submit_per_minute cannot be negative")
	check(c.Janitor.Interval > 0, "janitor.interval must be positive")

	switch c.Logging.Format {
	case "json", "console":
	default:
		check(false, "logging.format must be json or console, got %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}
