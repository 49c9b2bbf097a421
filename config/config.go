package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the question answering service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Condense  CondenseConfig  `mapstructure:"condense"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel   string `mapstructure:"log_level"`
	PrettyLogs bool   `mapstructure:"pretty_logs"`
	University string `mapstructure:"university"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig selects and configures the chat model provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, yandex
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	FolderID    string        `mapstructure:"folder_id"` // yandex only
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsFile string        `mapstructure:"prompts_file"`
}

func (c LLMConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	switch c.Provider {
	case "openai":
	case "yandex":
		if strings.TrimSpace(c.FolderID) == "" {
			return fmt.Errorf("llm.folder_id required for yandex provider")
		}
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

// SearchConfig contains web search settings
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serpstack, google, serper, brave
	APIKey     string        `mapstructure:"api_key"`
	CX         string        `mapstructure:"cx"` // google custom search engine id
	Endpoint   string        `mapstructure:"endpoint"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Policy     SourcePolicy  `mapstructure:",squash"`
}

func (c SearchConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("search.api_key required")
	}
	if c.Provider == "google" && strings.TrimSpace(c.CX) == "" {
		return fmt.Errorf("search.cx required for google provider")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return c.Policy.Validate()
}

// FetchConfig bounds page retrieval.
type FetchConfig struct {
	Backend       string        `mapstructure:"backend"` // http, chromedp
	Deadline      time.Duration `mapstructure:"deadline"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	TargetCount   int           `mapstructure:"target_count"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	Extractor     string        `mapstructure:"extractor"` // text, readability
	UserAgent     string        `mapstructure:"user_agent"`
}

func (c FetchConfig) Validate() error {
	if c.Deadline <= 0 {
		return fmt.Errorf("fetch.deadline must be > 0")
	}
	if c.MaxConcurrent <= 0 || c.TargetCount <= 0 {
		return fmt.Errorf("fetch.max_concurrent and fetch.target_count must be > 0")
	}
	if c.TargetCount > c.MaxConcurrent {
		return fmt.Errorf("fetch.target_count (%d) cannot exceed fetch.max_concurrent (%d)", c.TargetCount, c.MaxConcurrent)
	}
	switch c.Extractor {
	case "text", "readability":
	default:
		return fmt.Errorf("fetch.extractor %q is not supported", c.Extractor)
	}
	return nil
}

// CondenseConfig is the [start, end) rune window forwarded to the summarizer.
// WindowEnd <= 0 keeps everything after WindowStart.
type CondenseConfig struct {
	WindowStart int `mapstructure:"window_start"`
	WindowEnd   int `mapstructure:"window_end"`
}

func (c CondenseConfig) Validate() error {
	if c.WindowStart < 0 {
		return fmt.Errorf("condense.window_start cannot be negative")
	}
	if c.WindowEnd > 0 && c.WindowEnd <= c.WindowStart {
		return fmt.Errorf("condense.window_end must be greater than window_start")
	}
	return nil
}

// StorageConfig contains optional persistence backends. Both are disabled
// when left empty.
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, building it from parts when URL is unset.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.university", "Университет ИТМО")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8081"})
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("llm.provider", "yandex")
	v.SetDefault("llm.model", "yandexgpt-32k/rc")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("search.provider", "serpstack")
	v.SetDefault("search.max_results", 3)
	v.SetDefault("search.timeout", 5*time.Second)
	v.SetDefault("fetch.backend", "http")
	v.SetDefault("fetch.deadline", time.Second)
	v.SetDefault("fetch.max_concurrent", 5)
	v.SetDefault("fetch.target_count", 3)
	v.SetDefault("fetch.max_bytes", 2<<20)
	v.SetDefault("fetch.extractor", "text")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; uniqa/1.0)")
	v.SetDefault("condense.window_start", 500)
	v.SetDefault("condense.window_end", 2000)
	v.SetDefault("telemetry.metrics_enabled", true)
}

// LoadConfig loads config from file and UNIQA_* environment variables. An
// empty path searches the usual locations; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("UNIQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"llm.api_key", "llm.base_url", "llm.folder_id", "llm.prompts_file",
		"search.api_key", "search.cx", "search.endpoint", "search.cache_ttl",
		"storage.redis.host", "storage.redis.port", "storage.redis.password", "storage.redis.db",
		"storage.postgres.url", "storage.postgres.host", "storage.postgres.port",
		"storage.postgres.user", "storage.postgres.password", "storage.postgres.dbname", "storage.postgres.sslmode",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Search.Policy = cfg.Search.Policy.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.LLM.Validate,
		c.Search.Validate,
		c.Fetch.Validate,
		c.Condense.Validate,
		c.Storage.Postgres.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
