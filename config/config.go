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

// Config holds all configuration for the advisor service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Query     QueryConfig     `mapstructure:"query"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Normalize applies defaults for unset server values.
func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":10001"
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 2 * time.Minute
	}
	return s
}

// LLMConfig configures the language model collaborator
type LLMConfig struct {
	Provider   string        `mapstructure:"provider"` // anthropic, openai
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Planner    Generation    `mapstructure:"planner"`
	Router     Generation    `mapstructure:"router"`
	Answerer   Generation    `mapstructure:"answerer"`
	SQL        Generation    `mapstructure:"sql"`
}

// Generation holds per-call sampling settings.
type Generation struct {
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// Normalize fills provider defaults.
func (l LLMConfig) Normalize() LLMConfig {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" {
		l.Provider = "anthropic"
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	if l.MaxRetries < 0 {
		l.MaxRetries = 0
	}
	if l.Planner.MaxTokens <= 0 {
		l.Planner.MaxTokens = 400
	}
	if l.Router.MaxTokens <= 0 {
		l.Router.MaxTokens = 300
	}
	if l.Answerer.MaxTokens <= 0 {
		l.Answerer.MaxTokens = 900
	}
	if l.SQL.MaxTokens <= 0 {
		l.SQL.MaxTokens = 500
	}
	return l
}

// Validate checks the provider selection.
func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai, got %q", l.Provider)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	for name, g := range map[string]Generation{"planner": l.Planner, "router": l.Router, "answerer": l.Answerer, "sql": l.SQL} {
		if g.Temperature < 0 || g.Temperature > 2 {
			return fmt.Errorf("llm.%s.temperature must be within [0,2]", name)
		}
	}
	return nil
}

// QueryConfig bounds natural-language SQL execution.
type QueryConfig struct {
	DefaultLimit     int           `mapstructure:"default_limit"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	SchemaColumns    int           `mapstructure:"schema_columns"`
}

// Normalize applies defaults for unset query values.
func (q QueryConfig) Normalize() QueryConfig {
	if q.DefaultLimit <= 0 {
		q.DefaultLimit = 100
	}
	if q.StatementTimeout <= 0 {
		q.StatementTimeout = 5 * time.Second
	}
	if q.SchemaColumns <= 0 {
		q.SchemaColumns = 8
	}
	return q
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// AuditConfig controls the Redis stream of completed runs.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

func (a AuditConfig) Validate() error {
	if a.Enabled && strings.TrimSpace(a.Stream) == "" {
		return fmt.Errorf("audit.stream required when audit is enabled")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether enough is set to attempt a connection.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if !p.Configured() {
		return nil
	}
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN constructs the connection string.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres configuration incomplete: host/dbname required")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	cfg, err := Load(viper.New(), path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}

// Load reads, normalizes and validates configuration using v.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.planner.temperature", 0.0)
	v.SetDefault("llm.router.temperature", 0.0)
	v.SetDefault("llm.answerer.temperature", 0.7)
	v.SetDefault("llm.sql.temperature", 0.0)
	v.SetDefault("audit.stream", "advisor.runs")
	v.SetDefault("audit.max_len", 10000)
	v.SetDefault("telemetry.service_name", "advisor")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	// registered so AutomaticEnv can fill them without a config file
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("server.address", "")
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("audit.enabled", false)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")

	if path == "" {
		v.AddConfigPath("./config") // path to look for the config file in
		v.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)                                // bin/
		v.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		v.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (ADVISOR_*)

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine when everything comes from env and defaults
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKeyFromEnv(cfg.LLM.Provider)
	}
	cfg.Server = cfg.Server.Normalize()
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Query = cfg.Query.Normalize()

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	if cfg.Audit.Enabled {
		if err := cfg.Storage.Redis.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Audit.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func providerKeyFromEnv(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}
