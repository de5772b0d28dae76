// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Records, Search, Redis, Kafka, Postgres, Watch, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Record source kinds accepted in RecordsConfig.Source.
const (
	SourceFile     = "file"
	SourceURL      = "url"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceEmbedded = "embedded"
	// SourceMulti merges the sources listed in RecordsConfig.Sources.
	SourceMulti = "multi"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Records   RecordsConfig   `yaml:"records"`
	Search    SearchConfig    `yaml:"search"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Watch     WatchConfig     `yaml:"watch"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit      int           `yaml:"rateLimit"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// RecordsConfig selects where documentation records are loaded from.
type RecordsConfig struct {
	Source       string        `yaml:"source"`
	Path         string        `yaml:"path"`
	URL          string        `yaml:"url"`
	Query        string        `yaml:"query"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	StrictEmpty  bool          `yaml:"strictEmpty"`
	LoadAttempts int           `yaml:"loadAttempts"`
	Sources      []SourceSpec  `yaml:"sources"`
}

// SourceSpec is one member of a multi source. Path is the file path for
// file sources and the database path for sqlite sources.
type SourceSpec struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

// SearchConfig controls query limits and the scoring strategy.
type SearchConfig struct {
	DefaultLimit int     `yaml:"defaultLimit"`
	MaxResults   int     `yaml:"maxResults"`
	Scorer       string  `yaml:"scorer"`
	TitleBoost   float64 `yaml:"titleBoost"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig points at a SQLite database holding documentation records.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocsUpdated     string `yaml:"docsUpdated"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	LocalSize int           `yaml:"localSize"`
}

// WatchConfig controls hot reload of file-backed record sources.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// AnalyticsConfig controls search-event collection and snapshotting.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make the service unusable.
func (c *Config) Validate() error {
	if c.Records.Source == SourceMulti && len(c.Records.Sources) == 0 {
		return fmt.Errorf("records.sources must list at least one source for source %q", SourceMulti)
	}
	for i, spec := range c.RecordSources() {
		if err := validateSpec(spec); err != nil {
			if c.Records.Source == SourceMulti {
				return fmt.Errorf("records.sources[%d]: %w", i, err)
			}
			return err
		}
	}
	if c.Records.LoadAttempts < 1 {
		return fmt.Errorf("records.loadAttempts must be at least 1, got %d", c.Records.LoadAttempts)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	return nil
}

// RecordSources returns the configured record sources in load order: the
// single records.source, or every entry of records.sources for a multi
// source.
func (c *Config) RecordSources() []SourceSpec {
	if c.Records.Source == SourceMulti {
		return c.Records.Sources
	}
	spec := SourceSpec{Source: c.Records.Source, Path: c.Records.Path, URL: c.Records.URL}
	if spec.Source == SourceSQLite {
		spec.Path = c.SQLite.Path
	}
	return []SourceSpec{spec}
}

func validateSpec(spec SourceSpec) error {
	switch spec.Source {
	case SourceFile:
		if spec.Path == "" {
			return fmt.Errorf("records.path is required for source %q", SourceFile)
		}
	case SourceURL:
		if spec.URL == "" {
			return fmt.Errorf("records.url is required for source %q", SourceURL)
		}
	case SourcePostgres, SourceEmbedded:
	case SourceSQLite:
		if spec.Path == "" {
			return fmt.Errorf("sqlite.path is required for source %q", SourceSQLite)
		}
	case SourceMulti:
		return errors.New("multi sources cannot be nested")
	default:
		return fmt.Errorf("unknown records.source %q", spec.Source)
	}
	return nil
}

// defaultConfig returns a Config with defaults suited to local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateLimit:       600,
			RequestTimeout:  10 * time.Second,
		},
		Records: RecordsConfig{
			Source:       SourceFile,
			Path:         "data/search_index.js",
			Query:        "SELECT location, page, title, category, text FROM doc_records ORDER BY position",
			FetchTimeout: 10 * time.Second,
			LoadAttempts: 3,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
			Scorer:       "tf",
			TitleBoost:   2.0,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-group",
			Topics: KafkaTopics{
				DocsUpdated:     "docs-updated",
				AnalyticsEvents: "docsearch-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			CacheTTL:  60 * time.Second,
			LocalSize: 1024,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DS_RECORDS_SOURCE"); v != "" {
		cfg.Records.Source = v
	}
	if v := os.Getenv("DS_RECORDS_PATH"); v != "" {
		cfg.Records.Path = v
	}
	if v := os.Getenv("DS_RECORDS_URL"); v != "" {
		cfg.Records.URL = v
	}
	if v := os.Getenv("DS_RECORDS_STRICT_EMPTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Records.StrictEmpty = b
		}
	}
	if v := os.Getenv("DS_SEARCH_SCORER"); v != "" {
		cfg.Search.Scorer = v
	}
	if v := os.Getenv("DS_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("DS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("DS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("DS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
