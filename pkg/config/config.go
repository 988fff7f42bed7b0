// Package config reads the service configuration: built-in defaults, then an
// optional YAML file, then BS_* environment variables, then validation.
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

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bloom    BloomConfig    `yaml:"bloom"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// WriteRatePerSecond caps mutating requests per client address. Zero
	// disables the limit.
	WriteRatePerSecond float64 `yaml:"writeRatePerSecond"`
	WriteBurst         int     `yaml:"writeBurst"`
	// TrustForwardedFor keys the limit on X-Forwarded-For. Enable it only
	// behind a proxy that overwrites the header.
	TrustForwardedFor  bool    `yaml:"trustForwardedFor"`
}

// BloomConfig fixes the filter shape for every generation. Capacity and
// FalsePositiveRate are taken from Preset when left at zero.
type BloomConfig struct {
	Preset            string   `yaml:"preset"`
	NGramSize         int      `yaml:"ngramSize"`
	Capacity          int      `yaml:"capacity"`
	FalsePositiveRate float64  `yaml:"falsePositiveRate"`
	Seed              []uint64 `yaml:"seed"`
}

// Preset is a named (capacity, false positive rate) pair.
type Preset struct {
	Capacity          int
	FalsePositiveRate float64
}

// Presets lists the known filter sizings.
var Presets = map[string]Preset{
	"default": {Capacity: 500, FalsePositiveRate: 0.01},
	"compact": {Capacity: 1000, FalsePositiveRate: 0.05},
}

// SearchConfig controls query execution and input limits at the HTTP
// boundary.
type SearchConfig struct {
	MemoizeNegatives bool `yaml:"memoizeNegatives"`
	MaxQueryLength   int  `yaml:"maxQueryLength"`
	MaxBatchSize     int  `yaml:"maxBatchSize"`
	MaxTextLength    int  `yaml:"maxTextLength"`
	MaxIDLength      int  `yaml:"maxIdLength"`
}

// PostgresConfig holds PostgreSQL connection parameters and the bulk-load
// query used to seed the collection at startup.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	LoadQuery       string        `yaml:"loadQuery"`
	BatchSize       int           `yaml:"batchSize"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
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
	Documents string `yaml:"documents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
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

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
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
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the validated built-in configuration.
func Default() *Config {
	cfg := defaultConfig()
	_ = cfg.Validate()
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			WriteBurst:      20,
		},
		Bloom: BloomConfig{
			Preset:    "default",
			NGramSize: 3,
		},
		Search: SearchConfig{
			MemoizeNegatives: true,
			MaxQueryLength:   1024,
			MaxBatchSize:     10000,
			MaxTextLength:    1 << 20,
			MaxIDLength:      256,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bloomsearch",
			User:            "bloomsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			LoadQuery:       "SELECT id, text FROM documents ORDER BY seq",
			BatchSize:       500,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "bloomsearch-group",
			Topics: KafkaTopics{
				Documents: "documents",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
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

// Validate resolves the bloom preset and rejects values the engine cannot
// work with.
func (c *Config) Validate() error {
	b := &c.Bloom
	if b.Capacity == 0 && b.FalsePositiveRate == 0 {
		name := b.Preset
		if name == "" {
			name = "default"
		}
		p, ok := Presets[name]
		if !ok {
			return fmt.Errorf("unknown bloom preset %q", b.Preset)
		}
		b.Capacity = p.Capacity
		b.FalsePositiveRate = p.FalsePositiveRate
	}
	var errs []error
	if b.NGramSize < 1 {
		errs = append(errs, fmt.Errorf("bloom.ngramSize must be at least 1, got %d", b.NGramSize))
	}
	if b.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("bloom.capacity must be positive, got %d", b.Capacity))
	}
	if !(b.FalsePositiveRate > 0 && b.FalsePositiveRate < 1) {
		errs = append(errs, fmt.Errorf("bloom.falsePositiveRate must be in (0, 1), got %g", b.FalsePositiveRate))
	}
	if len(b.Seed) != 0 && len(b.Seed) != 2 {
		errs = append(errs, fmt.Errorf("bloom.seed must hold exactly two values, got %d", len(b.Seed)))
	}
	if c.Server.WriteRatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("server.writeRatePerSecond must not be negative, got %g", c.Server.WriteRatePerSecond))
	}
	if c.Postgres.Enabled && c.Postgres.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("postgres.batchSize must be positive, got %d", c.Postgres.BatchSize))
	}
	return errors.Join(errs...)
}

// envOverrides maps BS_* variables onto config fields. Values that do not
// parse are ignored and the file or default value stays in effect.
var envOverrides = map[string]func(c *Config, v string){
	"BS_SERVER_PORT":              intVar(func(c *Config) *int { return &c.Server.Port }),
	"BS_SERVER_WRITE_RATE":        floatVar(func(c *Config) *float64 { return &c.Server.WriteRatePerSecond }),
	"BS_SERVER_TRUST_FORWARDED":   boolVar(func(c *Config) *bool { return &c.Server.TrustForwardedFor }),
	"BS_BLOOM_NGRAM_SIZE":         intVar(func(c *Config) *int { return &c.Bloom.NGramSize }),
	"BS_SEARCH_MEMOIZE_NEGATIVES": boolVar(func(c *Config) *bool { return &c.Search.MemoizeNegatives }),
	"BS_POSTGRES_ENABLED":         boolVar(func(c *Config) *bool { return &c.Postgres.Enabled }),
	"BS_POSTGRES_HOST":            stringVar(func(c *Config) *string { return &c.Postgres.Host }),
	"BS_POSTGRES_PORT":            intVar(func(c *Config) *int { return &c.Postgres.Port }),
	"BS_POSTGRES_DATABASE":        stringVar(func(c *Config) *string { return &c.Postgres.Database }),
	"BS_POSTGRES_USER":            stringVar(func(c *Config) *string { return &c.Postgres.User }),
	"BS_POSTGRES_PASSWORD":        stringVar(func(c *Config) *string { return &c.Postgres.Password }),
	"BS_KAFKA_ENABLED":            boolVar(func(c *Config) *bool { return &c.Kafka.Enabled }),
	"BS_REDIS_ENABLED":            boolVar(func(c *Config) *bool { return &c.Redis.Enabled }),
	"BS_REDIS_ADDR":               stringVar(func(c *Config) *string { return &c.Redis.Addr }),
	"BS_REDIS_PASSWORD":           stringVar(func(c *Config) *string { return &c.Redis.Password }),
	"BS_LOGGING_LEVEL":            stringVar(func(c *Config) *string { return &c.Logging.Level }),
	"BS_LOGGING_FORMAT":           stringVar(func(c *Config) *string { return &c.Logging.Format }),
	"BS_KAFKA_BROKERS": func(c *Config, v string) {
		c.Kafka.Brokers = strings.Split(v, ",")
	},
	// A preset override discards explicit sizing so the preset takes
	// effect in Validate.
	"BS_BLOOM_PRESET": func(c *Config, v string) {
		c.Bloom.Preset = v
		c.Bloom.Capacity = 0
		c.Bloom.FalsePositiveRate = 0
	},
}

func applyEnvOverrides(cfg *Config) {
	for key, apply := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			apply(cfg, v)
		}
	}
}

func stringVar(field func(*Config) *string) func(*Config, string) {
	return func(c *Config, v string) { *field(c) = v }
}

func intVar(field func(*Config) *int) func(*Config, string) {
	return func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*field(c) = n
		}
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) {
	return func(c *Config, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*field(c) = f
		}
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) {
	return func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			*field(c) = b
		}
	}
}
