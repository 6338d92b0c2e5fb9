// Package config loads and validates wordfreq configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Store, Postgres, SQLite, Corpus, Pipeline, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported corpus sources.
const (
	SourceFile = "file"
	SourceS3   = "s3"
)

// StoreConfig selects the destination database and its result tables.
type StoreConfig struct {
	Driver          string      `yaml:"driver"`
	Tables          TableConfig `yaml:"tables"`
	ReplaceExisting bool        `yaml:"replaceExisting"`
}

// TableConfig maps each entity kind to its destination table.
type TableConfig struct {
	Word   string `yaml:"word"`
	Letter string `yaml:"letter"`
}

// ForKind returns the table configured for kind, or "" if kind is unknown.
func (t TableConfig) ForKind(kind string) string {
	switch kind {
	case "word":
		return t.Word
	case "letter":
		return t.Letter
	default:
		return ""
	}
}

// PostgresConfig holds PostgreSQL connection parameters. Host and Port form
// the endpoint, User and Password the credentials.
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

// DSN returns a lib/pq-compatible data source name. Values are quoted so
// passwords containing spaces or quotes survive.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(p.Host), p.Port, dsnValue(p.User), dsnValue(p.Password), dsnValue(p.Database), dsnValue(p.SSLMode),
	)
}

func dsnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// CorpusConfig describes where the input text comes from.
type CorpusConfig struct {
	Source string   `yaml:"source"`
	Paths  []string `yaml:"paths"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds object-store settings for the s3 corpus source. Empty
// credentials fall back to the default AWS credential chain.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
}

// PipelineConfig controls which entity kinds run and how aggregation fans out.
type PipelineConfig struct {
	Kinds          []string         `yaml:"kinds"`
	Workers        int              `yaml:"workers"`
	ChunkLines     int              `yaml:"chunkLines"`
	PersistTimeout time.Duration    `yaml:"persistTimeout"`
	Thresholds     ThresholdsConfig `yaml:"thresholds"`
}

// ThresholdsConfig holds the percentile cut points for categorization.
type ThresholdsConfig struct {
	Popular     float64 `yaml:"popular"`
	CommonLower float64 `yaml:"commonLower"`
	CommonUpper float64 `yaml:"commonUpper"`
	Rare        float64 `yaml:"rare"`
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
	RunRequests string `yaml:"runRequests"`
	RunEvents   string `yaml:"runEvents"`
}

// RedisConfig holds Redis connection and result-cache parameters.
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
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file %s: %w", apperrors.ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", apperrors.ErrInvalidConfig, path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for local development. It carries no
// credentials; those must come from the config file or the environment.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
			Tables: TableConfig{
				Word:   "words",
				Letter: "letters",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "wordfreq",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path: "wordfreq.db",
		},
		Corpus: CorpusConfig{
			Source: SourceFile,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Pipeline: PipelineConfig{
			Kinds:          []string{"word"},
			Workers:        4,
			ChunkLines:     1024,
			PersistTimeout: 5 * time.Minute,
			Thresholds: ThresholdsConfig{
				Popular:     0.05,
				CommonLower: 0.475,
				CommonUpper: 0.525,
				Rare:        0.95,
			},
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "wordfreq",
			Topics: KafkaTopics{
				RunRequests: "wordfreq.run-requests",
				RunEvents:   "wordfreq.run-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether name is safe to use as a table name.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// Validate checks cross-field constraints. All errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			problems = append(problems, "postgres.host and postgres.database are required")
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			problems = append(problems, "sqlite.path is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if len(c.Pipeline.Kinds) == 0 {
		problems = append(problems, "pipeline.kinds must not be empty")
	}
	for _, kind := range c.Pipeline.Kinds {
		if kind != "word" && kind != "letter" {
			problems = append(problems, fmt.Sprintf("unknown pipeline kind %q", kind))
			continue
		}
		table := c.Store.Tables.ForKind(kind)
		if !ValidIdentifier(table) {
			problems = append(problems, fmt.Sprintf("invalid table name %q for kind %s", table, kind))
		}
	}
	if c.Pipeline.Workers <= 0 {
		problems = append(problems, "pipeline.workers must be positive")
	}
	if c.Pipeline.ChunkLines <= 0 {
		problems = append(problems, "pipeline.chunkLines must be positive")
	}
	th := c.Pipeline.Thresholds
	for _, p := range []float64{th.Popular, th.CommonLower, th.CommonUpper, th.Rare} {
		if p < 0 || p > 1 {
			problems = append(problems, fmt.Sprintf("threshold %v outside [0, 1]", p))
		}
	}
	if !(th.Popular <= th.CommonLower && th.CommonLower <= th.CommonUpper && th.CommonUpper <= th.Rare) {
		problems = append(problems, "thresholds must be ordered popular <= commonLower <= commonUpper <= rare")
	}
	switch c.Corpus.Source {
	case SourceFile:
	case SourceS3:
		if c.Corpus.S3.Bucket == "" {
			problems = append(problems, "corpus.s3.bucket is required for the s3 source")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown corpus.source %q", c.Corpus.Source))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads WF_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WF_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("WF_STORE_WORD_TABLE"); v != "" {
		cfg.Store.Tables.Word = v
	}
	if v := os.Getenv("WF_STORE_LETTER_TABLE"); v != "" {
		cfg.Store.Tables.Letter = v
	}
	if v := os.Getenv("WF_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("WF_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("WF_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("WF_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("WF_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("WF_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("WF_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("WF_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("WF_CORPUS_PATHS"); v != "" {
		cfg.Corpus.Paths = strings.Split(v, ",")
	}
	if v := os.Getenv("WF_S3_ENDPOINT"); v != "" {
		cfg.Corpus.S3.Endpoint = v
	}
	if v := os.Getenv("WF_S3_REGION"); v != "" {
		cfg.Corpus.S3.Region = v
	}
	if v := os.Getenv("WF_S3_BUCKET"); v != "" {
		cfg.Corpus.S3.Bucket = v
	}
	if v := os.Getenv("WF_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Corpus.S3.AccessKeyID = v
	}
	if v := os.Getenv("WF_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Corpus.S3.SecretAccessKey = v
	}
	if v := os.Getenv("WF_PIPELINE_KINDS"); v != "" {
		cfg.Pipeline.Kinds = strings.Split(v, ",")
	}
	if v := os.Getenv("WF_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("WF_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("WF_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("WF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WF_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WF_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
