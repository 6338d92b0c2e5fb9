package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultHasNoCredentials(t *testing.T) {
	cfg := Default()
	if cfg.Postgres.User != "" || cfg.Postgres.Password != "" {
		t.Error("default postgres credentials must be empty")
	}
	if cfg.Corpus.S3.AccessKeyID != "" || cfg.Corpus.S3.SecretAccessKey != "" {
		t.Error("default s3 credentials must be empty")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := `
store:
  driver: postgres
  tables:
    word: words_spark
    letter: letters_spark
postgres:
  host: db.internal
  database: corpus
  user: reporter
pipeline:
  kinds: [word, letter]
  workers: 8
  persistTimeout: 30s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.Tables.ForKind("letter") != "letters_spark" {
		t.Errorf("letter table = %q", cfg.Store.Tables.Letter)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("expected default port to survive, got %d", cfg.Postgres.Port)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Pipeline.PersistTimeout != 30*time.Second {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.ChunkLines != 1024 {
		t.Errorf("expected default chunkLines, got %d", cfg.Pipeline.ChunkLines)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WF_STORE_DRIVER", "postgres")
	t.Setenv("WF_POSTGRES_HOST", "pg.example")
	t.Setenv("WF_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("WF_PIPELINE_KINDS", "word,letter")
	t.Setenv("WF_PIPELINE_WORKERS", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.Host != "pg.example" || cfg.Postgres.Password != "s3cret" {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	if len(cfg.Pipeline.Kinds) != 2 || cfg.Pipeline.Workers != 2 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }, "unknown store.driver"},
		{"unknown kind", func(c *Config) { c.Pipeline.Kinds = []string{"sentence"} }, "unknown pipeline kind"},
		{"bad table", func(c *Config) { c.Store.Tables.Word = "words; DROP TABLE x" }, "invalid table name"},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }, "workers must be positive"},
		{"unordered thresholds", func(c *Config) { c.Pipeline.Thresholds.Popular = 0.6 }, "must be ordered"},
		{"threshold range", func(c *Config) { c.Pipeline.Thresholds.Rare = 1.5 }, "outside [0, 1]"},
		{"s3 without bucket", func(c *Config) { c.Corpus.Source = SourceS3 }, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperrors.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDSNQuotesValues(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "it's a pass", Database: "d", SSLMode: "disable"}
	want := `host='h' port=5432 user='u' password='it\'s a pass' dbname='d' sslmode='disable'`
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
}
