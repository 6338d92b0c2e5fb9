//go:build integration

package persister

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/sqldb"
)

// Run with:
//
//	go test -v -tags=integration ./internal/frequency/persister/...

func skipIfNoPostgres(t *testing.T) *sqldb.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = config.DriverPostgres
	cfg.Postgres.Host = envOrDefault("TEST_POSTGRES_HOST", "localhost")
	cfg.Postgres.Port = envOrDefaultInt("TEST_POSTGRES_PORT", 5432)
	cfg.Postgres.Database = envOrDefault("TEST_POSTGRES_DB", "wordfreq_test")
	cfg.Postgres.User = envOrDefault("TEST_POSTGRES_USER", "wordfreq")
	cfg.Postgres.Password = envOrDefault("TEST_POSTGRES_PASSWORD", "localdev")
	db, err := sqldb.New(cfg)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func TestPostgresCopyRoundTrip(t *testing.T) {
	p := New(skipIfNoPostgres(t))
	ctx := context.Background()
	if err := p.Provision(ctx, []string{"it_words"}, true); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	want := sampleEntries()
	if err := p.Persist(ctx, Batch{Kind: frequency.KindWord, Table: "it_words", Entries: want}); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	got, err := p.Load(ctx, "it_words")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgresCopyRollsBack(t *testing.T) {
	p := New(skipIfNoPostgres(t))
	ctx := context.Background()
	if err := p.Provision(ctx, []string{"it_words"}, true); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	entries := append(sampleEntries(), frequency.CategorizedEntry{
		Rank: 0, Term: "dup", Category: frequency.CategoryPopular, Frequency: 120,
	})
	err := p.Persist(ctx, Batch{Kind: frequency.KindWord, Table: "it_words", Entries: entries})
	if !errors.Is(err, apperrors.ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	got, err := p.Load(ctx, "it_words")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows after failed copy, got %d", len(got))
	}
}
