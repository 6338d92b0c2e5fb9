package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/aggregator"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/categorizer"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/persister"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/resultcache"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/sqldb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(kinds ...frequency.Kind) Config {
	return Config{
		Kinds:       kinds,
		Tables:      config.TableConfig{Word: "words", Letter: "letters"},
		Thresholds:  categorizer.DefaultThresholds(),
		Aggregation: aggregator.Options{Workers: 2, ChunkLines: 2},
	}
}

// newStore opens a SQLite store with the given tables provisioned.
func newStore(t *testing.T, tables ...string) *persister.Persister {
	t.Helper()
	db, err := sqldb.OpenSQLite(filepath.Join(t.TempDir(), "wordfreq.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	p := persister.New(db)
	if err := p.Provision(context.Background(), tables, false); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	return p
}

func newRunner(t *testing.T, cfg Config, p Persister, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, p, opts...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func load(t *testing.T, p *persister.Persister, table string) []frequency.CategorizedEntry {
	t.Helper()
	rows, err := p.Load(context.Background(), table)
	if err != nil {
		t.Fatalf("Load %s: %v", table, err)
	}
	return rows
}

func TestEndToEndSingleRow(t *testing.T) {
	store := newStore(t, "words")
	r := newRunner(t, testConfig(frequency.KindWord), store)

	report, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "a a a b b c"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []frequency.CategorizedEntry{
		{Rank: 0, Term: "a", Category: frequency.CategoryPopular, Frequency: 3},
	}
	if diff := cmp.Diff(want, load(t, store, "words")); diff != "" {
		t.Errorf("persisted rows mismatch (-want +got):\n%s", diff)
	}
	if report.RunID == "" || len(report.Results) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	res := report.Results[0]
	if res.Stats.Terms != 6 || res.Distinct != 3 || res.Rows != 1 {
		t.Errorf("unexpected result stats: %+v", res)
	}
}

func TestEmptyCorpusPersistsNothing(t *testing.T) {
	store := newStore(t, "words", "letters")
	r := newRunner(t, testConfig(frequency.KindWord, frequency.KindLetter), store)

	report, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: " ,.;\n\n"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, res := range report.Results {
		if res.Rows != 0 || res.Distinct != 0 {
			t.Errorf("%s: expected empty result, got %+v", res.Kind, res)
		}
	}
	if rows := load(t, store, "words"); len(rows) != 0 {
		t.Errorf("expected no word rows, got %d", len(rows))
	}
}

func TestLetterPipeline(t *testing.T) {
	store := newStore(t, "letters")
	r := newRunner(t, testConfig(frequency.KindLetter), store)

	if _, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "aab, b-c"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// a:2 b:2 c:1 -> ranks a=0 b=1 c=2; N=3 keeps rank 0 only.
	want := []frequency.CategorizedEntry{
		{Rank: 0, Term: "a", Category: frequency.CategoryPopular, Frequency: 2},
	}
	if diff := cmp.Diff(want, load(t, store, "letters")); diff != "" {
		t.Errorf("letter rows mismatch (-want +got):\n%s", diff)
	}
}

func TestKindsFailIndependently(t *testing.T) {
	// The letters table is never provisioned, so only the letter persist fails.
	store := newStore(t, "words")
	rec := &recordingNotifier{}
	r := newRunner(t, testConfig(frequency.KindWord, frequency.KindLetter), store, WithNotifier(rec))

	report, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "a a a b b c"}})
	if !errors.Is(err, apperrors.ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	var stageErr *apperrors.StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != "letter" || stageErr.Stage != apperrors.StagePersist {
		t.Fatalf("expected letter persist StageError, got %v", err)
	}
	if report.Results[0].Err != nil {
		t.Errorf("word pipeline should succeed: %v", report.Results[0].Err)
	}
	if rows := load(t, store, "words"); len(rows) != 1 {
		t.Errorf("word rows = %d, want 1", len(rows))
	}

	got := rec.byKind()
	if got[frequency.KindWord].Type != events.EventRunCompleted {
		t.Errorf("word event = %+v", got[frequency.KindWord])
	}
	letter := got[frequency.KindLetter]
	if letter.Type != events.EventRunFailed || letter.Stage != apperrors.StagePersist || letter.Error == "" {
		t.Errorf("letter event = %+v", letter)
	}
	if letter.RunID != report.RunID {
		t.Errorf("event run id %q != report run id %q", letter.RunID, report.RunID)
	}
}

func TestSourceFailure(t *testing.T) {
	store := newStore(t, "words")
	r := newRunner(t, testConfig(frequency.KindWord), store)

	src := corpus.FileSource{Patterns: []string{filepath.Join(t.TempDir(), "missing-*.txt")}}
	_, err := r.Run(context.Background(), Request{Source: src})
	if !errors.Is(err, apperrors.ErrSource) {
		t.Fatalf("expected ErrSource, got %v", err)
	}
	if code := apperrors.ExitCode(err); code != apperrors.ExitSource {
		t.Errorf("exit code = %d, want %d", code, apperrors.ExitSource)
	}
}

func TestCategorizeInvariantFailsKind(t *testing.T) {
	store := newStore(t, "words")
	r := newRunner(t, testConfig(frequency.KindWord), store)
	// NewRunner rejects out-of-order thresholds, so set them directly. Rank 1
	// then falls in both popular and common.
	r.cfg.Thresholds = categorizer.Thresholds{Popular: 0.9, CommonLower: 0.1, CommonUpper: 0.2, Rare: 0.95}

	_, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "a b c d e f g h i j"}})
	if !errors.Is(err, apperrors.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	var se *apperrors.StageError
	if !errors.As(err, &se) || se.Stage != apperrors.StageCategorize {
		t.Errorf("expected categorize StageError, got %v", err)
	}
	if rows := load(t, store, "words"); len(rows) != 0 {
		t.Errorf("persisted %d rows after categorize failure", len(rows))
	}
}

func TestReplaceRequest(t *testing.T) {
	store := newStore(t, "words")
	r := newRunner(t, testConfig(frequency.KindWord), store)
	ctx := context.Background()

	if _, err := r.Run(ctx, Request{Source: corpus.Text{Body: "a a a b b c"}}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	// A second append run collides on rank 0.
	if _, err := r.Run(ctx, Request{Source: corpus.Text{Body: "x x y"}}); !errors.Is(err, apperrors.ErrPersist) {
		t.Fatalf("expected ErrPersist without replace, got %v", err)
	}
	if _, err := r.Run(ctx, Request{Source: corpus.Text{Body: "x x y"}, Replace: true}); err != nil {
		t.Fatalf("Run with replace: %v", err)
	}
	// N=2: popular [0,1), common [1,2).
	want := []frequency.CategorizedEntry{
		{Rank: 0, Term: "x", Category: frequency.CategoryPopular, Frequency: 2},
		{Rank: 1, Term: "y", Category: frequency.CategoryCommon, Frequency: 1},
	}
	if diff := cmp.Diff(want, load(t, store, "words")); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

type blockingPersister struct{}

func (blockingPersister) Persist(ctx context.Context, _ persister.Batch) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPersistTimeout(t *testing.T) {
	cfg := testConfig(frequency.KindWord)
	cfg.PersistTimeout = 20 * time.Millisecond
	r := newRunner(t, cfg, blockingPersister{})

	_, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "a"}})
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, apperrors.ErrPersist) {
		t.Fatalf("expected persist deadline error, got %v", err)
	}
}

func TestCacheAndMetrics(t *testing.T) {
	store := newStore(t, "words")
	cache := &recordingCache{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newRunner(t, testConfig(frequency.KindWord), store, WithCache(cache), WithMetrics(m))

	report, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "a a a b b c"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cache.snaps) != 1 {
		t.Fatalf("expected 1 cached snapshot, got %d", len(cache.snaps))
	}
	snap := cache.snaps[0]
	if snap.RunID != report.RunID || snap.Table != "words" || len(snap.Entries) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	checks := map[string]float64{
		"runs":      testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")),
		"lines":     testutil.ToFloat64(m.LinesRead.WithLabelValues("word")),
		"terms":     testutil.ToFloat64(m.TermsCounted.WithLabelValues("word")),
		"distinct":  testutil.ToFloat64(m.DistinctTerms.WithLabelValues("word")),
		"popular":   testutil.ToFloat64(m.RowsPersisted.WithLabelValues("word", "popular")),
		"committed": testutil.ToFloat64(m.PersistBatches.WithLabelValues("word", "committed")),
	}
	want := map[string]float64{"runs": 1, "lines": 1, "terms": 6, "distinct": 3, "popular": 1, "committed": 1}
	if diff := cmp.Diff(want, checks); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheFailureDoesNotFailRun(t *testing.T) {
	store := newStore(t, "words")
	r := newRunner(t, testConfig(frequency.KindWord), store, WithCache(&recordingCache{err: errors.New("redis down")}))
	if _, err := r.Run(context.Background(), Request{Source: corpus.Text{Body: "a"}}); err != nil {
		t.Fatalf("cache failure must not fail the run: %v", err)
	}
}

func TestRequestKindsOverrideConfig(t *testing.T) {
	store := newStore(t, "words", "letters")
	r := newRunner(t, testConfig(frequency.KindWord), store)
	report, err := r.Run(context.Background(), Request{
		Source: corpus.Text{Body: "ab"},
		Kinds:  []frequency.Kind{frequency.KindLetter},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Kind != frequency.KindLetter {
		t.Errorf("unexpected results: %+v", report.Results)
	}
}

func TestRunRejectsMissingSource(t *testing.T) {
	r := newRunner(t, testConfig(frequency.KindWord), blockingPersister{})
	if _, err := r.Run(context.Background(), Request{}); !errors.Is(err, apperrors.ErrSource) {
		t.Fatalf("expected ErrSource, got %v", err)
	}
}

func TestNewRunnerValidates(t *testing.T) {
	cfg := testConfig(frequency.KindWord)
	cfg.Thresholds.Popular = 0.9
	if _, err := NewRunner(cfg, blockingPersister{}); !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("bad thresholds: expected ErrInvalidConfig, got %v", err)
	}
	cfg = testConfig(frequency.KindWord)
	cfg.Tables.Word = "no spaces allowed"
	if _, err := NewRunner(cfg, blockingPersister{}); !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("bad table: expected ErrInvalidConfig, got %v", err)
	}
}

func TestParseKinds(t *testing.T) {
	got, err := ParseKinds([]string{"letter", "word", "letter"})
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	if diff := cmp.Diff([]frequency.Kind{frequency.KindLetter, frequency.KindWord}, got); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseKinds([]string{"sentence"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Kinds = []string{"word", "letter"}
	got, err := ConfigFrom(cfg)
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if len(got.Kinds) != 2 || got.Thresholds != categorizer.DefaultThresholds() || got.Aggregation.Workers != cfg.Pipeline.Workers {
		t.Errorf("unexpected pipeline config: %+v", got)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.RunEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.RunEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) byKind() map[frequency.Kind]events.RunEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[frequency.Kind]events.RunEvent, len(n.events))
	for _, ev := range n.events {
		out[ev.Kind] = ev
	}
	return out
}

type recordingCache struct {
	mu    sync.Mutex
	snaps []resultcache.Snapshot
	err   error
}

func (c *recordingCache) Put(_ context.Context, snap resultcache.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.snaps = append(c.snaps, snap)
	return nil
}
