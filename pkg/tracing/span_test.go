package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "01HRUN")
	kctx, kind := StartChildSpan(ctx, "word")
	_, stage := StartChildSpan(kctx, "rank")
	stage.End()
	kind.End()
	root.End()

	if stage.TraceID != "01HRUN" {
		t.Errorf("child trace id = %q", stage.TraceID)
	}
	if got := root.Find("rank"); got != stage {
		t.Errorf("Find returned %v", got)
	}
	if root.Find("missing") != nil {
		t.Error("Find should return nil for unknown name")
	}
	if SpanFromContext(kctx) != kind {
		t.Error("SpanFromContext did not return the kind span")
	}
}

func TestStartChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" {
		t.Errorf("expected empty trace id, got %q", span.TraceID)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	_, span := StartSpan(context.Background(), "run", "id")
	span.End()
	first := span.Duration()
	span.End()
	if span.Duration() != first {
		t.Error("second End changed the duration")
	}
}

func TestConcurrentChildren(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "id")
	var wg sync.WaitGroup
	for _, name := range []string{"word", "letter"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, s := StartChildSpan(ctx, name)
			s.SetAttr("rows", 1)
			s.End()
		}()
	}
	wg.Wait()
	if n := len(root.Children()); n != 2 {
		t.Errorf("expected 2 children, got %d", n)
	}
}

func TestLogIncludesErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "run", "id")
	_, child := StartChildSpan(ctx, "persist")
	child.SetError(errors.New("duplicate key"))
	child.End()
	root.End()
	root.Log(logger)

	out := buf.String()
	if !strings.Contains(out, "span=run") || !strings.Contains(out, "span=persist") {
		t.Errorf("missing span records: %s", out)
	}
	if !strings.Contains(out, "duplicate key") {
		t.Errorf("missing error: %s", out)
	}
}
