package corpus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

func readAll(t *testing.T, src Source) []string {
	t.Helper()
	lr, err := Open(context.Background(), src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lr.Close()
	lines := slices.Collect(lr.Lines())
	if err := lr.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	return lines
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeGzip(t *testing.T, path, body string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(body)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	writeFile(t, path, buf.String())
}

func TestTextSource(t *testing.T) {
	got := readAll(t, Text{Body: "a a a\r\nb b\nc"})
	want := []string{"a a a", "b b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceOrderAndGzip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "second file\n")
	// No trailing newline: the last line must not merge with the next file.
	writeFile(t, filepath.Join(dir, "a.txt"), "first file\nno newline")
	writeGzip(t, filepath.Join(dir, "c.txt.gz"), "compressed line\n")

	got := readAll(t, FileSource{Patterns: []string{filepath.Join(dir, "*")}})
	want := []string{"first file", "no newline", "second file", "compressed line"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceDeduplicatesAcrossPatterns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "once\n")

	got := readAll(t, FileSource{Patterns: []string{path, filepath.Join(dir, "*.txt")}})
	if diff := cmp.Diff([]string{"once"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		patterns []string
	}{
		{"no patterns", nil},
		{"no match", []string{filepath.Join(dir, "missing-*.txt")}},
		{"bad pattern", []string{"[" + dir}},
		{"only directories", []string{dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), FileSource{Patterns: tt.patterns})
			if !errors.Is(err, apperrors.ErrSource) {
				t.Errorf("expected ErrSource, got %v", err)
			}
		})
	}
}

func TestCorruptGzipSurfacesThroughErr(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.gz"), "definitely not gzip")

	lr, err := Open(context.Background(), FileSource{Patterns: []string{filepath.Join(dir, "bad.gz")}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lr.Close()
	for range lr.Lines() {
	}
	if !errors.Is(lr.Err(), apperrors.ErrSource) {
		t.Errorf("expected ErrSource from Err, got %v", lr.Err())
	}
}

func TestLineTooLong(t *testing.T) {
	lr := NewLineReader("huge", io.NopCloser(strings.NewReader(strings.Repeat("x", MaxLineBytes+1))))
	for range lr.Lines() {
	}
	if !errors.Is(lr.Err(), apperrors.ErrSource) {
		t.Errorf("expected ErrSource, got %v", lr.Err())
	}
}

func TestConcatStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := newConcat(ctx, []part{{name: "p", open: func(context.Context) (io.ReadCloser, error) {
		t.Fatal("part must not be opened after cancel")
		return nil, nil
	}}})
	if _, err := io.ReadAll(rc); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string]string
	calls   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls = append(f.calls, *in.Key)
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3SourceStreamsKeysInOrder(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte("zipped"))
	zw.Close()

	client := &fakeS3{objects: map[string]string{
		"corpus/1.txt":    "one\ntwo",
		"corpus/2.txt.gz": gz.String(),
	}}
	src := S3Source{Client: client, Bucket: "texts", Keys: []string{"corpus/1.txt", "corpus/2.txt.gz"}}

	got := readAll(t, src)
	if diff := cmp.Diff([]string{"one", "two", "zipped"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"corpus/1.txt", "corpus/2.txt.gz"}, client.calls); diff != "" {
		t.Errorf("GetObject calls mismatch (-want +got):\n%s", diff)
	}
}

func TestS3SourceMissingObject(t *testing.T) {
	src := S3Source{Client: &fakeS3{}, Bucket: "texts", Keys: []string{"absent"}}
	lr, err := Open(context.Background(), src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lr.Close()
	for range lr.Lines() {
	}
	if !errors.Is(lr.Err(), apperrors.ErrSource) {
		t.Errorf("expected ErrSource, got %v", lr.Err())
	}
}

func TestS3SourceRequiresBucketAndKeys(t *testing.T) {
	if _, err := Open(context.Background(), S3Source{Client: &fakeS3{}, Keys: []string{"k"}}); !errors.Is(err, apperrors.ErrSource) {
		t.Errorf("missing bucket: expected ErrSource, got %v", err)
	}
	if _, err := Open(context.Background(), S3Source{Client: &fakeS3{}, Bucket: "b"}); !errors.Is(err, apperrors.ErrSource) {
		t.Errorf("missing keys: expected ErrSource, got %v", err)
	}
}
