// Package corpus reads the input text of a run. A Source opens one logical
// stream over all of its parts (files or objects) in a fixed order; a
// LineReader turns that stream into a lazy sequence of lines.
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

// MaxLineBytes bounds a single line. Longer lines fail the read.
const MaxLineBytes = 16 << 20

// Source is a re-openable corpus. Every Open starts from the beginning, so
// concurrent pipelines each get an independent stream.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// LineReader yields the lines of r once. Read errors stop the sequence and
// are reported by Err.
type LineReader struct {
	r    io.ReadCloser
	name string
	err  error
}

func NewLineReader(name string, r io.ReadCloser) *LineReader {
	return &LineReader{r: r, name: name}
}

// Lines returns the line sequence. Line terminators are stripped.
func (lr *LineReader) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(lr.r)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
		for sc.Scan() {
			if !yield(sc.Text()) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			lr.err = fmt.Errorf("%w: reading %s: %w", apperrors.ErrSource, lr.name, err)
		}
	}
}

// Err returns the first read error, if any, after Lines has been consumed.
func (lr *LineReader) Err() error {
	return lr.err
}

func (lr *LineReader) Close() error {
	return lr.r.Close()
}

// Open opens src and wraps it in a LineReader. Open failures wrap ErrSource.
func Open(ctx context.Context, src Source) (*LineReader, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", apperrors.ErrSource, src.Name(), err)
	}
	return NewLineReader(src.Name(), rc), nil
}

// part is one file or object of a source.
type part struct {
	name string
	open func(ctx context.Context) (io.ReadCloser, error)
}

// concat reads parts one after another, opening each lazily. A newline is
// inserted after a part that does not end with one so that lines never span
// two parts.
type concat struct {
	ctx            context.Context
	parts          []part
	next           int
	cur            io.ReadCloser
	last           byte
	pendingNewline bool
}

func newConcat(ctx context.Context, parts []part) *concat {
	return &concat{ctx: ctx, parts: parts}
}

func (c *concat) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.pendingNewline {
			c.pendingNewline = false
			p[0] = '\n'
			return 1, nil
		}
		if c.cur == nil {
			if c.next >= len(c.parts) {
				return 0, io.EOF
			}
			if err := c.ctx.Err(); err != nil {
				return 0, err
			}
			pt := c.parts[c.next]
			c.next++
			rc, err := pt.open(c.ctx)
			if err != nil {
				return 0, fmt.Errorf("opening %s: %w", pt.name, err)
			}
			c.cur = rc
			c.last = '\n'
		}
		n, err := c.cur.Read(p)
		if n > 0 {
			c.last = p[n-1]
		}
		if err == io.EOF {
			cerr := c.cur.Close()
			c.cur = nil
			if cerr != nil {
				return n, cerr
			}
			c.pendingNewline = c.last != '\n'
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *concat) Close() error {
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}

// maybeGunzip decompresses rc when name ends in .gz.
func maybeGunzip(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	if !strings.HasSuffix(name, ".gz") {
		return rc, nil
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("gzip header of %s: %w", name, err)
	}
	return &gzipReadCloser{Reader: zr, underlying: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return zerr
}

// Text is an in-memory source, used for request payloads and tests.
type Text struct {
	Label string
	Body  string
}

func (t Text) Name() string {
	if t.Label == "" {
		return "text"
	}
	return t.Label
}

func (t Text) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(t.Body)), nil
}
