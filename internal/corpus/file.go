package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSource reads local files matching glob patterns. Matches are
// deduplicated and read in lexical order.
type FileSource struct {
	Patterns []string
}

func (f FileSource) Name() string {
	return "file:" + strings.Join(f.Patterns, ",")
}

// Files expands the patterns. A pattern that matches nothing is an error.
func (f FileSource) Files() ([]string, error) {
	if len(f.Patterns) == 0 {
		return nil, fmt.Errorf("no corpus paths configured")
	}
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range f.Patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matched no files", pattern)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if info.IsDir() {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("patterns %v matched only directories", f.Patterns)
	}
	sort.Strings(files)
	return files, nil
}

func (f FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	files, err := f.Files()
	if err != nil {
		return nil, err
	}
	parts := make([]part, len(files))
	for i, path := range files {
		parts[i] = part{
			name: path,
			open: func(context.Context) (io.ReadCloser, error) {
				fh, err := os.Open(path)
				if err != nil {
					return nil, err
				}
				return maybeGunzip(path, fh)
			},
		}
	}
	return newConcat(ctx, parts), nil
}
