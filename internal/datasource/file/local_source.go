// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"graphload/internal/datasource"
)

// Local is a filesystem data source that opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path. It is safe for concurrent use.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open returns the file at the configured path. A canceled context returns
// the context error without touching the filesystem. Filesystem errors are
// wrapped with the path and still match os.ErrNotExist and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Dir lists the regular files directly under a directory. Subdirectories
// are not descended into.
type Dir struct{ root string }

// NewDir returns a Dir rooted at root.
func NewDir(root string) *Dir { return &Dir{root: root} }

// List returns the sorted names of the regular files under the root.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.root, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Source implements datasource.Dir.
func (d *Dir) Source(name string) datasource.Source {
	return NewLocal(filepath.Join(d.root, name))
}

// Location implements datasource.Dir.
func (d *Dir) Location() string { return d.root }
