package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local is the file system of the current host.
type Local struct{}

var _ FileSystem = Local{}

func localPath(p string) string { return strings.TrimPrefix(p, "file://") }

// List implements FileSystem.
func (Local) List(_ context.Context, dir, glob string) ([]string, error) {
	dir = localPath(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		// hidden and in-progress files are never data
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ok, err := Match(glob, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Open implements FileSystem.
func (Local) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(localPath(p))
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", p, err)
	}
	return f, nil
}

// Create writes to a hidden temporary file and renames it into place on
// Close, so concurrent readers never see partial files.
func (Local) Create(_ context.Context, p string) (io.WriteCloser, error) {
	p = localPath(p)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %q: %w", p, err)
	}
	tmp := filepath.Join(filepath.Dir(p), "."+filepath.Base(p)+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", p, err)
	}
	return &localWriter{File: f, tmp: tmp, final: p}, nil
}

// Local implements FileSystem.
func (Local) Local() bool { return true }

type localWriter struct {
	*os.File
	tmp, final string
}

func (w *localWriter) Close() error {
	if err := w.File.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("close %q: %w", w.final, err)
	}
	if err := os.Rename(w.tmp, w.final); err != nil {
		return fmt.Errorf("publish %q: %w", w.final, err)
	}
	return nil
}

func (w *localWriter) Abort() error {
	_ = w.File.Close()
	return os.Remove(w.tmp)
}
