// Package filesystem gives the file connector one interface over local
// directories and remote object stores (S3, GCS, Azure Blob).
package filesystem

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
)

// FileSystem lists, reads and writes the files of one location.
type FileSystem interface {
	// List returns the full paths of the regular files directly under dir
	// whose base name matches glob, sorted.
	List(ctx context.Context, dir, glob string) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Create writes a new file; the content is durable once Close returns
	// without error.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
	// Local reports whether paths are visible to the local process as
	// ordinary files.
	Local() bool
}

// Aborter is implemented by writers that can discard a file instead of
// publishing it.
type Aborter interface {
	Abort() error
}

// Abort discards w when it supports it and closes it otherwise.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// Credentials are the pass-through options for remote stores.
type Credentials struct {
	S3AccessKey        string
	S3SecretKey        string
	S3Endpoint         string
	S3Region           string
	S3PathStyle        bool
	GCSCredentialsFile string
	AzureAccountName   string
	AzureAccountKey    string
}

// Scheme returns the URI scheme of p, or "file" for bare paths.
func Scheme(p string) string {
	u, err := url.Parse(p)
	if err != nil || len(u.Scheme) < 2 {
		// one letter schemes are Windows drive letters
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// ForPath returns the file system serving p.
func ForPath(ctx context.Context, p string, creds Credentials) (FileSystem, error) {
	switch Scheme(p) {
	case "file":
		return Local{}, nil
	case "s3", "s3a":
		return NewS3(creds)
	case "gs", "gcs":
		return NewGCS(ctx, creds)
	case "az", "abfss":
		return NewAzure(creds)
	default:
		return nil, fmt.Errorf("unsupported file system scheme %q in %q", Scheme(p), p)
	}
}

// Join appends a file name to a directory path or URI.
func Join(dir, name string) string {
	if Scheme(dir) == "file" {
		return path.Join(strings.TrimPrefix(dir, "file://"), name)
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// Match reports whether the base name of p matches glob. An empty glob
// matches everything.
func Match(glob, p string) (bool, error) {
	if glob == "" || glob == "*" {
		return true, nil
	}
	ok, err := path.Match(glob, path.Base(p))
	if err != nil {
		return false, fmt.Errorf("invalid glob %q: %w", glob, err)
	}
	return ok, nil
}

// parseBucketPath splits scheme://bucket/key into bucket and key. The key
// may be empty for a bucket root.
func parseBucketPath(p string, schemes ...string) (bucket, key string, err error) {
	u, err := url.Parse(p)
	if err != nil {
		return "", "", fmt.Errorf("parse path %q: %w", p, err)
	}
	ok := false
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			ok = true
		}
	}
	if !ok {
		return "", "", fmt.Errorf("expected %s:// scheme, got %q in %q", schemes[0], u.Scheme, p)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("empty bucket in path %q", p)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// dirPrefix turns a directory key into an object listing prefix.
func dirPrefix(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

// filterDirect keeps the keys directly under prefix matching glob and
// returns them as full paths built by toPath.
func filterDirect(keys []string, prefix, glob string, toPath func(key string) string) ([]string, error) {
	var out []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		ok, err := Match(glob, rest)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, toPath(k))
		}
	}
	sort.Strings(out)
	return out, nil
}
