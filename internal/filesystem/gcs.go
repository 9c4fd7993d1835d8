package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS serves gs:// paths from Google Cloud Storage.
type GCS struct {
	client *storage.Client
}

var _ FileSystem = (*GCS)(nil)

// NewGCS creates a client from a service account key file, or from
// application default credentials when no file is configured.
func NewGCS(ctx context.Context, creds Credentials) (*GCS, error) {
	var opts []option.ClientOption
	if creds.GCSCredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, creds.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client}, nil
}

// List implements FileSystem.
func (f *GCS) List(ctx context.Context, dir, glob string) ([]string, error) {
	bucket, key, err := parseBucketPath(dir, "gs", "gcs")
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)
	it := f.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", dir, err)
		}
		if attrs.Name != "" {
			keys = append(keys, attrs.Name)
		}
	}
	return filterDirect(keys, prefix, glob, func(k string) string {
		return "gs://" + bucket + "/" + k
	})
}

// Open implements FileSystem.
func (f *GCS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, err := parseBucketPath(p, "gs", "gcs")
	if err != nil {
		return nil, err
	}
	r, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	return r, nil
}

// Create implements FileSystem. The object is committed on Close.
func (f *GCS) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	bucket, key, err := parseBucketPath(p, "gs", "gcs")
	if err != nil {
		return nil, err
	}
	return f.client.Bucket(bucket).Object(key).NewWriter(ctx), nil
}

// Local implements FileSystem.
func (f *GCS) Local() bool { return false }
