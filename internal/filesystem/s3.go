package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 serves s3:// and s3a:// paths from S3-compatible object storage.
type S3 struct {
	client *s3.Client
}

var _ FileSystem = (*S3)(nil)

// NewS3 creates an S3 client from static credentials. Without an explicit
// endpoint the AWS default for the region is used.
func NewS3(creds Credentials) (*S3, error) {
	if creds.S3AccessKey == "" || creds.S3SecretKey == "" {
		return nil, fmt.Errorf("S3 access key and secret key are required")
	}
	region := creds.S3Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.S3AccessKey, creds.S3SecretKey, "",
		),
		UsePathStyle: creds.S3PathStyle,
	}
	if creds.S3Endpoint != "" {
		endpoint := creds.S3Endpoint
		if Scheme(endpoint) == "file" {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &S3{client: s3.New(opts)}, nil
}

// List implements FileSystem.
func (f *S3) List(ctx context.Context, dir, glob string) ([]string, error) {
	bucket, key, err := parseBucketPath(dir, "s3", "s3a")
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)
	var keys []string
	pager := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", dir, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return filterDirect(keys, prefix, glob, func(k string) string {
		return "s3://" + bucket + "/" + k
	})
}

// Open implements FileSystem.
func (f *S3) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, err := parseBucketPath(p, "s3", "s3a")
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", p, err)
	}
	return out.Body, nil
}

// Create buffers the object and uploads it on Close.
func (f *S3) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	bucket, key, err := parseBucketPath(p, "s3", "s3a")
	if err != nil {
		return nil, err
	}
	return &bufferedWriter{upload: func(data []byte) error {
		_, err := f.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("put %q: %w", p, err)
		}
		return nil
	}}, nil
}

// Local implements FileSystem.
func (f *S3) Local() bool { return false }

// bufferedWriter collects a whole object in memory for stores whose upload
// call needs the full body.
type bufferedWriter struct {
	buf    bytes.Buffer
	upload func(data []byte) error
	closed bool
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write after close")
	}
	return w.buf.Write(p)
}

func (w *bufferedWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}

func (w *bufferedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.upload(w.buf.Bytes())
}
