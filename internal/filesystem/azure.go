package filesystem

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Azure serves az:// and abfss:// paths from Azure Blob Storage.
type Azure struct {
	client *azblob.Client
}

var _ FileSystem = (*Azure)(nil)

// NewAzure creates a client authenticated with an account key.
func NewAzure(creds Credentials) (*Azure, error) {
	if creds.AzureAccountName == "" || creds.AzureAccountKey == "" {
		return nil, fmt.Errorf("Azure account name and account key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(creds.AzureAccountName, creds.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", creds.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &Azure{client: client}, nil
}

// parseAzurePath extracts container and key from
//
//	az://container/path/to/file
//	abfss://container@account.dfs.core.windows.net/path/to/file
func parseAzurePath(p string) (container, key string, err error) {
	u, err := url.Parse(p)
	if err != nil {
		return "", "", fmt.Errorf("parse Azure path %q: %w", p, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "abfss":
		// url.Parse reads "container" as userinfo
		if u.User == nil {
			return "", "", fmt.Errorf("abfss path %q missing container@account component", p)
		}
		container = u.User.Username()
	case "az":
		container = u.Host
	default:
		return "", "", fmt.Errorf("unrecognized Azure path scheme %q in %q", u.Scheme, p)
	}
	if container == "" {
		return "", "", fmt.Errorf("empty container in Azure path %q", p)
	}
	return container, strings.TrimPrefix(u.Path, "/"), nil
}

// List implements FileSystem.
func (f *Azure) List(ctx context.Context, dir, glob string) ([]string, error) {
	container, key, err := parseAzurePath(dir)
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)
	base := strings.TrimSuffix(dir, "/")
	if key != "" {
		base = strings.TrimSuffix(base, "/"+strings.TrimSuffix(key, "/"))
	}
	pager := f.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", dir, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return filterDirect(keys, prefix, glob, func(k string) string {
		return base + "/" + k
	})
}

// Open implements FileSystem.
func (f *Azure) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	container, key, err := parseAzurePath(p)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", p, err)
	}
	return resp.Body, nil
}

// Create buffers the blob and uploads it on Close.
func (f *Azure) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	container, key, err := parseAzurePath(p)
	if err != nil {
		return nil, err
	}
	return &bufferedWriter{upload: func(data []byte) error {
		if _, err := f.client.UploadBuffer(ctx, container, key, data, nil); err != nil {
			return fmt.Errorf("upload %q: %w", p, err)
		}
		return nil
	}}, nil
}

// Local implements FileSystem.
func (f *Azure) Local() bool { return false }
