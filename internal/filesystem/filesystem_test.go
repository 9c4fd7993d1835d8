package filesystem

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheme(t *testing.T) {
	tests := map[string]string{
		"/data/users":              "file",
		"file:///data/users":       "file",
		"relative/dir":             "file",
		`C:\data`:                  "file",
		"s3://bucket/prefix":       "s3",
		"S3A://bucket/prefix":      "s3a",
		"gs://bucket/prefix":       "gs",
		"az://container/prefix":    "az",
		"abfss://c@a.dfs.core/pre": "abfss",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Scheme(in))
		})
	}
}

func TestForPath_Unsupported(t *testing.T) {
	_, err := ForPath(context.Background(), "ftp://host/dir", Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

func TestForPath_MissingCredentials(t *testing.T) {
	_, err := ForPath(context.Background(), "s3://bucket/dir", Credentials{})
	require.Error(t, err)
	_, err = ForPath(context.Background(), "az://container/dir", Credentials{})
	require.Error(t, err)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/data/x.csv", Join("/data", "x.csv"))
	assert.Equal(t, "/data/x.csv", Join("file:///data/", "x.csv"))
	assert.Equal(t, "s3://b/p/x.csv", Join("s3://b/p/", "x.csv"))
	assert.Equal(t, "gs://b/x.csv", Join("gs://b", "x.csv"))
}

func TestMatch(t *testing.T) {
	ok, err := Match("*.csv", "/data/users.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match("*.csv", "/data/users.json")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Match("", "anything")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Match("[", "x")
	require.Error(t, err)
}

func TestParseBucketPath(t *testing.T) {
	bucket, key, err := parseBucketPath("s3://lake/raw/users/", "s3", "s3a")
	require.NoError(t, err)
	assert.Equal(t, "lake", bucket)
	assert.Equal(t, "raw/users/", key)

	_, _, err = parseBucketPath("gs://lake/raw", "s3", "s3a")
	require.Error(t, err)

	_, _, err = parseBucketPath("s3:///raw", "s3")
	require.Error(t, err)
}

func TestParseAzurePath(t *testing.T) {
	container, key, err := parseAzurePath("abfss://raw@acct.dfs.core.windows.net/users/part.avro")
	require.NoError(t, err)
	assert.Equal(t, "raw", container)
	assert.Equal(t, "users/part.avro", key)

	container, key, err = parseAzurePath("az://raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", container)
	assert.Equal(t, "", key)

	_, _, err = parseAzurePath("https://acct.blob.core.windows.net/raw/x")
	require.Error(t, err)
}

func TestFilterDirect(t *testing.T) {
	keys := []string{"raw/b.csv", "raw/a.csv", "raw/nested/c.csv", "raw/d.json", "raw/"}
	out, err := filterDirect(keys, "raw/", "*.csv", func(k string) string { return "s3://lake/" + k })
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://lake/raw/a.csv", "s3://lake/raw/b.csv"}, out)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := Local{}

	for _, name := range []string{"b.csv", "a.csv", "c.json"} {
		w, err := fs.Create(ctx, filepath.Join(dir, name))
		require.NoError(t, err)
		_, err = w.Write([]byte(name))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.csv"), []byte("x"), 0o644))

	files, err := fs.List(ctx, dir, "*.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, files)

	r, err := fs.Open(ctx, "file://"+filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", string(data))

	_, err = fs.List(ctx, filepath.Join(dir, "missing"), "*")
	require.Error(t, err)
	assert.True(t, fs.Local())
}

func TestLocal_CreateMakesDirectories(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "out", "part-0.csv")

	w, err := Local{}.Create(ctx, target)
	require.NoError(t, err)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "file appears only after Close")
	require.NoError(t, w.Close())

	_, err = os.Stat(target)
	require.NoError(t, err)
}

func TestCharset(t *testing.T) {
	utf8, err := ParseCharset("")
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", utf8.String())

	latin1, err := ParseCharset("ISO-8859-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	w := latin1.Writer(&buf)
	_, err = w.Write([]byte("café"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, buf.Bytes())

	decoded, err := io.ReadAll(latin1.Reader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, "café", string(decoded))

	_, err = ParseCharset("no-such-charset")
	require.Error(t, err)
}
