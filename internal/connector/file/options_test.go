package file

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-connect/internal/domain"
)

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		OptionFormat: "CSV",
		OptionPath:   "/data/users",
	})
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, opts.Format)
	assert.Equal(t, "/data/users", opts.Path)
	assert.Equal(t, "*", opts.Glob)
	assert.False(t, opts.SharedFileSystem)
	assert.True(t, opts.Header)
	assert.Equal(t, ',', opts.Delimiter)
	assert.Equal(t, "UTF-8", opts.Charset.String())
}

func TestParseOptions_AllKeys(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		OptionFormat:           "csv",
		OptionPath:             "s3://lake/raw",
		OptionGlob:             "*.tsv",
		OptionSharedFileSystem: "true",
		OptionCharset:          "ISO-8859-1",
		OptionHeader:           "false",
		OptionDelimiter:        "\t",
		OptionS3AccessKey:      "AK",
		OptionS3SecretKey:      "SK",
		OptionS3Endpoint:       "minio:9000",
		OptionS3Region:         "eu-central-1",
		OptionS3PathStyle:      "true",
	})
	require.NoError(t, err)

	assert.Equal(t, "*.tsv", opts.Glob)
	assert.True(t, opts.SharedFileSystem)
	assert.False(t, opts.Header)
	assert.Equal(t, '\t', opts.Delimiter)
	assert.Equal(t, "ISO-8859-1", opts.Charset.String())
	assert.Equal(t, "AK", opts.Credentials.S3AccessKey)
	assert.Equal(t, "SK", opts.Credentials.S3SecretKey)
	assert.Equal(t, "minio:9000", opts.Credentials.S3Endpoint)
	assert.Equal(t, "eu-central-1", opts.Credentials.S3Region)
	assert.True(t, opts.Credentials.S3PathStyle)
}

func TestParseOptions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]string
		wantMsg string
	}{
		{"unknown_key", map[string]string{OptionFormat: "csv", OptionPath: "/d", "file.bogus": "x"}, "file.bogus"},
		{"missing_format", map[string]string{OptionPath: "/d"}, OptionFormat},
		{"bad_format", map[string]string{OptionFormat: "xml", OptionPath: "/d"}, "xml"},
		{"missing_path", map[string]string{OptionFormat: "csv"}, OptionPath},
		{"bad_bool", map[string]string{OptionFormat: "csv", OptionPath: "/d", OptionHeader: "yes please"}, OptionHeader},
		{"bad_delimiter", map[string]string{OptionFormat: "csv", OptionPath: "/d", OptionDelimiter: ";;"}, OptionDelimiter},
		{"header_on_json", map[string]string{OptionFormat: "json", OptionPath: "/d", OptionHeader: "true"}, OptionHeader},
		{"bad_charset", map[string]string{OptionFormat: "json", OptionPath: "/d", OptionCharset: "klingon"}, OptionCharset},
		{"bad_glob", map[string]string{OptionFormat: "json", OptionPath: "/d", OptionGlob: "["}, OptionGlob},
		{"remote_parquet", map[string]string{OptionFormat: "parquet", OptionPath: "s3://b/p"}, "local"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOptions(tc.options)
			require.Error(t, err)
			var schemaErr *domain.SchemaError
			assert.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %T", err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}
