package file

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"duck-connect/internal/domain"
	"duck-connect/internal/filesystem"
)

// Recognised option keys.
const (
	OptionFormat           = "format"
	OptionPath             = "file.path"
	OptionGlob             = "file.glob"
	OptionSharedFileSystem = "file.sharedFileSystem"
	OptionCharset          = "file.charset"
	OptionHeader           = "file.header"
	OptionDelimiter        = "file.delimiter"

	OptionS3AccessKey    = "file.s3a.access.key"
	OptionS3SecretKey    = "file.s3a.secret.key"
	OptionS3Endpoint     = "file.s3a.endpoint"
	OptionS3Region       = "file.s3a.region"
	OptionS3PathStyle    = "file.s3a.path.style.access"
	OptionGCSCredentials = "file.gcs.credentials.file"
	OptionAzureAccount   = "file.azure.account.name"
	OptionAzureKey       = "file.azure.account.key"
)

// Format names a supported file format.
type Format string

// Supported formats.
const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatAvro    Format = "avro"
	FormatParquet Format = "parquet"
)

var knownOptions = map[string]bool{
	OptionFormat: true, OptionPath: true, OptionGlob: true, OptionSharedFileSystem: true,
	OptionCharset: true, OptionHeader: true, OptionDelimiter: true,
	OptionS3AccessKey: true, OptionS3SecretKey: true, OptionS3Endpoint: true, OptionS3Region: true,
	OptionS3PathStyle: true, OptionGCSCredentials: true, OptionAzureAccount: true, OptionAzureKey: true,
}

// Options is the validated option bag of a file table.
type Options struct {
	Format           Format
	Path             string
	Glob             string
	SharedFileSystem bool
	Charset          filesystem.Charset
	Header           bool
	Delimiter        rune
	Credentials      filesystem.Credentials
}

// ParseOptions validates raw DDL options. Unknown keys, and keys that do
// not apply to the chosen format, are rejected.
func ParseOptions(raw map[string]string) (*Options, error) {
	var unknown []string
	for k := range raw {
		if !knownOptions[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, domain.ErrSchema("unknown option(s) %s", strings.Join(unknown, ", "))
	}

	opts := &Options{
		Format:    Format(strings.ToLower(raw[OptionFormat])),
		Path:      raw[OptionPath],
		Glob:      "*",
		Header:    true,
		Delimiter: ',',
	}
	switch opts.Format {
	case FormatCSV, FormatJSON, FormatAvro, FormatParquet:
	case "":
		return nil, domain.ErrSchema("missing required option %q", OptionFormat)
	default:
		return nil, domain.ErrSchema("unsupported format %q", raw[OptionFormat])
	}
	if opts.Path == "" {
		return nil, domain.ErrSchema("missing required option %q", OptionPath)
	}
	if g, ok := raw[OptionGlob]; ok && g != "" {
		if _, err := filesystem.Match(g, "x"); err != nil {
			return nil, &domain.SchemaError{Message: "invalid option " + OptionGlob, Err: err}
		}
		opts.Glob = g
	}

	var err error
	if opts.SharedFileSystem, err = boolOption(raw, OptionSharedFileSystem, false); err != nil {
		return nil, err
	}
	if opts.Charset, err = filesystem.ParseCharset(raw[OptionCharset]); err != nil {
		return nil, &domain.SchemaError{Message: "invalid option " + OptionCharset, Err: err}
	}

	for _, k := range []string{OptionHeader, OptionDelimiter} {
		if _, ok := raw[k]; ok && opts.Format != FormatCSV {
			return nil, domain.ErrSchema("option %q applies to format %q only", k, FormatCSV)
		}
	}
	if opts.Header, err = boolOption(raw, OptionHeader, true); err != nil {
		return nil, err
	}
	if d, ok := raw[OptionDelimiter]; ok {
		r, size := utf8.DecodeRuneInString(d)
		if size == 0 || size != len(d) || r == '"' || r == '\n' || r == '\r' || r == utf8.RuneError {
			return nil, domain.ErrSchema("option %q must be a single character, got %q", OptionDelimiter, d)
		}
		opts.Delimiter = r
	}

	if opts.Format == FormatParquet && filesystem.Scheme(opts.Path) != "file" {
		return nil, domain.ErrSchema("format %q supports local paths only, got %q", FormatParquet, opts.Path)
	}

	pathStyle, err := boolOption(raw, OptionS3PathStyle, false)
	if err != nil {
		return nil, err
	}
	opts.Credentials = filesystem.Credentials{
		S3AccessKey:        raw[OptionS3AccessKey],
		S3SecretKey:        raw[OptionS3SecretKey],
		S3Endpoint:         raw[OptionS3Endpoint],
		S3Region:           raw[OptionS3Region],
		S3PathStyle:        pathStyle,
		GCSCredentialsFile: raw[OptionGCSCredentials],
		AzureAccountName:   raw[OptionAzureAccount],
		AzureAccountKey:    raw[OptionAzureKey],
	}
	return opts, nil
}

func boolOption(raw map[string]string, key string, def bool) (bool, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ErrSchema("option %q must be true or false, got %q", key, v)
	}
	return b, nil
}

func (o *Options) String() string {
	return fmt.Sprintf("%s files in %s (glob %s)", o.Format, o.Path, o.Glob)
}
