package file

import (
	"context"
	"io"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/extract"
	"duck-connect/internal/filesystem"
	"duck-connect/internal/inject"
)

// source is the location a format reads from or infers its schema from.
type source struct {
	fs    filesystem.FileSystem
	opts  *Options
	files []string
}

// recordWriter writes native records produced by a format's upsert target.
type recordWriter interface {
	Write(record any) error
	Close() error
}

// format implements one file format.
type format interface {
	// resolve validates declared fields, or infers fields from src when
	// none are declared.
	resolve(ctx context.Context, src source, declared []domain.ExternalField) ([]domain.ExternalField, error)

	newQueryTarget(fields []connector.TableField) extract.QueryTarget

	// read streams the records of one file to fn.
	read(ctx context.Context, src source, path string, fields []connector.TableField, fn func(record any) error) error

	newUpsertTarget(fields []connector.TableField) inject.UpsertTarget

	// newWriter starts a part file written to w.
	newWriter(w io.Writer, opts *Options, fields []connector.TableField) (recordWriter, error)

	extension() string
}

func formatFor(f Format) format {
	switch f {
	case FormatCSV:
		return csvFormat{}
	case FormatJSON:
		return jsonFormat{}
	case FormatAvro:
		return avroFormat{}
	case FormatParquet:
		return parquetFormat{}
	default:
		return nil
	}
}

func noDataFound(path string) error {
	return domain.ErrSchema("no data found in '%s'", path)
}
