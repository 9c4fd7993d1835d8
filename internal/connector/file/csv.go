package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/extract"
	"duck-connect/internal/inject"
	"duck-connect/internal/types"
)

// csvFormat reads delimited text. With a header, columns are matched by
// name in every file; without one, by declaration order.
type csvFormat struct{}

func (csvFormat) extension() string { return "csv" }

func (csvFormat) resolve(ctx context.Context, src source, declared []domain.ExternalField) ([]domain.ExternalField, error) {
	if len(declared) > 0 {
		for _, f := range declared {
			if f.Type == types.Object || f.Type == types.Null {
				return nil, domain.ErrSchema("column %q: type %s is not supported by format %q", f.Name, f.Type, FormatCSV)
			}
		}
		return declared, nil
	}
	if !src.opts.Header {
		return nil, domain.ErrSchema("columns must be declared when %s is false", OptionHeader)
	}
	if len(src.files) == 0 {
		return nil, noDataFound(src.opts.Path)
	}
	header, err := readCSVHeader(ctx, src, src.files[0])
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, noDataFound(src.opts.Path)
	}
	fields := make([]domain.ExternalField, 0, len(header))
	seen := map[string]bool{}
	for _, name := range header {
		if name == "" || seen[name] {
			return nil, domain.ErrSchema("file %s: empty or duplicate header column %q", src.files[0], name)
		}
		seen[name] = true
		fields = append(fields, domain.ExternalField{Name: name, Type: types.Varchar})
	}
	return fields, nil
}

func newCSVReader(r io.Reader, opts *Options) *csv.Reader {
	cr := csv.NewReader(opts.Charset.Reader(r))
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	return cr
}

func readCSVHeader(ctx context.Context, src source, path string) ([]string, error) {
	rc, err := src.fs.Open(ctx, path)
	if err != nil {
		return nil, domain.ErrResource(path, err)
	}
	defer rc.Close()
	header, err := newCSVReader(rc, src.opts).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrResource(path, err)
	}
	return header, nil
}

func (csvFormat) newQueryTarget(fields []connector.TableField) extract.QueryTarget {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Path] = i
	}
	return extract.NewCSVTarget(index)
}

// read hands every record to fn reordered into field order.
func (csvFormat) read(ctx context.Context, src source, path string, fields []connector.TableField, fn func(record any) error) error {
	rc, err := src.fs.Open(ctx, path)
	if err != nil {
		return domain.ErrResource(path, err)
	}
	defer rc.Close()
	cr := newCSVReader(rc, src.opts)

	// positions[i] is the column holding field i, or -1
	positions := make([]int, len(fields))
	for i := range positions {
		positions[i] = i
	}
	if src.opts.Header {
		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header of %s: %w", path, err)
		}
		byName := make(map[string]int, len(header))
		for i, name := range header {
			byName[name] = i
		}
		for i, f := range fields {
			if p, ok := byName[f.Path]; ok {
				positions[i] = p
			} else {
				positions[i] = -1
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out := make([]string, len(fields))
		for i, p := range positions {
			if p >= 0 && p < len(rec) {
				out[i] = rec[p]
			}
		}
		if err := fn(out); err != nil {
			return err
		}
	}
}

func (csvFormat) newUpsertTarget(fields []connector.TableField) inject.UpsertTarget {
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = f.Path
	}
	return inject.NewCSVTarget(paths)
}

func (csvFormat) newWriter(w io.Writer, opts *Options, fields []connector.TableField) (recordWriter, error) {
	enc := opts.Charset.Writer(w)
	cw := csv.NewWriter(enc)
	cw.Comma = opts.Delimiter
	if opts.Header {
		header := make([]string, len(fields))
		for i, f := range fields {
			header[i] = f.Path
		}
		if err := cw.Write(header); err != nil {
			return nil, err
		}
	}
	return &csvWriter{cw: cw, enc: enc}, nil
}

type csvWriter struct {
	cw  *csv.Writer
	enc io.Closer
}

func (w *csvWriter) Write(record any) error {
	rec, ok := record.([]string)
	if !ok {
		return fmt.Errorf("unexpected delimited record %T", record)
	}
	return w.cw.Write(rec)
}

func (w *csvWriter) Close() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return err
	}
	return w.enc.Close()
}
