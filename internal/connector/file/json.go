package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/extract"
	"duck-connect/internal/inject"
	"duck-connect/internal/types"
)

// jsonSampleLines bounds schema inference for JSON lines files.
const jsonSampleLines = 100

const maxJSONLine = 16 << 20

// jsonFormat reads one JSON object per line.
type jsonFormat struct{}

func (jsonFormat) extension() string { return "jsonl" }

// resolve infers the union of top-level keys of the first lines of the
// first file, in first-seen order.
func (jsonFormat) resolve(ctx context.Context, src source, declared []domain.ExternalField) ([]domain.ExternalField, error) {
	if len(declared) > 0 {
		return declared, nil
	}
	if len(src.files) == 0 {
		return nil, noDataFound(src.opts.Path)
	}
	first := src.files[0]
	var (
		order []string
		kinds = map[string]types.Type{}
		lines int
	)
	err := jsonFormat{}.scanLines(ctx, src, first, func(line []byte) error {
		if lines >= jsonSampleLines {
			return errStopScan
		}
		lines++
		keys, err := topLevelKinds(line)
		if err != nil {
			return domain.ErrSchema("file %s line %d: %v", first, lines, err)
		}
		for _, kv := range keys {
			prev, seen := kinds[kv.key]
			if !seen {
				order = append(order, kv.key)
				kinds[kv.key] = kv.kind
				continue
			}
			kinds[kv.key] = mergeKinds(prev, kv.kind)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	if len(order) == 0 {
		return nil, noDataFound(src.opts.Path)
	}
	fields := make([]domain.ExternalField, len(order))
	for i, k := range order {
		t := kinds[k]
		if t == types.Null {
			t = types.Object
		}
		fields[i] = domain.ExternalField{Name: k, Type: t}
	}
	return fields, nil
}

var errStopScan = errors.New("stop scan")

type keyKind struct {
	key  string
	kind types.Type
}

// topLevelKinds returns the keys of one JSON object with the column type
// each value suggests. JSON null suggests nothing and is reported as NULL.
func topLevelKinds(line []byte) ([]keyKind, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var out []keyKind
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, keyKind{key: key, kind: jsonKind(raw)})
	}
	return out, nil
}

func jsonKind(raw json.RawMessage) types.Type {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return types.Null
	}
	switch trimmed[0] {
	case 'n':
		return types.Null
	case 't', 'f':
		return types.Boolean
	case '"':
		return types.Varchar
	case '{', '[':
		return types.Object
	default:
		return types.Double
	}
}

func mergeKinds(a, b types.Type) types.Type {
	switch {
	case a == b:
		return a
	case a == types.Null:
		return b
	case b == types.Null:
		return a
	default:
		return types.Object
	}
}

func (jsonFormat) scanLines(ctx context.Context, src source, path string, fn func(line []byte) error) error {
	rc, err := src.fs.Open(ctx, path)
	if err != nil {
		return domain.ErrResource(path, err)
	}
	defer rc.Close()
	sc := bufio.NewScanner(src.opts.Charset.Reader(rc))
	sc.Buffer(make([]byte, 64*1024), maxJSONLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (jsonFormat) newQueryTarget([]connector.TableField) extract.QueryTarget {
	return extract.NewJSONTarget()
}

func (f jsonFormat) read(ctx context.Context, src source, path string, _ []connector.TableField, fn func(record any) error) error {
	return f.scanLines(ctx, src, path, func(line []byte) error {
		// the scanner reuses its buffer
		return fn(bytes.Clone(line))
	})
}

func (jsonFormat) newUpsertTarget([]connector.TableField) inject.UpsertTarget {
	return inject.NewJSONTarget()
}

func (jsonFormat) newWriter(w io.Writer, opts *Options, _ []connector.TableField) (recordWriter, error) {
	enc := opts.Charset.Writer(w)
	return &jsonWriter{w: bufio.NewWriter(enc), enc: enc}, nil
}

type jsonWriter struct {
	w   *bufio.Writer
	enc io.Closer
}

func (w *jsonWriter) Write(record any) error {
	data, ok := record.([]byte)
	if !ok {
		return fmt.Errorf("unexpected JSON record %T", record)
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *jsonWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Close()
}
