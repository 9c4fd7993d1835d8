package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"

	"duck-connect/internal/connector"
	"duck-connect/internal/ddl"
	"duck-connect/internal/domain"
	"duck-connect/internal/extract"
	"duck-connect/internal/inject"
	"duck-connect/internal/types"
)

// avroFormat reads and writes Avro object container files.
type avroFormat struct{}

func (avroFormat) extension() string { return "avro" }

// resolve trusts declared fields without scanning data. Otherwise it reads
// the schema embedded in the first file's header only.
func (avroFormat) resolve(ctx context.Context, src source, declared []domain.ExternalField) ([]domain.ExternalField, error) {
	if len(declared) > 0 {
		for _, f := range declared {
			if f.Type == types.Object || f.Type == types.Null {
				return nil, domain.ErrSchema("column %q: type %s is not supported by format %q", f.Name, f.Type, FormatAvro)
			}
			if err := ddl.ValidateIdentifier(f.Path()); err != nil {
				return nil, domain.ErrSchema("column %q: invalid Avro field name %q: %v", f.Name, f.Path(), err)
			}
		}
		return declared, nil
	}
	if len(src.files) == 0 {
		return nil, noDataFound(src.opts.Path)
	}
	path := src.files[0]
	rc, err := src.fs.Open(ctx, path)
	if err != nil {
		return nil, domain.ErrResource(path, err)
	}
	defer rc.Close()
	dec, err := ocf.NewDecoder(rc)
	if err != nil {
		return nil, domain.ErrSchema("file %s is not an Avro container file: %v", path, err)
	}
	schema, err := avro.Parse(string(dec.Metadata()["avro.schema"]))
	if err != nil {
		return nil, domain.ErrSchema("file %s: invalid Avro schema: %v", path, err)
	}
	return avroFields(schema)
}

// avroFields maps the top-level fields of a record schema, in declaration
// order.
func avroFields(schema avro.Schema) ([]domain.ExternalField, error) {
	rec, ok := schema.(*avro.RecordSchema)
	if !ok {
		return nil, domain.ErrSchema("Avro schema is a %s, not a record", schema.Type())
	}
	fields := make([]domain.ExternalField, 0, len(rec.Fields()))
	for _, f := range rec.Fields() {
		fields = append(fields, domain.ExternalField{Name: f.Name(), Type: avroType(f.Type())})
	}
	return fields, nil
}

// avroType maps an Avro schema onto a column type. Nullable unions take
// the type of their non-null branch; anything else is OBJECT.
func avroType(s avro.Schema) types.Type {
	if u, ok := s.(*avro.UnionSchema); ok {
		var branch avro.Schema
		for _, t := range u.Types() {
			if t.Type() == avro.Null {
				continue
			}
			if branch != nil {
				return types.Object
			}
			branch = t
		}
		if branch == nil {
			return types.Null
		}
		s = branch
	}
	if p, ok := s.(*avro.PrimitiveSchema); ok && p.Logical() != nil {
		switch p.Logical().Type() {
		case avro.Date:
			return types.Date
		case avro.TimestampMillis, avro.TimestampMicros:
			return types.TimestampWithTimeZone
		case avro.LocalTimestampMillis, avro.LocalTimestampMicros:
			return types.Timestamp
		default:
			return types.Object
		}
	}
	switch s.Type() {
	case avro.Boolean:
		return types.Boolean
	case avro.Int:
		return types.Int
	case avro.Long:
		return types.BigInt
	case avro.Float:
		return types.Real
	case avro.Double:
		return types.Double
	case avro.String:
		return types.Varchar
	case avro.Null:
		return types.Null
	default:
		return types.Object
	}
}

// writeSchema builds the record schema part files are written with. Every
// field is a nullable union of the column's Avro primitive.
func writeSchema(fields []connector.TableField) (avro.Schema, error) {
	type fieldDef struct {
		Name    string `json:"name"`
		Type    []any  `json:"type"`
		Default any    `json:"default"`
	}
	defs := make([]fieldDef, len(fields))
	for i, f := range fields {
		if err := ddl.ValidateIdentifier(f.Path); err != nil {
			return nil, fmt.Errorf("invalid Avro field name %q: %w", f.Path, err)
		}
		defs[i] = fieldDef{Name: f.Path, Type: []any{"null", inject.AvroPrimitive(f.Type)}}
	}
	doc, err := json.Marshal(map[string]any{
		"type":      "record",
		"name":      "Row",
		"namespace": "duck_connect",
		"fields":    defs,
	})
	if err != nil {
		return nil, err
	}
	return avro.Parse(string(doc))
}

func (avroFormat) newQueryTarget([]connector.TableField) extract.QueryTarget {
	return extract.NewAvroTarget()
}

func (avroFormat) read(ctx context.Context, src source, path string, _ []connector.TableField, fn func(record any) error) error {
	rc, err := src.fs.Open(ctx, path)
	if err != nil {
		return domain.ErrResource(path, err)
	}
	defer rc.Close()
	dec, err := ocf.NewDecoder(rc)
	if err != nil {
		return fmt.Errorf("open Avro file %s: %w", path, err)
	}
	for dec.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := dec.Error(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (avroFormat) newUpsertTarget([]connector.TableField) inject.UpsertTarget {
	return inject.NewAvroTarget()
}

func (avroFormat) newWriter(w io.Writer, _ *Options, fields []connector.TableField) (recordWriter, error) {
	schema, err := writeSchema(fields)
	if err != nil {
		return nil, err
	}
	enc, err := ocf.NewEncoder(schema.String(), w)
	if err != nil {
		return nil, fmt.Errorf("create Avro encoder: %w", err)
	}
	return &avroWriter{enc: enc}, nil
}

type avroWriter struct {
	enc *ocf.Encoder
}

func (w *avroWriter) Write(record any) error { return w.enc.Encode(record) }

func (w *avroWriter) Close() error { return w.enc.Close() }
