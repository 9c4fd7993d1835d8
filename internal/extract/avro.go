package extract

import (
	"fmt"

	"duck-connect/internal/types"
)

// avroPrimitives are the branch names a generic union decode may wrap a
// value in.
var avroPrimitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

// AvroTarget extracts top-level fields from a generically decoded Avro
// record.
type AvroTarget struct {
	record map[string]any
	err    error
}

var _ QueryTarget = (*AvroTarget)(nil)

// NewAvroTarget returns an empty target.
func NewAvroTarget() *AvroTarget { return &AvroTarget{} }

// SetTarget implements QueryTarget.
func (t *AvroTarget) SetTarget(record any) {
	t.record, t.err = nil, nil
	m, ok := record.(map[string]any)
	if !ok {
		t.err = fmt.Errorf("unsupported Avro record type %T", record)
		return
	}
	t.record = m
}

// CreateExtractor implements QueryTarget.
func (t *AvroTarget) CreateExtractor(path string, typ types.Type) Extractor {
	return func() (any, error) {
		if t.err != nil {
			return nil, fmt.Errorf("failed to extract field %q: %w", path, t.err)
		}
		v := unwrapUnion(t.record[path])
		if b, ok := v.([]byte); ok && typ == types.Varchar {
			v = string(b)
		}
		return convert(path, typ, v)
	}
}

// unwrapUnion unwraps the {"branch": value} form of a decoded union.
func unwrapUnion(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, inner := range m {
		if avroPrimitives[k] {
			return inner
		}
	}
	return v
}
