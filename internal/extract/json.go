package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"duck-connect/internal/types"
)

// JSONTarget extracts from one JSON object. Records may be raw bytes or an
// already decoded map. Numbers are kept as json.Number so integers survive
// without float rounding. Absent keys are NULL.
type JSONTarget struct {
	raw     []byte
	decoded map[string]any
	err     error
}

var _ QueryTarget = (*JSONTarget)(nil)

// NewJSONTarget returns an empty target.
func NewJSONTarget() *JSONTarget { return &JSONTarget{} }

// SetTarget implements QueryTarget.
func (t *JSONTarget) SetTarget(record any) {
	t.raw, t.decoded, t.err = nil, nil, nil
	switch r := record.(type) {
	case []byte:
		t.raw = r
	case json.RawMessage:
		t.raw = r
	case string:
		t.raw = []byte(r)
	case map[string]any:
		t.decoded = r
	case nil:
		t.decoded = map[string]any{}
	default:
		t.err = fmt.Errorf("unsupported JSON record type %T", record)
	}
}

func (t *JSONTarget) object() (map[string]any, error) {
	if t.err != nil {
		return nil, t.err
	}
	if t.decoded == nil {
		m, err := DecodeJSONObject(t.raw)
		if err != nil {
			t.err = err
			return nil, err
		}
		t.decoded = m
	}
	return t.decoded, nil
}

// CreateExtractor implements QueryTarget.
func (t *JSONTarget) CreateExtractor(path string, typ types.Type) Extractor {
	return func() (any, error) {
		obj, err := t.object()
		if err != nil {
			return nil, fmt.Errorf("failed to extract field %q: %w", path, err)
		}
		if path == ThisPath {
			return convert(path, typ, obj)
		}
		return convert(path, typ, lookup(obj, path))
	}
}

// DecodeJSONObject decodes one JSON object using json.Number for numbers.
func DecodeJSONObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
