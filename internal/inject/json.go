package inject

import (
	"encoding/json"
	"fmt"

	"duck-connect/internal/types"
)

// JSONTarget builds one JSON object per record and concludes with its
// encoded bytes. A value injected at "this" replaces the whole object; NULL
// attributes are written as JSON null.
type JSONTarget struct {
	obj  map[string]any
	this any
}

var _ UpsertTarget = (*JSONTarget)(nil)

// NewJSONTarget returns an empty target.
func NewJSONTarget() *JSONTarget { return &JSONTarget{} }

// Init implements UpsertTarget.
func (t *JSONTarget) Init() {
	t.obj = map[string]any{}
	t.this = nil
}

// CreateInjector implements UpsertTarget.
func (t *JSONTarget) CreateInjector(path string, typ types.Type) Injector {
	return func(value any) error {
		v, err := coerce(path, typ, value)
		if err != nil {
			return err
		}
		if path == "this" {
			t.this = v
			return nil
		}
		return setPath(t.obj, path, jsonValue(v))
	}
}

// Conclude implements UpsertTarget.
func (t *JSONTarget) Conclude() (any, error) {
	var out any = t.obj
	if t.this != nil {
		whole, ok := t.this.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("failed to inject field %q: %T is not an object", "this", t.this)
		}
		for k, v := range t.obj {
			whole[k] = v
		}
		out = whole
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode JSON record: %w", err)
	}
	return data, nil
}
