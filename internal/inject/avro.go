package inject

import (
	"duck-connect/internal/types"
)

// AvroTarget builds a generic Avro record. Values are mapped onto the
// primitive each column type is written as (see AvroPrimitive).
type AvroTarget struct {
	record map[string]any
}

var _ UpsertTarget = (*AvroTarget)(nil)

// NewAvroTarget returns an empty target.
func NewAvroTarget() *AvroTarget { return &AvroTarget{} }

// AvroPrimitive names the Avro primitive a column type is written as.
func AvroPrimitive(t types.Type) string {
	switch t {
	case types.Boolean:
		return "boolean"
	case types.TinyInt, types.SmallInt, types.Int:
		return "int"
	case types.BigInt:
		return "long"
	case types.Real:
		return "float"
	case types.Double:
		return "double"
	default:
		return "string"
	}
}

// Init implements UpsertTarget.
func (t *AvroTarget) Init() { t.record = map[string]any{} }

// CreateInjector implements UpsertTarget.
func (t *AvroTarget) CreateInjector(path string, typ types.Type) Injector {
	return func(value any) error {
		v, err := coerce(path, typ, value)
		if err != nil {
			return err
		}
		t.record[path] = avroValue(typ, v)
		return nil
	}
}

// Conclude implements UpsertTarget.
func (t *AvroTarget) Conclude() (any, error) { return t.record, nil }

func avroValue(typ types.Type, v any) any {
	if v == nil {
		return nil
	}
	switch AvroPrimitive(typ) {
	case "int":
		switch x := v.(type) {
		case int8:
			return int32(x)
		case int16:
			return int32(x)
		}
		return v
	case "boolean", "long", "float", "double":
		return v
	default:
		return types.ToText(v)
	}
}
