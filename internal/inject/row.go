package inject

import (
	"encoding/json"
	"fmt"

	"duck-connect/internal/extract"
	"duck-connect/internal/types"
)

// CSVTarget builds one delimited record. NULL is written as an empty cell.
type CSVTarget struct {
	index  map[string]int
	record []string
}

var _ UpsertTarget = (*CSVTarget)(nil)

// NewCSVTarget maps each path to its column position.
func NewCSVTarget(paths []string) *CSVTarget {
	index := make(map[string]int, len(paths))
	for i, p := range paths {
		index[p] = i
	}
	return &CSVTarget{index: index}
}

// Init implements UpsertTarget.
func (t *CSVTarget) Init() { t.record = make([]string, len(t.index)) }

// CreateInjector implements UpsertTarget.
func (t *CSVTarget) CreateInjector(path string, typ types.Type) Injector {
	i, known := t.index[path]
	return func(value any) error {
		if !known {
			return fmt.Errorf("failed to inject field %q: unknown column", path)
		}
		v, err := coerce(path, typ, value)
		if err != nil {
			return err
		}
		t.record[i] = types.ToText(v)
		return nil
	}
}

// Conclude implements UpsertTarget.
func (t *CSVTarget) Conclude() (any, error) {
	out := make([]string, len(t.record))
	copy(out, t.record)
	return out, nil
}

// EntryTarget builds an extract.Entry. A half addressed as a whole
// ("__key" or "this") is stored as the coerced value; a half addressed by
// attributes is stored as JSON object text, which keeps keys comparable.
type EntryTarget struct {
	halves [2]any
	objs   [2]map[string]any
}

var _ UpsertTarget = (*EntryTarget)(nil)

// NewEntryTarget returns an empty target.
func NewEntryTarget() *EntryTarget { return &EntryTarget{} }

// Init implements UpsertTarget.
func (t *EntryTarget) Init() {
	t.halves = [2]any{}
	t.objs = [2]map[string]any{}
}

// CreateInjector implements UpsertTarget.
func (t *EntryTarget) CreateInjector(path string, typ types.Type) Injector {
	isKey, rest := extract.SplitEntryPath(path)
	i := 1
	if isKey {
		i = 0
	}
	return func(value any) error {
		v, err := coerce(path, typ, value)
		if err != nil {
			return err
		}
		if rest == "" {
			t.halves[i] = v
			return nil
		}
		if t.objs[i] == nil {
			t.objs[i] = map[string]any{}
		}
		return setPath(t.objs[i], rest, jsonValue(v))
	}
}

// Conclude implements UpsertTarget.
func (t *EntryTarget) Conclude() (any, error) {
	var e [2]any
	for i := range e {
		if t.objs[i] == nil {
			e[i] = t.halves[i]
			continue
		}
		if t.halves[i] != nil {
			return nil, fmt.Errorf("entry %s is addressed both as a whole and by attribute", halfName(i))
		}
		data, err := json.Marshal(t.objs[i])
		if err != nil {
			return nil, fmt.Errorf("encode entry %s: %w", halfName(i), err)
		}
		e[i] = string(data)
	}
	if e[0] == nil {
		return nil, fmt.Errorf("entry key must not be NULL")
	}
	return extract.Entry{Key: e[0], Value: e[1]}, nil
}

func halfName(i int) string {
	if i == 0 {
		return "key"
	}
	return "value"
}

// RowTarget builds a positional record ([]any) of coerced values.
type RowTarget struct {
	index  map[string]int
	record []any
}

var _ UpsertTarget = (*RowTarget)(nil)

// NewRowTarget maps each path to its position in the record.
func NewRowTarget(paths []string) *RowTarget {
	index := make(map[string]int, len(paths))
	for i, p := range paths {
		index[p] = i
	}
	return &RowTarget{index: index}
}

// Init implements UpsertTarget.
func (t *RowTarget) Init() { t.record = make([]any, len(t.index)) }

// CreateInjector implements UpsertTarget.
func (t *RowTarget) CreateInjector(path string, typ types.Type) Injector {
	i, known := t.index[path]
	return func(value any) error {
		if !known {
			return fmt.Errorf("failed to inject field %q: unknown column", path)
		}
		v, err := coerce(path, typ, value)
		if err != nil {
			return err
		}
		t.record[i] = v
		return nil
	}
}

// Conclude implements UpsertTarget.
func (t *RowTarget) Conclude() (any, error) { return t.record, nil }
