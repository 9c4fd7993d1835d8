package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"duck-connect/internal/types"
)

// Paths addressing the halves of a key/value entry.
const (
	KeyPath   = "__key"
	ValuePath = ThisPath
)

// Entry is one key/value pair of a replicated map.
type Entry struct {
	Key   any
	Value any
}

// SplitEntryPath returns whether path addresses the key half and the path
// inside that half ("" for the whole half). Bare paths address value
// attributes.
func SplitEntryPath(path string) (isKey bool, rest string) {
	switch {
	case path == KeyPath:
		return true, ""
	case strings.HasPrefix(path, KeyPath+"."):
		return true, strings.TrimPrefix(path, KeyPath+".")
	case path == ValuePath:
		return false, ""
	case strings.HasPrefix(path, ValuePath+"."):
		return false, strings.TrimPrefix(path, ValuePath+".")
	default:
		return false, path
	}
}

// EntryTarget extracts from Entry records. JSON halves may be raw bytes,
// strings holding an object, or decoded maps. Each half is decoded at most
// once per record.
type EntryTarget struct {
	entry   Entry
	set     bool
	halves  [2]map[string]any
	decoded [2]bool
	errs    [2]error
}

var _ QueryTarget = (*EntryTarget)(nil)

// NewEntryTarget returns an empty target.
func NewEntryTarget() *EntryTarget { return &EntryTarget{} }

// SetTarget implements QueryTarget.
func (t *EntryTarget) SetTarget(record any) {
	*t = EntryTarget{}
	switch r := record.(type) {
	case Entry:
		t.entry, t.set = r, true
	case *Entry:
		if r != nil {
			t.entry, t.set = *r, true
		}
	}
}

func (t *EntryTarget) half(isKey bool) any {
	if isKey {
		return t.entry.Key
	}
	return t.entry.Value
}

func (t *EntryTarget) object(isKey bool) (map[string]any, error) {
	i := 1
	if isKey {
		i = 0
	}
	if t.decoded[i] {
		return t.halves[i], t.errs[i]
	}
	t.decoded[i] = true
	switch v := t.half(isKey).(type) {
	case nil:
		t.halves[i] = nil
	case map[string]any:
		t.halves[i] = v
	case []byte:
		t.halves[i], t.errs[i] = DecodeJSONObject(v)
	case json.RawMessage:
		t.halves[i], t.errs[i] = DecodeJSONObject(v)
	case string:
		t.halves[i], t.errs[i] = DecodeJSONObject([]byte(v))
	default:
		t.errs[i] = fmt.Errorf("%T is not an object", v)
	}
	return t.halves[i], t.errs[i]
}

// CreateExtractor implements QueryTarget.
func (t *EntryTarget) CreateExtractor(path string, typ types.Type) Extractor {
	isKey, rest := SplitEntryPath(path)
	return func() (any, error) {
		if !t.set {
			return nil, fmt.Errorf("failed to extract field %q: no entry set", path)
		}
		if rest == "" {
			return convertEntry(isKey, path, typ, t.half(isKey))
		}
		obj, err := t.object(isKey)
		if err != nil {
			return nil, fmt.Errorf("failed to extract map entry %s field %q: %w", halfName(isKey), path, err)
		}
		if obj == nil {
			return nil, nil
		}
		return convertEntry(isKey, path, typ, lookup(obj, rest))
	}
}

func convertEntry(isKey bool, path string, typ types.Type, v any) (any, error) {
	out, err := types.Convert(typ, v)
	if err == nil {
		return out, nil
	}
	var mm *types.MismatchError
	if errors.As(err, &mm) {
		return nil, fmt.Errorf("failed to extract map entry %s field %q because of type mismatch [expected=%s, actual=%s]: %w",
			halfName(isKey), path, mm.Expected, mm.Actual, err)
	}
	return nil, fmt.Errorf("failed to extract map entry %s field %q: %w", halfName(isKey), path, err)
}

func halfName(isKey bool) string {
	if isKey {
		return "key"
	}
	return "value"
}
