// Package extract reads typed field values out of format-native records.
package extract

import (
	"fmt"
	"strings"

	"duck-connect/internal/types"
)

// Extractor returns the current record's value of one field, coerced to the
// field's declared type.
type Extractor func() (any, error)

// QueryTarget holds the record being projected. It is not safe for
// concurrent use; each projector owns its own target.
type QueryTarget interface {
	SetTarget(record any)
	CreateExtractor(path string, typ types.Type) Extractor
}

// ThisPath addresses the whole record.
const ThisPath = "this"

func convert(path string, typ types.Type, v any) (any, error) {
	out, err := types.Convert(typ, v)
	if err != nil {
		return nil, fmt.Errorf("failed to extract field %q: %w", path, err)
	}
	return out, nil
}

// lookup walks a dotted path through nested objects. A missing segment
// yields nil.
func lookup(record map[string]any, path string) any {
	if v, ok := record[path]; ok {
		return v
	}
	var cur any = record
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}
