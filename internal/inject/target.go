// Package inject assembles format-native records from typed row values. It
// is the write-side mirror of package extract.
package inject

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"duck-connect/internal/types"
)

// Injector stores one value of the record under construction.
type Injector func(value any) error

// UpsertTarget builds one native record per Init/Conclude cycle. It is not
// safe for concurrent use.
type UpsertTarget interface {
	Init()
	CreateInjector(path string, typ types.Type) Injector
	Conclude() (any, error)
}

// coerce converts v to the declared type before it is injected.
func coerce(path string, typ types.Type, v any) (any, error) {
	out, err := types.Convert(typ, v)
	if err != nil {
		return nil, fmt.Errorf("failed to inject field %q: %w", path, err)
	}
	return out, nil
}

// jsonValue maps canonical values onto JSON-encodable values: numbers stay
// numbers, temporal values become ISO text.
func jsonValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return json.Number(x.String())
	case civil.Date, civil.Time, civil.DateTime:
		return types.ToText(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// setPath stores v under a dotted path, creating intermediate objects.
func setPath(obj map[string]any, path string, v any) error {
	segs := strings.Split(path, ".")
	cur := obj
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok || next == nil {
			m := map[string]any{}
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("path %q crosses non-object attribute %q", path, seg)
		}
		cur = m
	}
	cur[segs[len(segs)-1]] = v
	return nil
}
