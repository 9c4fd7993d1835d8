package extract

import (
	"fmt"

	"duck-connect/internal/types"
)

// RowTarget extracts from positional records ([]any) using a path to index
// mapping.
type RowTarget struct {
	index map[string]int
	row   []any
	err   error
}

var _ QueryTarget = (*RowTarget)(nil)

// NewRowTarget maps each path to its position in the record.
func NewRowTarget(paths []string) *RowTarget {
	index := make(map[string]int, len(paths))
	for i, p := range paths {
		index[p] = i
	}
	return &RowTarget{index: index}
}

// SetTarget implements QueryTarget.
func (t *RowTarget) SetTarget(record any) {
	t.row, t.err = nil, nil
	row, ok := record.([]any)
	if !ok {
		t.err = fmt.Errorf("unsupported row record type %T", record)
		return
	}
	t.row = row
}

// CreateExtractor implements QueryTarget.
func (t *RowTarget) CreateExtractor(path string, typ types.Type) Extractor {
	i, known := t.index[path]
	return func() (any, error) {
		if t.err != nil {
			return nil, fmt.Errorf("failed to extract field %q: %w", path, t.err)
		}
		if !known || i >= len(t.row) {
			return nil, nil
		}
		return convert(path, typ, t.row[i])
	}
}

// CSVTarget extracts from delimited records. An empty cell is NULL unless
// the column is VARCHAR.
type CSVTarget struct {
	index  map[string]int
	record []string
	err    error
}

var _ QueryTarget = (*CSVTarget)(nil)

// NewCSVTarget maps each path to its column position.
func NewCSVTarget(index map[string]int) *CSVTarget {
	return &CSVTarget{index: index}
}

// SetTarget implements QueryTarget.
func (t *CSVTarget) SetTarget(record any) {
	t.record, t.err = nil, nil
	rec, ok := record.([]string)
	if !ok {
		t.err = fmt.Errorf("unsupported delimited record type %T", record)
		return
	}
	t.record = rec
}

// CreateExtractor implements QueryTarget.
func (t *CSVTarget) CreateExtractor(path string, typ types.Type) Extractor {
	i, known := t.index[path]
	return func() (any, error) {
		if t.err != nil {
			return nil, fmt.Errorf("failed to extract field %q: %w", path, t.err)
		}
		if !known || i >= len(t.record) {
			return nil, nil
		}
		cell := t.record[i]
		if cell == "" && typ != types.Varchar {
			return nil, nil
		}
		return convert(path, typ, cell)
	}
}
