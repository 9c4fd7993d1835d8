package connector

import (
	"fmt"

	"duck-connect/internal/dataflow"
	"duck-connect/internal/expression"
	"duck-connect/internal/extract"
)

// RowProjector evaluates a predicate and a projection against raw records.
// Only fields the expressions reference are extracted. A projector belongs
// to one worker; build one per processor instance.
type RowProjector struct {
	target     extract.QueryTarget
	names      []string
	extractors []extract.Extractor
	predicate  *expression.Expression
	projection []*expression.Expression
	env        map[string]any
}

// NewRowProjector binds extractors on target for every field referenced by
// predicate or projection. A reference to an unknown column is an error.
func NewRowProjector(target extract.QueryTarget, fields []TableField, predicate *expression.Expression, projection []*expression.Expression) (*RowProjector, error) {
	byName := make(map[string]TableField, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	p := &RowProjector{
		target:     target,
		predicate:  predicate,
		projection: projection,
	}
	for _, ref := range expression.Refs(predicate, projection) {
		f, ok := byName[ref]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", ref)
		}
		p.names = append(p.names, f.Name)
		p.extractors = append(p.extractors, target.CreateExtractor(f.Path, f.Type))
	}
	p.env = make(map[string]any, len(p.names))
	return p, nil
}

// Project returns the projected row and true, or false when the predicate
// filtered the record out. Extraction failures are returned as-is.
func (p *RowProjector) Project(record any) (dataflow.Row, bool, error) {
	p.target.SetTarget(record)
	for i, extractor := range p.extractors {
		v, err := extractor()
		if err != nil {
			return nil, false, err
		}
		p.env[p.names[i]] = v
	}
	row, ok, err := expression.Evaluate(p.predicate, p.projection, p.env)
	if err != nil {
		return nil, false, err
	}
	return row, ok, nil
}
