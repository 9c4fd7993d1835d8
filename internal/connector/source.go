package connector

import (
	"context"

	"duck-connect/internal/dataflow"
	"duck-connect/internal/expression"
	"duck-connect/internal/extract"
	"duck-connect/internal/types"
)

// ReadFunc streams the native records of one processor instance's share of
// the source to fn.
type ReadFunc func(ctx context.Context, pctx dataflow.Context, fn func(record any) error) error

// ScanSupplier returns a source supplier that reads records with read and
// emits the projection of every record passing predicate. Each instance
// owns its own query target and projector.
func ScanSupplier(newTarget func() extract.QueryTarget, fields []TableField, predicate *expression.Expression, projection []*expression.Expression, read ReadFunc) dataflow.Supplier {
	return func(pctx dataflow.Context) (dataflow.Processor, error) {
		projector, err := NewRowProjector(newTarget(), fields, predicate, projection)
		if err != nil {
			return nil, err
		}
		return dataflow.ProcessorFunc(func(ctx context.Context, _ <-chan dataflow.Row, emit func(dataflow.Row) error) error {
			return read(ctx, pctx, func(record any) error {
				row, ok, err := projector.Project(record)
				if err != nil || !ok {
					return err
				}
				return emit(row)
			})
		}), nil
	}
}

// ValidateProjection checks that every column referenced by predicate and
// projection exists in table, so fragment construction fails before the
// job is submitted.
func ValidateProjection(table *Table, predicate *expression.Expression, projection []*expression.Expression) error {
	_, err := NewRowProjector(nopTarget{}, table.Fields, predicate, projection)
	return err
}

type nopTarget struct{}

func (nopTarget) SetTarget(any) {}

func (nopTarget) CreateExtractor(string, types.Type) extract.Extractor {
	return func() (any, error) { return nil, nil }
}
