package connector

import (
	"fmt"

	"duck-connect/internal/dataflow"
	"duck-connect/internal/inject"
)

// ProjectVertexName names the record-building stage of two-stage sinks.
func ProjectVertexName(table *Table) string {
	return fmt.Sprintf("Project(%s)", table.QualifiedName())
}

// UpsertSupplier returns a transform turning rows shaped like fields into
// native records. Each record travels downstream as a one-column row.
func UpsertSupplier(newTarget func() inject.UpsertTarget, fields []TableField) dataflow.Supplier {
	return dataflow.Map(func(dataflow.Context) (func(dataflow.Row) (dataflow.Row, error), error) {
		target := newTarget()
		injectors := make([]inject.Injector, len(fields))
		for i, f := range fields {
			injectors[i] = target.CreateInjector(f.Path, f.Type)
		}
		return func(row dataflow.Row) (dataflow.Row, error) {
			if len(row) != len(fields) {
				return nil, fmt.Errorf("row has %d values, table has %d columns", len(row), len(fields))
			}
			target.Init()
			for i, injector := range injectors {
				if err := injector(row[i]); err != nil {
					return nil, err
				}
			}
			record, err := target.Conclude()
			if err != nil {
				return nil, err
			}
			return dataflow.Row{record}, nil
		}, nil
	})
}
