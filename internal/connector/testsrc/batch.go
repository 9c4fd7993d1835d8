// Package testsrc provides synthetic connectors with fixed schemas: a
// bounded integer sequence (TestBatch) and a paced unbounded one
// (TestStream).
package testsrc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
	"duck-connect/internal/types"
)

// TestBatch options and defaults.
const (
	BatchTypeName    = "TestBatch"
	OptionItemCount  = "itemCount"
	DefaultItemCount = 10_000
)

var errFixedFields = domain.ErrSchema("Don't specify external fields, they are fixed")

// BatchTarget carries the sequence length of a TestBatch table.
type BatchTarget struct {
	ItemCount int
}

// ConnectorType implements connector.TargetDescriptor.
func (BatchTarget) ConnectorType() string { return BatchTypeName }

// Batch emits the rows 0..itemCount-1 in a single column v INT.
type Batch struct {
	logger *slog.Logger
}

var _ connector.Connector = (*Batch)(nil)

// NewBatch creates the TestBatch connector.
func NewBatch(logger *slog.Logger) *Batch {
	return &Batch{logger: logger.With("component", "testbatch-connector")}
}

func batchFields() []domain.ExternalField {
	return []domain.ExternalField{{Name: "v", Type: types.Int}}
}

// TypeName implements connector.Connector.
func (c *Batch) TypeName() string { return BatchTypeName }

// IsStream implements connector.Connector.
func (c *Batch) IsStream() bool { return false }

// ResolveAndValidateFields implements connector.Connector.
func (c *Batch) ResolveAndValidateFields(_ context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error) {
	if len(userFields) > 0 {
		return nil, errFixedFields
	}
	if _, err := parseCount(options, OptionItemCount, DefaultItemCount); err != nil {
		return nil, err
	}
	return batchFields(), nil
}

// CreateTable implements connector.Connector. The row count statistic is
// the item count.
func (c *Batch) CreateTable(schemaName, name string, options map[string]string, _ []domain.ExternalField) (*connector.Table, error) {
	n, err := parseCount(options, OptionItemCount, DefaultItemCount)
	if err != nil {
		return nil, err
	}
	meta := connector.ResolvedMetadata{
		Target: BatchTarget{ItemCount: n},
		Fields: connector.ToTableFields(batchFields(), nil),
	}
	return connector.NewTable(c, schemaName, name, meta, connector.Statistics{RowCount: int64(n)}), nil
}

// SupportsFullScanReader implements connector.Connector.
func (c *Batch) SupportsFullScanReader() bool { return true }

// FullScanReader implements connector.Connector. Items are generated one
// at a time and the predicate and projection are applied to each; instance
// i of n emits the items whose value modulo n is i.
func (c *Batch) FullScanReader(dag *dataflow.DAG, table *connector.Table, _ string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error) {
	target, err := connector.TargetOf[BatchTarget](table)
	if err != nil {
		return nil, err
	}
	if err := connector.ValidateProjection(table, predicate, projection); err != nil {
		return nil, fmt.Errorf("table %q: %w", table.Name, err)
	}
	count := target.ItemCount
	name := table.Name
	c.logger.Debug("building batch source", "table", table.QualifiedName(), "items", count)

	return dag.NewVertex(fmt.Sprintf("TestBatch[%s]", table.QualifiedName()), func(pctx dataflow.Context) (dataflow.Processor, error) {
		return dataflow.ProcessorFunc(func(ctx context.Context, _ <-chan dataflow.Row, emit func(dataflow.Row) error) error {
			env := map[string]any{}
			for i := pctx.Index; i < count; i += pctx.Count {
				if err := ctx.Err(); err != nil {
					return err
				}
				env["v"] = int32(i)
				row, ok, err := expression.Evaluate(predicate, projection, env)
				if err != nil {
					return fmt.Errorf("table %q: row %d: %w", name, i, err)
				}
				if !ok {
					continue
				}
				if err := emit(row); err != nil {
					return err
				}
			}
			return nil
		}), nil
	}), nil
}

// SupportsSink implements connector.Connector.
func (c *Batch) SupportsSink() bool { return false }

// Sink implements connector.Connector.
func (c *Batch) Sink(*dataflow.DAG, *connector.Table) (*dataflow.Vertex, error) {
	return nil, connector.NotSupported(c, "sink")
}

// parseCount reads an integer option in [0, math.MaxInt32].
func parseCount(options map[string]string, key string, def int) (int, error) {
	for k := range options {
		if k != key {
			return 0, domain.ErrSchema("unknown option %q", k)
		}
	}
	raw, ok := options[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrSchema("option %s: %q is not a non-negative integer", key, raw)
	}
	if n > math.MaxInt32 {
		return 0, domain.ErrSchema("option %s: %d exceeds the maximum of %d", key, n, math.MaxInt32)
	}
	return n, nil
}
