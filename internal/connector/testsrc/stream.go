package testsrc

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
	"duck-connect/internal/types"
)

// TestStream options and defaults.
const (
	StreamTypeName        = "TestStream"
	OptionItemsPerSecond  = "itemsPerSecond"
	DefaultItemsPerSecond = 100
)

// StreamTarget carries the emission rate of a TestStream table.
type StreamTarget struct {
	ItemsPerSecond int
}

// ConnectorType implements connector.TargetDescriptor.
func (StreamTarget) ConnectorType() string { return StreamTypeName }

// Stream emits an unbounded sequence 0, 1, 2, ... in a column v BIGINT.
type Stream struct {
	logger *slog.Logger
}

var _ connector.Connector = (*Stream)(nil)

// NewStream creates the TestStream connector.
func NewStream(logger *slog.Logger) *Stream {
	return &Stream{logger: logger.With("component", "teststream-connector")}
}

func streamFields() []domain.ExternalField {
	return []domain.ExternalField{{Name: "v", Type: types.BigInt}}
}

// TypeName implements connector.Connector.
func (c *Stream) TypeName() string { return StreamTypeName }

// IsStream implements connector.Connector.
func (c *Stream) IsStream() bool { return true }

// ResolveAndValidateFields implements connector.Connector.
func (c *Stream) ResolveAndValidateFields(_ context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error) {
	if len(userFields) > 0 {
		return nil, errFixedFields
	}
	if _, err := parseRate(options); err != nil {
		return nil, err
	}
	return streamFields(), nil
}

func parseRate(options map[string]string) (int, error) {
	n, err := parseCount(options, OptionItemsPerSecond, DefaultItemsPerSecond)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrSchema("option %s must be positive", OptionItemsPerSecond)
	}
	return n, nil
}

// CreateTable implements connector.Connector.
func (c *Stream) CreateTable(schemaName, name string, options map[string]string, _ []domain.ExternalField) (*connector.Table, error) {
	n, err := parseRate(options)
	if err != nil {
		return nil, err
	}
	meta := connector.ResolvedMetadata{
		Target: StreamTarget{ItemsPerSecond: n},
		Fields: connector.ToTableFields(streamFields(), nil),
	}
	return connector.NewTable(c, schemaName, name, meta, connector.Statistics{RowCount: 0}), nil
}

// SupportsFullScanReader implements connector.Connector.
func (c *Stream) SupportsFullScanReader() bool { return true }

// FullScanReader implements connector.Connector. A single "src" instance
// generates the sequence at the configured rate and "src-map" applies the
// predicate and projection. The returned vertex is "src-map".
// Vertex names carry the table name so two streams can share a DAG.
func (c *Stream) FullScanReader(dag *dataflow.DAG, table *connector.Table, _ string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error) {
	target, err := connector.TargetOf[StreamTarget](table)
	if err != nil {
		return nil, err
	}
	if err := connector.ValidateProjection(table, predicate, projection); err != nil {
		return nil, fmt.Errorf("table %q: %w", table.Name, err)
	}
	perSecond := target.ItemsPerSecond

	src := dag.NewVertex(fmt.Sprintf("src(%s)", table.QualifiedName()), func(dataflow.Context) (dataflow.Processor, error) {
		return dataflow.ProcessorFunc(func(ctx context.Context, _ <-chan dataflow.Row, emit func(dataflow.Row) error) error {
			limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
			for seq := int64(0); ; seq++ {
				if err := limiter.Wait(ctx); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return err
				}
				if err := emit(dataflow.Row{seq}); err != nil {
					return err
				}
			}
		}), nil
	}).LocalParallelism(1)

	srcMap := dag.NewVertex(fmt.Sprintf("src-map(%s)", table.QualifiedName()), dataflow.Map(func(dataflow.Context) (func(dataflow.Row) (dataflow.Row, error), error) {
		env := map[string]any{}
		return func(row dataflow.Row) (dataflow.Row, error) {
			env["v"] = row[0]
			out, ok, err := expression.Evaluate(predicate, projection, env)
			if err != nil || !ok {
				return nil, err
			}
			return out, nil
		}, nil
	}))
	dag.Edge(src, srcMap)
	return srcMap, nil
}

// SupportsSink implements connector.Connector.
func (c *Stream) SupportsSink() bool { return false }

// Sink implements connector.Connector.
func (c *Stream) Sink(*dataflow.DAG, *connector.Table) (*dataflow.Vertex, error) {
	return nil, connector.NotSupported(c, "sink")
}
