// Package connector defines the pluggable adapter between an external data
// format and the relational table abstraction, together with the registry
// that addresses connectors by their DDL type name.
package connector

import (
	"context"
	"errors"
	"fmt"

	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
)

// ErrNotSupported is wrapped by connectors asked for a capability they do
// not report.
var ErrNotSupported = errors.New("not supported")

// Connector binds schema resolution, table construction and dataflow
// fragment factories for one kind of external system. Implementations are
// stateless and shared by every table of their type.
type Connector interface {
	// TypeName is the identifier used in TYPE '<name>' clauses.
	TypeName() string

	// IsStream reports whether a full scan never terminates.
	IsStream() bool

	// ResolveAndValidateFields returns userFields unchanged when they are
	// compatible with the format, or infers fields from the external data
	// when userFields is empty. Failures are *domain.SchemaError or
	// *domain.ResourceError.
	ResolveAndValidateFields(ctx context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error)

	// CreateTable builds the planner-facing table from already resolved
	// fields without touching external storage.
	CreateTable(schemaName, name string, options map[string]string, fields []domain.ExternalField) (*Table, error)

	SupportsFullScanReader() bool

	// FullScanReader adds a source fragment to dag that emits rows shaped
	// exactly like projection. timestampField may be empty.
	FullScanReader(dag *dataflow.DAG, table *Table, timestampField string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error)

	SupportsSink() bool

	// Sink adds a sink fragment to dag and returns its entry vertex. The
	// fragment accepts rows shaped like the table's full field list.
	Sink(dag *dataflow.DAG, table *Table) (*dataflow.Vertex, error)
}

// NotSupported builds the error returned for a missing capability.
func NotSupported(c Connector, capability string) error {
	return fmt.Errorf("connector %q: %s: %w", c.TypeName(), capability, ErrNotSupported)
}
