// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
)

// === Table Definition Store Mock ===

// MockTableDefinitionStore implements domain.TableDefinitionStore for testing.
type MockTableDefinitionStore struct {
	GetFn         func(ctx context.Context, name string) (*domain.ExternalTableDefinition, error)
	PutIfAbsentFn func(ctx context.Context, def domain.ExternalTableDefinition) (*domain.ExternalTableDefinition, error)
	PutFn         func(ctx context.Context, def domain.ExternalTableDefinition) error
	RemoveFn      func(ctx context.Context, name string) (*domain.ExternalTableDefinition, error)
	ValuesFn      func(ctx context.Context) ([]domain.ExternalTableDefinition, error)
	ClearFn       func(ctx context.Context) error

	mu     sync.Mutex
	Writes []string // names passed to PutIfAbsent and Put, for assertions
}

var _ domain.TableDefinitionStore = (*MockTableDefinitionStore)(nil)

// Get implements the interface method for testing.
func (m *MockTableDefinitionStore) Get(ctx context.Context, name string) (*domain.ExternalTableDefinition, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, name)
	}
	panic("unexpected call to MockTableDefinitionStore.Get")
}

// PutIfAbsent implements the interface method for testing.
func (m *MockTableDefinitionStore) PutIfAbsent(ctx context.Context, def domain.ExternalTableDefinition) (*domain.ExternalTableDefinition, error) {
	m.record(def.Name)
	if m.PutIfAbsentFn != nil {
		return m.PutIfAbsentFn(ctx, def)
	}
	panic("unexpected call to MockTableDefinitionStore.PutIfAbsent")
}

// Put implements the interface method for testing.
func (m *MockTableDefinitionStore) Put(ctx context.Context, def domain.ExternalTableDefinition) error {
	m.record(def.Name)
	if m.PutFn != nil {
		return m.PutFn(ctx, def)
	}
	panic("unexpected call to MockTableDefinitionStore.Put")
}

// Remove implements the interface method for testing.
func (m *MockTableDefinitionStore) Remove(ctx context.Context, name string) (*domain.ExternalTableDefinition, error) {
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, name)
	}
	panic("unexpected call to MockTableDefinitionStore.Remove")
}

// Values implements the interface method for testing.
func (m *MockTableDefinitionStore) Values(ctx context.Context) ([]domain.ExternalTableDefinition, error) {
	if m.ValuesFn != nil {
		return m.ValuesFn(ctx)
	}
	panic("unexpected call to MockTableDefinitionStore.Values")
}

// Clear implements the interface method for testing.
func (m *MockTableDefinitionStore) Clear(ctx context.Context) error {
	if m.ClearFn != nil {
		return m.ClearFn(ctx)
	}
	panic("unexpected call to MockTableDefinitionStore.Clear")
}

func (m *MockTableDefinitionStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, name)
}

// WriteCount returns how many store writes were attempted.
func (m *MockTableDefinitionStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

// === Connector Mock ===

// MockConnector implements connector.Connector for testing. Zero-valued
// function fields fall back to a batch connector that accepts any fields
// and supports neither scans nor sinks.
type MockConnector struct {
	Name string

	ResolveFn        func(ctx context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error)
	CreateTableFn    func(schemaName, name string, options map[string]string, fields []domain.ExternalField) (*connector.Table, error)
	FullScanReaderFn func(dag *dataflow.DAG, table *connector.Table, timestampField string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error)
	SinkFn           func(dag *dataflow.DAG, table *connector.Table) (*dataflow.Vertex, error)
	Stream           bool
}

var _ connector.Connector = (*MockConnector)(nil)

// MockTarget is the target descriptor of tables built by MockConnector.
type MockTarget struct {
	Options map[string]string
}

// ConnectorType implements connector.TargetDescriptor.
func (MockTarget) ConnectorType() string { return "Mock" }

// TypeName implements the interface method for testing.
func (m *MockConnector) TypeName() string {
	if m.Name == "" {
		return "Mock"
	}
	return m.Name
}

// IsStream implements the interface method for testing.
func (m *MockConnector) IsStream() bool { return m.Stream }

// ResolveAndValidateFields implements the interface method for testing.
func (m *MockConnector) ResolveAndValidateFields(ctx context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, options, userFields)
	}
	return userFields, nil
}

// CreateTable implements the interface method for testing.
func (m *MockConnector) CreateTable(schemaName, name string, options map[string]string, fields []domain.ExternalField) (*connector.Table, error) {
	if m.CreateTableFn != nil {
		return m.CreateTableFn(schemaName, name, options, fields)
	}
	meta := connector.ResolvedMetadata{
		Target: MockTarget{Options: options},
		Fields: connector.ToTableFields(fields, nil),
	}
	return connector.NewTable(m, schemaName, name, meta, connector.Statistics{RowCount: connector.UnknownRowCount}), nil
}

// SupportsFullScanReader implements the interface method for testing.
func (m *MockConnector) SupportsFullScanReader() bool { return m.FullScanReaderFn != nil }

// FullScanReader implements the interface method for testing.
func (m *MockConnector) FullScanReader(dag *dataflow.DAG, table *connector.Table, timestampField string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error) {
	if m.FullScanReaderFn != nil {
		return m.FullScanReaderFn(dag, table, timestampField, predicate, projection)
	}
	return nil, connector.NotSupported(m, "full scan")
}

// SupportsSink implements the interface method for testing.
func (m *MockConnector) SupportsSink() bool { return m.SinkFn != nil }

// Sink implements the interface method for testing.
func (m *MockConnector) Sink(dag *dataflow.DAG, table *connector.Table) (*dataflow.Vertex, error) {
	if m.SinkFn != nil {
		return m.SinkFn(dag, table)
	}
	return nil, connector.NotSupported(m, "sink")
}
