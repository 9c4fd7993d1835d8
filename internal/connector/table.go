package connector

import (
	"fmt"

	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

// TableField is one fully resolved column of a table. Path is where the
// value lives in the native record; IsKey marks the key half of a map entry.
type TableField struct {
	Name  string
	Type  types.Type
	Path  string
	IsKey bool
}

// TargetDescriptor carries what a connector needs to build scan and sink
// fragments for one resolved schema. It is derived from (fields, options)
// and never persisted.
type TargetDescriptor interface {
	ConnectorType() string
}

// ResolvedMetadata is the transient outcome of schema resolution.
type ResolvedMetadata struct {
	Target TargetDescriptor
	Fields []TableField
}

// Statistics are the planner-facing cost hints of a table.
type Statistics struct {
	RowCount int64
}

// UnknownRowCount is reported when a connector cannot estimate its size.
const UnknownRowCount int64 = -1

// Table is the planner-facing view of one external table. It is rebuilt
// from the stored definition on every access and never mutated.
type Table struct {
	connector  Connector
	SchemaName string
	Name       string
	Fields     []TableField
	Statistics Statistics
	Target     TargetDescriptor
}

// NewTable creates a table owned by c.
func NewTable(c Connector, schemaName, name string, meta ResolvedMetadata, stats Statistics) *Table {
	return &Table{
		connector:  c,
		SchemaName: schemaName,
		Name:       name,
		Fields:     meta.Fields,
		Statistics: stats,
		Target:     meta.Target,
	}
}

// Connector returns the connector that builds the table's fragments.
func (t *Table) Connector() Connector { return t.connector }

// QualifiedName returns schema.name.
func (t *Table) QualifiedName() string { return t.SchemaName + "." + t.Name }

// Field returns the field called name.
func (t *Table) Field(name string) (TableField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TableField{}, false
}

// FieldNames lists the column names in declaration order.
func (t *Table) FieldNames() []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Name
	}
	return out
}

// ExternalFields converts the table's fields back to their declared form.
func (t *Table) ExternalFields() []domain.ExternalField {
	out := make([]domain.ExternalField, len(t.Fields))
	for i, f := range t.Fields {
		ext := domain.ExternalField{Name: f.Name, Type: f.Type}
		if f.Path != f.Name {
			ext.ExternalName = f.Path
		}
		out[i] = ext
	}
	return out
}

// ToTableFields maps declared fields 1:1 onto table fields. isKey, when
// non-nil, decides which fields belong to the key half.
func ToTableFields(fields []domain.ExternalField, isKey func(domain.ExternalField) bool) []TableField {
	out := make([]TableField, len(fields))
	for i, f := range fields {
		out[i] = TableField{Name: f.Name, Type: f.Type, Path: f.Path()}
		if isKey != nil {
			out[i].IsKey = isKey(f)
		}
	}
	return out
}

// TargetOf returns table's descriptor as T, failing when the table was
// built by another connector kind.
func TargetOf[T TargetDescriptor](table *Table) (T, error) {
	target, ok := table.Target.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("table %q: unexpected target descriptor %T", table.Name, table.Target)
	}
	return target, nil
}
