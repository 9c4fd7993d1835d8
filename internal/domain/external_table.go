package domain

import (
	"context"

	"duck-connect/internal/types"
)

// Default catalog and schema under which external tables are visible.
const (
	CatalogName       = "duck"
	DefaultSchemaName = "public"
)

// ExternalField declares one user-visible column. ExternalName, when set, is
// the raw path of the value inside the native record (EXTERNAL NAME clause).
type ExternalField struct {
	Name         string     `json:"name" yaml:"name"`
	Type         types.Type `json:"type" yaml:"type"`
	ExternalName string     `json:"external_name,omitempty" yaml:"external_name,omitempty"`
}

// Path returns the native path the field is read from and written to.
func (f ExternalField) Path() string {
	if f.ExternalName != "" {
		return f.ExternalName
	}
	return f.Name
}

// ExternalTableDefinition is the persisted unit of the external catalog.
type ExternalTableDefinition struct {
	Name          string            `json:"name"`
	ConnectorType string            `json:"type"`
	Fields        []ExternalField   `json:"fields"`
	Options       map[string]string `json:"options,omitempty"`
}

// WithFields returns a copy of the definition carrying fields.
func (d ExternalTableDefinition) WithFields(fields []ExternalField) ExternalTableDefinition {
	d.Fields = fields
	return d
}

// Validate checks that the request is well-formed before any connector is
// consulted.
func (d *ExternalTableDefinition) Validate() error {
	if d.Name == "" {
		return ErrValidation("table name is required")
	}
	if d.ConnectorType == "" {
		return ErrValidation("connector type is required for table %q", d.Name)
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return ErrValidation("table %q: column name is required", d.Name)
		}
		if seen[f.Name] {
			return ErrValidation("table %q: column %q specified more than once", d.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Type == "" {
			return ErrValidation("table %q: column %q has no type", d.Name, f.Name)
		}
	}
	return nil
}

// TableDefinitionStore is the durable, cluster-replicated associative store
// backing the external catalog. Implementations must make PutIfAbsent
// atomic: of two concurrent calls for one name, exactly one observes no
// previous value.
type TableDefinitionStore interface {
	// Get returns a NotFoundError when name is absent.
	Get(ctx context.Context, name string) (*ExternalTableDefinition, error)
	// PutIfAbsent stores def unless name is taken and returns the previous
	// definition, or nil when def was stored.
	PutIfAbsent(ctx context.Context, def ExternalTableDefinition) (*ExternalTableDefinition, error)
	Put(ctx context.Context, def ExternalTableDefinition) error
	// Remove returns the removed definition, or nil when name was absent.
	Remove(ctx context.Context, name string) (*ExternalTableDefinition, error)
	Values(ctx context.Context) ([]ExternalTableDefinition, error)
	Clear(ctx context.Context) error
}
