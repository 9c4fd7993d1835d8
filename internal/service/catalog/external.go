// Package catalog implements the external table catalog: validation and
// create/replace/drop semantics over a replicated definition store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
)

// ExternalCatalog mediates every change to the stored table definitions.
// It keeps no cache: each lookup rebuilds tables from the store.
type ExternalCatalog struct {
	store      domain.TableDefinitionStore
	connectors *connector.Registry
	schemaName string
	logger     *slog.Logger
}

// Option configures an ExternalCatalog.
type Option func(*ExternalCatalog)

// WithSchemaName sets the schema tables are created in.
func WithSchemaName(name string) Option {
	return func(c *ExternalCatalog) {
		if name != "" {
			c.schemaName = name
		}
	}
}

// NewExternalCatalog creates a catalog over store using the connectors in
// registry.
func NewExternalCatalog(store domain.TableDefinitionStore, registry *connector.Registry, logger *slog.Logger, opts ...Option) *ExternalCatalog {
	c := &ExternalCatalog{
		store:      store,
		connectors: registry,
		schemaName: domain.DefaultSchemaName,
		logger:     logger.With("component", "external-catalog"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SchemaName returns the schema tables live in.
func (c *ExternalCatalog) SchemaName() string { return c.schemaName }

// Connectors returns the connector registry.
func (c *ExternalCatalog) Connectors() *connector.Registry { return c.connectors }

// CreateTable validates def, resolving its fields when none are declared,
// and stores it. It reports whether the definition was written:
//   - ifNotExists and the name is taken: nothing changes, false
//   - replace: the definition is overwritten, true
//   - the name is taken: DuplicateTableError
//   - otherwise the definition is inserted, true
//
// No store write happens when validation fails.
func (c *ExternalCatalog) CreateTable(ctx context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error) {
	if err := def.Validate(); err != nil {
		return false, err
	}
	resolved, err := c.resolve(ctx, def)
	if err != nil {
		return false, &domain.InvalidTableError{Name: def.Name, Err: err}
	}

	switch {
	case ifNotExists:
		prev, err := c.store.PutIfAbsent(ctx, resolved)
		if err != nil {
			return false, fmt.Errorf("store table %q: %w", def.Name, err)
		}
		if prev != nil {
			c.logger.Debug("table exists, skipping", "table", def.Name)
			return false, nil
		}
	case replace:
		if err := c.store.Put(ctx, resolved); err != nil {
			return false, fmt.Errorf("store table %q: %w", def.Name, err)
		}
	default:
		prev, err := c.store.PutIfAbsent(ctx, resolved)
		if err != nil {
			return false, fmt.Errorf("store table %q: %w", def.Name, err)
		}
		if prev != nil {
			return false, &domain.DuplicateTableError{Name: def.Name}
		}
	}
	c.logger.Info("table stored", "table", def.Name, "type", resolved.ConnectorType, "fields", len(resolved.Fields), "replace", replace)
	return true, nil
}

// resolve returns def with its connector's canonical type name and its
// resolved fields, after checking a table can be built from it.
func (c *ExternalCatalog) resolve(ctx context.Context, def domain.ExternalTableDefinition) (domain.ExternalTableDefinition, error) {
	conn, err := c.connectors.ForType(def.ConnectorType)
	if err != nil {
		return def, err
	}
	fields, err := conn.ResolveAndValidateFields(ctx, def.Options, def.Fields)
	if err != nil {
		return def, err
	}
	def = def.WithFields(fields)
	def.ConnectorType = conn.TypeName()
	if _, err := c.ToTable(def); err != nil {
		return def, err
	}
	return def, nil
}

// RemoveTable deletes the named definition. A missing table is an error
// unless ifExists is set.
func (c *ExternalCatalog) RemoveTable(ctx context.Context, name string, ifExists bool) error {
	prev, err := c.store.Remove(ctx, name)
	if err != nil {
		return fmt.Errorf("remove table %q: %w", name, err)
	}
	if prev == nil {
		if ifExists {
			return nil
		}
		return &domain.TableNotFoundError{Name: name}
	}
	c.logger.Info("table removed", "table", name)
	return nil
}

// GetTables builds a table for every stored definition. Definitions that
// can no longer be built are skipped with a warning.
func (c *ExternalCatalog) GetTables(ctx context.Context) ([]*connector.Table, error) {
	defs, err := c.store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables := make([]*connector.Table, 0, len(defs))
	for _, def := range defs {
		t, err := c.ToTable(def)
		if err != nil {
			c.logger.Warn("skipping unresolvable table", "table", def.Name, "type", def.ConnectorType, "error", err)
			continue
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// GetDefinition returns the stored definition of name.
func (c *ExternalCatalog) GetDefinition(ctx context.Context, name string) (*domain.ExternalTableDefinition, error) {
	def, err := c.store.Get(ctx, name)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, &domain.TableNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("get table %q: %w", name, err)
	}
	return def, nil
}

// GetTable builds the table stored under name.
func (c *ExternalCatalog) GetTable(ctx context.Context, name string) (*connector.Table, error) {
	def, err := c.GetDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := c.ToTable(*def)
	if err != nil {
		return nil, &domain.InvalidTableError{Name: name, Err: err}
	}
	return t, nil
}

// ListDefinitions returns every stored definition.
func (c *ExternalCatalog) ListDefinitions(ctx context.Context) ([]domain.ExternalTableDefinition, error) {
	defs, err := c.store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return defs, nil
}

// Clear removes every definition.
func (c *ExternalCatalog) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	c.logger.Info("catalog cleared")
	return nil
}

// ToTable builds a table from a resolved definition without touching
// external storage.
func (c *ExternalCatalog) ToTable(def domain.ExternalTableDefinition) (*connector.Table, error) {
	conn, err := c.connectors.ForType(def.ConnectorType)
	if err != nil {
		return nil, err
	}
	return conn.CreateTable(c.schemaName, def.Name, def.Options, def.Fields)
}

// DefaultSearchPaths lists the catalog/schema pairs searched for
// unqualified table names.
func (c *ExternalCatalog) DefaultSearchPaths() [][]string {
	return [][]string{{domain.CatalogName, c.schemaName}}
}
