// Package kvmap implements the ReplicatedMap connector: tables over the
// entries of a named key/value map. Columns address the key half with the
// "__key" prefix and the value half with "this" or a bare attribute name.
package kvmap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
	"duck-connect/internal/extract"
	"duck-connect/internal/inject"
	"duck-connect/internal/kvstore"
	"duck-connect/internal/types"
)

// TypeName is the connector's TYPE identifier.
const TypeName = "ReplicatedMap"

// Target is the ReplicatedMap target descriptor.
type Target struct {
	Options *Options
}

// ConnectorType implements connector.TargetDescriptor.
func (Target) ConnectorType() string { return TypeName }

// Connector maps tables onto kvstore maps.
type Connector struct {
	logger      *slog.Logger
	store       *kvstore.Store
	parallelism int
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithParallelism sets the number of reader and writer instances.
func WithParallelism(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// New creates the connector over store.
func New(logger *slog.Logger, store *kvstore.Store, opts ...Option) *Connector {
	c := &Connector{
		logger:      logger.With("component", "kvmap-connector"),
		store:       store,
		parallelism: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TypeName implements connector.Connector.
func (c *Connector) TypeName() string { return TypeName }

// IsStream implements connector.Connector.
func (c *Connector) IsStream() bool { return false }

// ResolveAndValidateFields implements connector.Connector. Without
// declared fields the columns are inferred from the first entry of the
// map, so mapName is then required.
func (c *Connector) ResolveAndValidateFields(_ context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error) {
	opts, err := ParseOptions(options, "")
	if err != nil {
		return nil, err
	}
	if len(userFields) > 0 {
		if err := validateFields(opts, userFields); err != nil {
			return nil, err
		}
		return userFields, nil
	}
	fields, err := c.inferFields(opts)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("inferred fields", "map", opts.MapName, "fields", len(fields))
	return fields, nil
}

func isKeyField(f domain.ExternalField) bool {
	isKey, _ := extract.SplitEntryPath(f.Path())
	return isKey
}

func validateFields(opts *Options, fields []domain.ExternalField) error {
	var whole, attrs [2]bool
	for _, f := range fields {
		isKey, rest := extract.SplitEntryPath(f.Path())
		i, half, format := 1, "value", opts.ValueFormat
		if isKey {
			i, half, format = 0, "key", opts.KeyFormat
		}
		if rest == "" {
			if format.json {
				return domain.ErrSchema("column %q maps the whole %s, but %s format is %s", f.Name, half, half, FormatJSON)
			}
			if isKey {
				if err := checkKeyType(f.Type); err != nil {
					return fmt.Errorf("column %q: %w", f.Name, err)
				}
			}
			whole[i] = true
			continue
		}
		if format.scalar != "" {
			return domain.ErrSchema("column %q maps an attribute of the %s, but %s format is %s", f.Name, half, half, format)
		}
		attrs[i] = true
	}
	for i, half := range []string{"key", "value"} {
		if whole[i] && attrs[i] {
			return domain.ErrSchema("the %s is mapped both as a whole and by attribute", half)
		}
	}
	if !whole[0] && !attrs[0] {
		return domain.ErrSchema("no column maps the key: use %q or %q", extract.KeyPath, extract.KeyPath+".<attribute>")
	}
	return nil
}

func (c *Connector) inferFields(opts *Options) ([]domain.ExternalField, error) {
	if opts.KeyFormat.scalar != "" && opts.ValueFormat.scalar != "" {
		return []domain.ExternalField{
			{Name: extract.KeyPath, Type: opts.KeyFormat.scalar},
			{Name: extract.ValuePath, Type: opts.ValueFormat.scalar},
		}, nil
	}
	if opts.MapName == "" {
		return nil, domain.ErrSchema("option %s is required when no columns are declared", OptionMapName)
	}
	m, ok := c.store.Lookup(opts.MapName)
	if !ok || m.Len() == 0 {
		return nil, domain.ErrSchema("no data found in map '%s'", opts.MapName)
	}
	sample := m.Entries()[0]

	keyFields, err := inferHalf(true, opts.KeyFormat, sample.Key)
	if err != nil {
		return nil, err
	}
	valueFields, err := inferHalf(false, opts.ValueFormat, sample.Value)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(keyFields))
	for _, f := range keyFields {
		seen[f.Name] = true
	}
	for _, f := range valueFields {
		if seen[f.Name] {
			return nil, domain.ErrSchema("column %q exists in both key and value, declare the columns explicitly", f.Name)
		}
	}
	return append(keyFields, valueFields...), nil
}

func inferHalf(isKey bool, format halfFormat, sample any) ([]domain.ExternalField, error) {
	whole := extract.ValuePath
	if isKey {
		whole = extract.KeyPath
	}
	if format.scalar != "" {
		return []domain.ExternalField{{Name: whole, Type: format.scalar}}, nil
	}

	obj, isObj := sample.(map[string]any)
	if format.json {
		var err error
		if obj, err = asObject(sample); err != nil {
			return nil, domain.ErrSchema("%s of the sample entry is not a JSON object: %v", whole, err)
		}
		isObj = true
	}
	if !isObj {
		t := types.Infer(sample)
		if t == types.Null {
			t = types.Object
		}
		if isKey {
			if err := checkKeyType(t); err != nil {
				return nil, err
			}
		}
		return []domain.ExternalField{{Name: whole, Type: t}}, nil
	}

	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]domain.ExternalField, 0, len(names))
	for _, name := range names {
		t := inferJSONType(obj[name])
		f := domain.ExternalField{Name: name, Type: t}
		if isKey {
			f.ExternalName = extract.KeyPath + "." + name
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func asObject(v any) (map[string]any, error) {
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case string:
		return extract.DecodeJSONObject([]byte(x))
	case []byte:
		return extract.DecodeJSONObject(x)
	}
	return nil, fmt.Errorf("%T is not an object", v)
}

// inferJSONType follows the JSON file format: numbers are DOUBLE and
// anything that is not a scalar is OBJECT.
func inferJSONType(v any) types.Type {
	switch t := types.Infer(v); t {
	case types.Boolean, types.Varchar:
		return t
	case types.TinyInt, types.SmallInt, types.Int, types.BigInt, types.Real, types.Double, types.Decimal:
		return types.Double
	}
	return types.Object
}

// CreateTable implements connector.Connector.
func (c *Connector) CreateTable(schemaName, name string, options map[string]string, fields []domain.ExternalField) (*connector.Table, error) {
	opts, err := ParseOptions(options, name)
	if err != nil {
		return nil, err
	}
	if err := validateFields(opts, fields); err != nil {
		return nil, err
	}
	meta := connector.ResolvedMetadata{
		Target: Target{Options: opts},
		Fields: connector.ToTableFields(fields, isKeyField),
	}
	return connector.NewTable(c, schemaName, name, meta, connector.Statistics{RowCount: connector.UnknownRowCount}), nil
}

// SupportsFullScanReader implements connector.Connector.
func (c *Connector) SupportsFullScanReader() bool { return true }

// FullScanReader implements connector.Connector. Each reader instance
// scans its share of a snapshot taken when the job starts.
func (c *Connector) FullScanReader(dag *dataflow.DAG, table *connector.Table, _ string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error) {
	target, err := connector.TargetOf[Target](table)
	if err != nil {
		return nil, err
	}
	if err := connector.ValidateProjection(table, predicate, projection); err != nil {
		return nil, fmt.Errorf("table %q: %w", table.Name, err)
	}
	mapName := target.Options.MapName

	read := func(ctx context.Context, pctx dataflow.Context, fn func(any) error) error {
		entries := c.store.Map(mapName).Entries()
		for i, e := range entries {
			if i%pctx.Count != pctx.Index {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(extract.Entry{Key: e.Key, Value: e.Value}); err != nil {
				return err
			}
		}
		return nil
	}
	newTarget := func() extract.QueryTarget { return extract.NewEntryTarget() }
	supplier := connector.ScanSupplier(newTarget, table.Fields, predicate, projection, read)
	return dag.NewVertex(fmt.Sprintf("Read(%s)", table.QualifiedName()), supplier).LocalParallelism(c.parallelism), nil
}

// SupportsSink implements connector.Connector.
func (c *Connector) SupportsSink() bool { return true }

// Sink implements connector.Connector. Rows become entries in a Project
// vertex and are put into the map by a Write vertex; an existing key is
// overwritten.
func (c *Connector) Sink(dag *dataflow.DAG, table *connector.Table) (*dataflow.Vertex, error) {
	target, err := connector.TargetOf[Target](table)
	if err != nil {
		return nil, err
	}
	m := c.store.Map(target.Options.MapName)

	project := dag.NewVertex(connector.ProjectVertexName(table),
		connector.UpsertSupplier(func() inject.UpsertTarget { return inject.NewEntryTarget() }, table.Fields)).
		LocalParallelism(c.parallelism)

	write := dag.NewVertex(fmt.Sprintf("Write(%s)", table.QualifiedName()), func(pctx dataflow.Context) (dataflow.Processor, error) {
		return dataflow.ProcessorFunc(func(ctx context.Context, in <-chan dataflow.Row, _ func(dataflow.Row) error) error {
			count := 0
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case row, ok := <-in:
					if !ok {
						pctx.Logger.Debug("put entries", "map", m.Name(), "entries", count)
						return nil
					}
					e, ok := row[0].(extract.Entry)
					if !ok {
						return fmt.Errorf("write %s: unexpected record %T", m.Name(), row[0])
					}
					if err := m.Put(e.Key, e.Value); err != nil {
						return fmt.Errorf("write %s: %w", m.Name(), err)
					}
					count++
				}
			}
		}), nil
	}).LocalParallelism(c.parallelism)

	dag.Edge(project, write)
	return project, nil
}
