package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-connect/internal/connector"
	"duck-connect/internal/connector/testsrc"
	"duck-connect/internal/domain"
	"duck-connect/internal/kvstore"
	"duck-connect/internal/testutil"
	"duck-connect/internal/types"
)

var errTest = errors.New("test error")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRegistry(t *testing.T, extra ...connector.Connector) *connector.Registry {
	t.Helper()
	all := append([]connector.Connector{testsrc.NewBatch(discardLogger()), testsrc.NewStream(discardLogger())}, extra...)
	r, err := connector.NewRegistry(all...)
	require.NoError(t, err)
	return r
}

func newCatalog(t *testing.T, extra ...connector.Connector) (*ExternalCatalog, domain.TableDefinitionStore) {
	t.Helper()
	store := kvstore.NewDefinitionStore(kvstore.New())
	return NewExternalCatalog(store, newRegistry(t, extra...), discardLogger()), store
}

func batchDef(name, count string) domain.ExternalTableDefinition {
	return domain.ExternalTableDefinition{
		Name:          name,
		ConnectorType: testsrc.BatchTypeName,
		Options:       map[string]string{testsrc.OptionItemCount: count},
	}
}

func TestCreateTable_ResolvesAndStores(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	def := batchDef("numbers", "5")
	def.ConnectorType = "testbatch"
	created, err := cat.CreateTable(ctx, def, false, false)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := store.Get(ctx, "numbers")
	require.NoError(t, err)
	assert.Equal(t, testsrc.BatchTypeName, stored.ConnectorType, "type name is canonicalised")
	assert.Equal(t, []domain.ExternalField{{Name: "v", Type: types.Int}}, stored.Fields)

	table, err := cat.GetTable(ctx, "numbers")
	require.NoError(t, err)
	assert.Equal(t, "public.numbers", table.QualifiedName())
	assert.Equal(t, int64(5), table.Statistics.RowCount)
}

func TestCreateTable_Duplicate(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	_, err := cat.CreateTable(ctx, batchDef("numbers", "5"), false, false)
	require.NoError(t, err)
	before, err := store.Get(ctx, "numbers")
	require.NoError(t, err)

	created, err := cat.CreateTable(ctx, batchDef("numbers", "7"), false, false)
	assert.False(t, created)
	var dup *domain.DuplicateTableError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "numbers", dup.Name)
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)

	after, err := store.Get(ctx, "numbers")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCreateTable_IfNotExists(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	_, err := cat.CreateTable(ctx, batchDef("numbers", "5"), false, false)
	require.NoError(t, err)

	created, err := cat.CreateTable(ctx, batchDef("numbers", "7"), false, true)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Get(ctx, "numbers")
	require.NoError(t, err)
	assert.Equal(t, "5", got.Options[testsrc.OptionItemCount])

	// IF NOT EXISTS takes precedence over OR REPLACE
	created, err = cat.CreateTable(ctx, batchDef("numbers", "9"), true, true)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateTable_Replace(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	_, err := cat.CreateTable(ctx, batchDef("numbers", "5"), false, false)
	require.NoError(t, err)

	created, err := cat.CreateTable(ctx, batchDef("numbers", "7"), true, false)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := store.Get(ctx, "numbers")
	require.NoError(t, err)
	assert.Equal(t, "7", got.Options[testsrc.OptionItemCount])

	created, err = cat.CreateTable(ctx, batchDef("fresh", "1"), true, false)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateTable_InvalidDefinitionWritesNothing(t *testing.T) {
	ctx := context.Background()
	failing := &testutil.MockConnector{
		Name: "Broken",
		ResolveFn: func(context.Context, map[string]string, []domain.ExternalField) ([]domain.ExternalField, error) {
			return nil, domain.ErrSchema("no data found in '/empty'")
		},
	}
	unbuildable := &testutil.MockConnector{
		Name: "Unbuildable",
		CreateTableFn: func(string, string, map[string]string, []domain.ExternalField) (*connector.Table, error) {
			return nil, errTest
		},
	}
	store := &testutil.MockTableDefinitionStore{}
	cat := NewExternalCatalog(store, newRegistry(t, failing, unbuildable), discardLogger())

	tests := []struct {
		name  string
		def   domain.ExternalTableDefinition
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown_connector",
			def:  domain.ExternalTableDefinition{Name: "t", ConnectorType: "Kafka"},
			check: func(t *testing.T, err error) {
				var unknown *domain.UnknownConnectorError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "Kafka", unknown.Type)
			},
		},
		{
			name: "schema_error",
			def:  domain.ExternalTableDefinition{Name: "t", ConnectorType: "Broken"},
			check: func(t *testing.T, err error) {
				var schemaErr *domain.SchemaError
				require.ErrorAs(t, err, &schemaErr)
				assert.Contains(t, err.Error(), "no data found in '/empty'")
			},
		},
		{
			name: "fixed_fields",
			def: domain.ExternalTableDefinition{
				Name: "t", ConnectorType: testsrc.BatchTypeName,
				Fields: []domain.ExternalField{{Name: "x", Type: types.Int}},
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "Don't specify external fields, they are fixed")
			},
		},
		{
			name: "construction_error",
			def:  domain.ExternalTableDefinition{Name: "t", ConnectorType: "Unbuildable"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errTest)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			created, err := cat.CreateTable(ctx, tc.def, false, false)
			assert.False(t, created)
			var invalid *domain.InvalidTableError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "t", invalid.Name)
			assert.Contains(t, err.Error(), `invalid table definition for "t"`)
			tc.check(t, err)
		})
	}
	assert.Zero(t, store.WriteCount())
}

func TestCreateTable_MalformedRequest(t *testing.T) {
	cat, _ := newCatalog(t)

	_, err := cat.CreateTable(context.Background(), domain.ExternalTableDefinition{ConnectorType: "TestBatch"}, false, false)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestCreateTable_StoreFailure(t *testing.T) {
	store := &testutil.MockTableDefinitionStore{
		PutIfAbsentFn: func(context.Context, domain.ExternalTableDefinition) (*domain.ExternalTableDefinition, error) {
			return nil, errTest
		},
	}
	cat := NewExternalCatalog(store, newRegistry(t), discardLogger())

	_, err := cat.CreateTable(context.Background(), batchDef("numbers", "1"), false, false)
	require.ErrorIs(t, err, errTest)
	assert.Contains(t, err.Error(), "numbers")
}

func TestCreateTable_ConcurrentIfNotExists(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := cat.CreateTable(ctx, batchDef("numbers", "3"), false, true)
			if err == nil && ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())

	tables, err := cat.GetTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestRemoveTable(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	err := cat.RemoveTable(ctx, "missing", false)
	var nf *domain.TableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)

	require.NoError(t, cat.RemoveTable(ctx, "missing", true))

	_, err = cat.CreateTable(ctx, batchDef("numbers", "1"), false, false)
	require.NoError(t, err)
	require.NoError(t, cat.RemoveTable(ctx, "numbers", false))

	tables, err := cat.GetTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	_, err = cat.GetTable(ctx, "numbers")
	assert.ErrorAs(t, err, &nf)
}

func TestGetTables_SkipsUnresolvable(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	_, err := cat.CreateTable(ctx, batchDef("good", "1"), false, false)
	require.NoError(t, err)
	// a definition whose connector is no longer registered
	require.NoError(t, store.Put(ctx, domain.ExternalTableDefinition{Name: "orphan", ConnectorType: "Gone"}))

	tables, err := cat.GetTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "good", tables[0].Name)

	_, err = cat.GetTable(ctx, "orphan")
	var invalid *domain.InvalidTableError
	assert.ErrorAs(t, err, &invalid)
}

func TestGetTables_StoreFailure(t *testing.T) {
	store := &testutil.MockTableDefinitionStore{
		ValuesFn: func(context.Context) ([]domain.ExternalTableDefinition, error) { return nil, errTest },
	}
	cat := NewExternalCatalog(store, newRegistry(t), discardLogger())

	_, err := cat.GetTables(context.Background())
	assert.ErrorIs(t, err, errTest)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	for _, name := range []string{"a", "b"} {
		_, err := cat.CreateTable(ctx, batchDef(name, "1"), false, false)
		require.NoError(t, err)
	}
	require.NoError(t, cat.Clear(ctx))

	defs, err := cat.ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestSchemaNameAndSearchPaths(t *testing.T) {
	store := kvstore.NewDefinitionStore(kvstore.New())
	cat := NewExternalCatalog(store, newRegistry(t), discardLogger(), WithSchemaName("ext"))

	assert.Equal(t, [][]string{{"duck", "ext"}}, cat.DefaultSearchPaths())

	table, err := cat.ToTable(domain.ExternalTableDefinition{Name: "s", ConnectorType: testsrc.StreamTypeName,
		Fields: []domain.ExternalField{{Name: "v", Type: types.BigInt}}})
	require.NoError(t, err)
	assert.Equal(t, "ext", table.SchemaName)
	assert.True(t, table.Connector().IsStream())
}
