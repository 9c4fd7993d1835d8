package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "duck-connect/internal/db"
	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

func setupExternalTableStore(t *testing.T) *ExternalTableStore {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	return NewExternalTableStore(writeDB)
}

func usersDef(path string) domain.ExternalTableDefinition {
	return domain.ExternalTableDefinition{
		Name:          "users",
		ConnectorType: "File",
		Fields: []domain.ExternalField{
			{Name: "id", Type: types.BigInt},
			{Name: "city", Type: types.Varchar, ExternalName: "address.city"},
		},
		Options: map[string]string{"format": "json", "file.path": path},
	}
}

func TestExternalTableStore_PutIfAbsentAndGet(t *testing.T) {
	store := setupExternalTableStore(t)
	ctx := context.Background()

	prev, err := store.PutIfAbsent(ctx, usersDef("/data/a"))
	require.NoError(t, err)
	assert.Nil(t, prev)

	got, err := store.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, usersDef("/data/a"), *got)

	prev, err = store.PutIfAbsent(ctx, usersDef("/data/b"))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "/data/a", prev.Options["file.path"])

	got, err = store.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "/data/a", got.Options["file.path"], "existing definition is kept")
}

func TestExternalTableStore_GetNotFound(t *testing.T) {
	store := setupExternalTableStore(t)

	_, err := store.Get(context.Background(), "missing")
	var tnf *domain.TableNotFoundError
	require.ErrorAs(t, err, &tnf)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestExternalTableStore_PutOverwrites(t *testing.T) {
	store := setupExternalTableStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, usersDef("/data/a")))
	require.NoError(t, store.Put(ctx, domain.ExternalTableDefinition{Name: "other", ConnectorType: "TestBatch"}))
	require.NoError(t, store.Put(ctx, usersDef("/data/b")))

	got, err := store.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "/data/b", got.Options["file.path"])

	defs, err := store.Values(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "users", defs[0].Name, "replacing keeps creation order")
	assert.Equal(t, "other", defs[1].Name)
	assert.Empty(t, defs[1].Fields)
	assert.Empty(t, defs[1].Options)
}

func TestExternalTableStore_Remove(t *testing.T) {
	store := setupExternalTableStore(t)
	ctx := context.Background()

	prev, err := store.Remove(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, prev)

	require.NoError(t, store.Put(ctx, usersDef("/data/a")))
	prev, err = store.Remove(ctx, "users")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "users", prev.Name)
	assert.Len(t, prev.Fields, 2)

	_, err = store.Get(ctx, "users")
	var tnf *domain.TableNotFoundError
	assert.ErrorAs(t, err, &tnf)
}

func TestExternalTableStore_Clear(t *testing.T) {
	store := setupExternalTableStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, usersDef("/data/a")))
	require.NoError(t, store.Put(ctx, domain.ExternalTableDefinition{Name: "other", ConnectorType: "TestBatch"}))
	require.NoError(t, store.Clear(ctx))

	defs, err := store.Values(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestExternalTableStore_ConcurrentPutIfAbsent(t *testing.T) {
	store := setupExternalTableStore(t)
	ctx := context.Background()

	var inserted atomic.Int32
	var wg sync.WaitGroup
	errs := make([]error, 12)
	for i := range errs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			prev, err := store.PutIfAbsent(ctx, usersDef("/data/a"))
			errs[idx] = err
			if err == nil && prev == nil {
				inserted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}
	assert.Equal(t, int32(1), inserted.Load())
}
