package kvstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

func TestStore_MapIsShared(t *testing.T) {
	s := New()
	a := s.Map("orders")
	require.NoError(t, a.Put(1, "x"))

	b := s.Map("orders")
	v, ok := b.Get(1)
	require.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"orders"}, s.Names())
}

func TestMap_Operations(t *testing.T) {
	m := New().Map("m")

	require.NoError(t, m.Put("a", 1))
	require.NoError(t, m.Put("b", 2))
	require.NoError(t, m.Put("a", 3))
	assert.Equal(t, []Entry{{"a", 3}, {"b", 2}}, m.Entries())

	prev, loaded, err := m.PutIfAbsent("a", 9)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, 3, prev)

	_, loaded, err = m.PutIfAbsent("c", 4)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 3, m.Len())

	prev, ok := m.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, 3, prev)
	_, ok = m.Remove("a")
	assert.False(t, ok)
	assert.Equal(t, []Entry{{"b", 2}, {"c", 4}}, m.Entries())

	m.Clear()
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Entries())
}

func TestMap_RejectsNonComparableKeys(t *testing.T) {
	m := New().Map("m")

	assert.Error(t, m.Put([]byte("k"), 1))
	assert.Error(t, m.Put(map[string]any{"id": 1}, 1))
	assert.Error(t, m.Put(nil, 1))
	_, _, err := m.PutIfAbsent([]any{1}, 1)
	assert.Error(t, err)

	_, ok := m.Get([]byte("k"))
	assert.False(t, ok)
}

func TestMap_ConcurrentPutIfAbsent(t *testing.T) {
	m := New().Map("m")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, loaded, err := m.PutIfAbsent("k", i)
			if err == nil && !loaded {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, m.Len())
}

func TestDefinitionStore(t *testing.T) {
	ctx := context.Background()
	store := NewDefinitionStore(New())

	def := domain.ExternalTableDefinition{
		Name:          "users",
		ConnectorType: "File",
		Fields:        []domain.ExternalField{{Name: "id", Type: types.Int}},
		Options:       map[string]string{"format": "csv"},
	}

	prev, err := store.PutIfAbsent(ctx, def)
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = store.PutIfAbsent(ctx, def.WithFields(nil))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Len(t, prev.Fields, 1)

	got, err := store.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, def, *got)

	// mutations of returned values must not leak into the store
	got.Options["format"] = "json"
	got.Fields[0].Name = "changed"
	again, err := store.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "csv", again.Options["format"])
	assert.Equal(t, "id", again.Fields[0].Name)

	require.NoError(t, store.Put(ctx, domain.ExternalTableDefinition{Name: "events", ConnectorType: "TestStream"}))
	values, err := store.Values(ctx)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "users", values[0].Name)
	assert.Equal(t, "events", values[1].Name)

	removed, err := store.Remove(ctx, "users")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, "users", removed.Name)

	removed, err = store.Remove(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, removed)

	_, err = store.Get(ctx, "users")
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, store.Clear(ctx))
	values, err = store.Values(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)
}
