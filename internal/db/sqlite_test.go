package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	write := buildDSN("/tmp/meta.sqlite", ModeWrite)
	assert.True(t, strings.HasPrefix(write, "/tmp/meta.sqlite?"))
	assert.Contains(t, write, "_journal_mode=WAL")
	assert.Contains(t, write, "_busy_timeout=5000")
	assert.Contains(t, write, "_txlock=immediate")

	read := buildDSN("/tmp/meta.sqlite", ModeRead)
	assert.Contains(t, read, "_synchronous=NORMAL")
	assert.NotContains(t, read, "_txlock")
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "meta.db"), Mode("invalid"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/meta.db", ModeWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")

	_, _, err = OpenSQLitePair("/nonexistent/dir/meta.db", 4)
	require.Error(t, err)
}

func TestOpenSQLitePair(t *testing.T) {
	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "meta.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = writeDB.Close()
		_ = readDB.Close()
	})

	assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
	assert.Equal(t, 4, readDB.Stats().MaxOpenConnections)

	var journal string
	require.NoError(t, readDB.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", strings.ToLower(journal))

	_, err = writeDB.Exec("CREATE TABLE counter (id INTEGER PRIMARY KEY, n INTEGER)")
	require.NoError(t, err)
	_, err = writeDB.Exec("INSERT INTO counter (id, n) VALUES (1, 0)")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = writeDB.Exec("UPDATE counter SET n = n + 1 WHERE id = 1")
		}(i)
		go func(idx int) {
			defer wg.Done()
			var n int
			errs[20+idx] = readDB.QueryRow("SELECT n FROM counter WHERE id = 1").Scan(&n)
		}(i)
	}
	wg.Wait()
	for i, e := range errs {
		assert.NoError(t, e, "worker %d", i)
	}

	var n int
	require.NoError(t, readDB.QueryRow("SELECT n FROM counter WHERE id = 1").Scan(&n))
	assert.Equal(t, 20, n)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	writeDB, _ := OpenTestSQLite(t)
	require.NoError(t, RunMigrations(writeDB))

	var count int
	require.NoError(t, writeDB.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'external_tables'").Scan(&count))
	assert.Equal(t, 1, count)
}
