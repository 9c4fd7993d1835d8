package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-connect/internal/config"
	internaldb "duck-connect/internal/db"
	"duck-connect/internal/domain"
	"duck-connect/internal/middleware"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(store string) *config.Config {
	return &config.Config{
		CatalogStore:       store,
		DefaultSchema:      "public",
		CORSAllowedOrigins: []string{"*"},
		ScanParallelism:    1,
		QueryTimeout:       10 * time.Second,
	}
}

func TestNew_SQLiteStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	cfg := testConfig(config.StoreSQLite)

	first, err := New(ctx, Deps{Cfg: cfg, WriteDB: writeDB, Logger: discardLogger()})
	require.NoError(t, err)
	_, err = first.Catalog.CreateTable(ctx, batchDefinition("numbers"), false, false)
	require.NoError(t, err)

	second, err := New(ctx, Deps{Cfg: cfg, WriteDB: writeDB, Logger: discardLogger()})
	require.NoError(t, err)
	table, err := second.Catalog.GetTable(ctx, "numbers")
	require.NoError(t, err)
	assert.Equal(t, "public.numbers", table.QualifiedName())
}

func TestNew_SQLiteRequiresDB(t *testing.T) {
	_, err := New(context.Background(), Deps{Cfg: testConfig(config.StoreSQLite), Logger: discardLogger()})
	assert.Error(t, err)
}

func TestNew_AppliesTablesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`apiVersion: duck-connect/v1
kind: ExternalTable
metadata:
  name: ticks
spec:
  connector: TestStream
`), 0o600))
	cfg := testConfig(config.StoreMemory)
	cfg.TablesFile = path
	cfg.DefaultSchema = "ext"

	a, err := New(context.Background(), Deps{Cfg: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	table, err := a.Catalog.GetTable(context.Background(), "ticks")
	require.NoError(t, err)
	assert.Equal(t, "ext", table.SchemaName)
	assert.True(t, table.Connector().IsStream())

	cfg.TablesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), Deps{Cfg: cfg, Logger: discardLogger()})
	assert.Error(t, err)
}

func TestRouter_EndToEnd(t *testing.T) {
	cfg := testConfig(config.StoreMemory)
	a, err := New(context.Background(), Deps{Cfg: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router(cfg, discardLogger(), middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})))
	t.Cleanup(srv.Close)

	post := func(path, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post("/v1/tables", `{"name":"kv","type":"ReplicatedMap","options":{"keyFormat":"INT","valueFormat":"VARCHAR"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "1000", resp.Header.Get("X-RateLimit-Limit"))

	resp = post("/v1/tables/kv/insert", `{"rows":[[1,"one"],[2,"two"]]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post("/v1/tables/kv/select", `{"columns":["this"],"where":"__key == 2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Rows [][]any `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, [][]any{{"two"}}, result.Rows)
}

func TestRouter_Readiness(t *testing.T) {
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	cfg := testConfig(config.StoreSQLite)
	a, err := New(context.Background(), Deps{Cfg: cfg, WriteDB: writeDB, ReadDB: readDB, Logger: discardLogger()})
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router(cfg, discardLogger(), nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, readDB.Close())
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func batchDefinition(name string) domain.ExternalTableDefinition {
	return domain.ExternalTableDefinition{Name: name, ConnectorType: "TestBatch"}
}
