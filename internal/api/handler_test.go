package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/service/query"
	"duck-connect/internal/testutil"
	"duck-connect/internal/types"
)

// === Mocks ===

type mockCatalog struct {
	createTableFn   func(ctx context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error)
	removeTableFn   func(ctx context.Context, name string, ifExists bool) error
	getTablesFn     func(ctx context.Context) ([]*connector.Table, error)
	getTableFn      func(ctx context.Context, name string) (*connector.Table, error)
	getDefinitionFn func(ctx context.Context, name string) (*domain.ExternalTableDefinition, error)
	listDefsFn      func(ctx context.Context) ([]domain.ExternalTableDefinition, error)
}

func (m *mockCatalog) CreateTable(ctx context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error) {
	if m.createTableFn == nil {
		panic("unexpected call to mockCatalog.CreateTable")
	}
	return m.createTableFn(ctx, def, replace, ifNotExists)
}

func (m *mockCatalog) RemoveTable(ctx context.Context, name string, ifExists bool) error {
	if m.removeTableFn == nil {
		panic("unexpected call to mockCatalog.RemoveTable")
	}
	return m.removeTableFn(ctx, name, ifExists)
}

func (m *mockCatalog) GetTables(ctx context.Context) ([]*connector.Table, error) {
	if m.getTablesFn == nil {
		panic("unexpected call to mockCatalog.GetTables")
	}
	return m.getTablesFn(ctx)
}

func (m *mockCatalog) GetTable(ctx context.Context, name string) (*connector.Table, error) {
	if m.getTableFn == nil {
		panic("unexpected call to mockCatalog.GetTable")
	}
	return m.getTableFn(ctx, name)
}

func (m *mockCatalog) GetDefinition(ctx context.Context, name string) (*domain.ExternalTableDefinition, error) {
	if m.getDefinitionFn == nil {
		panic("unexpected call to mockCatalog.GetDefinition")
	}
	return m.getDefinitionFn(ctx, name)
}

func (m *mockCatalog) ListDefinitions(ctx context.Context) ([]domain.ExternalTableDefinition, error) {
	if m.listDefsFn == nil {
		panic("unexpected call to mockCatalog.ListDefinitions")
	}
	return m.listDefsFn(ctx)
}

type mockQuerier struct {
	selectFn       func(ctx context.Context, req query.SelectRequest) (*query.QueryResult, error)
	insertFn       func(ctx context.Context, req query.InsertRequest) (int, error)
	insertSelectFn func(ctx context.Context, req query.InsertSelectRequest) (int64, error)
}

func (m *mockQuerier) Select(ctx context.Context, req query.SelectRequest) (*query.QueryResult, error) {
	if m.selectFn == nil {
		panic("unexpected call to mockQuerier.Select")
	}
	return m.selectFn(ctx, req)
}

func (m *mockQuerier) Insert(ctx context.Context, req query.InsertRequest) (int, error) {
	if m.insertFn == nil {
		panic("unexpected call to mockQuerier.Insert")
	}
	return m.insertFn(ctx, req)
}

func (m *mockQuerier) InsertSelect(ctx context.Context, req query.InsertSelectRequest) (int64, error) {
	if m.insertSelectFn == nil {
		panic("unexpected call to mockQuerier.InsertSelect")
	}
	return m.insertSelectFn(ctx, req)
}

type mockJobs struct {
	submitFn func(ctx context.Context, req query.CreateJobRequest) (bool, error)
	cancelFn func(ctx context.Context, name string, ifExists bool) error
	getFn    func(name string) (*query.Job, error)
	listFn   func() []query.Job
}

func (m *mockJobs) Submit(ctx context.Context, req query.CreateJobRequest) (bool, error) {
	if m.submitFn == nil {
		panic("unexpected call to mockJobs.Submit")
	}
	return m.submitFn(ctx, req)
}

func (m *mockJobs) Cancel(ctx context.Context, name string, ifExists bool) error {
	if m.cancelFn == nil {
		panic("unexpected call to mockJobs.Cancel")
	}
	return m.cancelFn(ctx, name, ifExists)
}

func (m *mockJobs) Get(name string) (*query.Job, error) {
	if m.getFn == nil {
		panic("unexpected call to mockJobs.Get")
	}
	return m.getFn(name)
}

func (m *mockJobs) List() []query.Job {
	if m.listFn == nil {
		panic("unexpected call to mockJobs.List")
	}
	return m.listFn()
}

// === Helpers ===

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, cat Catalog, q Querier) *httptest.Server {
	t.Helper()
	return newJobServer(t, cat, q, &mockJobs{})
}

func newJobServer(t *testing.T, cat Catalog, q Querier, jobs Jobs) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/v1", NewHandler(cat, q, jobs, discardLogger()).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func numbersTable() *connector.Table {
	conn := &testutil.MockConnector{Name: "TestBatch"}
	return connector.NewTable(conn, "public", "numbers", connector.ResolvedMetadata{
		Target: testutil.MockTarget{},
		Fields: []connector.TableField{{Name: "v", Type: types.Int, Path: "v"}},
	}, connector.Statistics{RowCount: 5})
}

// === Tests ===

func TestCreateTable(t *testing.T) {
	var got domain.ExternalTableDefinition
	var gotReplace, gotIfNotExists bool
	cat := &mockCatalog{
		createTableFn: func(_ context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error) {
			got, gotReplace, gotIfNotExists = def, replace, ifNotExists
			return def.Name == "numbers", nil
		},
		getTableFn: func(context.Context, string) (*connector.Table, error) { return numbersTable(), nil },
	}
	srv := newServer(t, cat, &mockQuerier{})

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/tables",
		`{"name":"numbers","type":"TestBatch","fields":[{"name":"v","type":"integer"}],"options":{"itemCount":"5"},"replace":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "numbers", got.Name)
	assert.Equal(t, "TestBatch", got.ConnectorType)
	assert.Equal(t, []domain.ExternalField{{Name: "v", Type: types.Int}}, got.Fields)
	assert.True(t, gotReplace)
	assert.False(t, gotIfNotExists)

	var created CreateTableResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.Created)
	require.NotNil(t, created.Table)
	assert.Equal(t, int64(5), created.Table.RowCount)
	assert.Equal(t, []ColumnInfo{{Name: "v", Type: types.Int, Path: "v"}}, created.Table.Columns)

	resp, body = do(t, http.MethodPost, srv.URL+"/v1/tables", `{"name":"other","type":"TestBatch","if_not_exists":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"created":false}`, string(body))
	assert.True(t, gotIfNotExists)
}

func TestCreateTable_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "bad_json", body: `{"name":`, status: http.StatusBadRequest},
		{name: "unknown_field", body: `{"name":"t","kind":"x"}`, status: http.StatusBadRequest},
		{name: "bad_type", body: `{"name":"t","type":"File","fields":[{"name":"a","type":"BLOB"}]}`, status: http.StatusBadRequest},
		{name: "duplicate", body: `{"name":"t","type":"File"}`, err: &domain.DuplicateTableError{Name: "t"}, status: http.StatusConflict},
		{
			name:   "invalid_table",
			body:   `{"name":"t","type":"File"}`,
			err:    &domain.InvalidTableError{Name: "t", Err: domain.ErrSchema("no data found in '/x'")},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown_connector",
			body:   `{"name":"t","type":"Kafka"}`,
			err:    &domain.InvalidTableError{Name: "t", Err: &domain.UnknownConnectorError{Type: "Kafka"}},
			status: http.StatusBadRequest,
		},
		{name: "store_down", body: `{"name":"t","type":"File"}`, err: errors.New("disk full"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cat := &mockCatalog{
				createTableFn: func(context.Context, domain.ExternalTableDefinition, bool, bool) (bool, error) {
					return false, tc.err
				},
			}
			resp, body := do(t, http.MethodPost, newServer(t, cat, &mockQuerier{}).URL+"/v1/tables", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			var e ErrorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tc.status, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestListAndGetTable(t *testing.T) {
	cat := &mockCatalog{
		getTablesFn: func(context.Context) ([]*connector.Table, error) { return []*connector.Table{numbersTable()}, nil },
		getTableFn: func(_ context.Context, name string) (*connector.Table, error) {
			if name != "numbers" {
				return nil, &domain.TableNotFoundError{Name: name}
			}
			return numbersTable(), nil
		},
		getDefinitionFn: func(context.Context, string) (*domain.ExternalTableDefinition, error) {
			return &domain.ExternalTableDefinition{Name: "numbers", ConnectorType: "TestBatch", Options: map[string]string{"itemCount": "5"}}, nil
		},
	}
	srv := newServer(t, cat, &mockQuerier{})

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/tables", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Tables []TableInfo `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Tables, 1)
	assert.Equal(t, "TestBatch", list.Tables[0].Type)
	assert.Equal(t, "public", list.Tables[0].Schema)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/tables/numbers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info TableInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, map[string]string{"itemCount": "5"}, info.Options)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/tables/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListDefinitions(t *testing.T) {
	cat := &mockCatalog{
		listDefsFn: func(context.Context) ([]domain.ExternalTableDefinition, error) { return nil, nil },
	}
	resp, body := do(t, http.MethodGet, newServer(t, cat, &mockQuerier{}).URL+"/v1/definitions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"definitions":[]}`, string(body))

	cat.listDefsFn = func(context.Context) ([]domain.ExternalTableDefinition, error) {
		return []domain.ExternalTableDefinition{{
			Name: "users", ConnectorType: "File",
			Fields:  []domain.ExternalField{{Name: "city", Type: types.Varchar, ExternalName: "address.city"}},
			Options: map[string]string{"format": "json"},
		}}, nil
	}
	_, body = do(t, http.MethodGet, newServer(t, cat, &mockQuerier{}).URL+"/v1/definitions", "")
	assert.JSONEq(t, `{"definitions":[{"name":"users","type":"File",
		"fields":[{"name":"city","type":"VARCHAR","external_name":"address.city"}],
		"options":{"format":"json"}}]}`, string(body))
}

func TestDropTable(t *testing.T) {
	var ifExists bool
	cat := &mockCatalog{
		removeTableFn: func(_ context.Context, name string, e bool) error {
			ifExists = e
			if name == "missing" && !e {
				return &domain.TableNotFoundError{Name: name}
			}
			return nil
		},
	}
	srv := newServer(t, cat, &mockQuerier{})

	resp, _ := do(t, http.MethodDelete, srv.URL+"/v1/tables/numbers", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/tables/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/tables/missing?if_exists=true", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, ifExists)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/tables/missing?if_exists=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSelect(t *testing.T) {
	var got query.SelectRequest
	q := &mockQuerier{
		selectFn: func(_ context.Context, req query.SelectRequest) (*query.QueryResult, error) {
			got = req
			return &query.QueryResult{Columns: []string{"v"}, Rows: [][]any{{int32(1)}}, RowCount: 1}, nil
		},
	}
	srv := newServer(t, &mockCatalog{}, q)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/tables/numbers/select", `{"columns":["v"],"where":"v > 0","limit":10}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, query.SelectRequest{Table: "numbers", Columns: []string{"v"}, Where: "v > 0", Limit: 10}, got)
	assert.JSONEq(t, `{"columns":["v"],"rows":[[1]],"row_count":1}`, string(body))
}

func TestInsert(t *testing.T) {
	var got query.InsertRequest
	q := &mockQuerier{
		insertFn: func(_ context.Context, req query.InsertRequest) (int, error) {
			got = req
			return len(req.Rows), nil
		},
	}
	srv := newServer(t, &mockCatalog{}, q)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/tables/kv/insert", `{"rows":[[1,"one"],[12345678901234567890,null]]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"rows_inserted":2}`, string(body))
	assert.Equal(t, "kv", got.Table)
	assert.Equal(t, json.Number("12345678901234567890"), got.Rows[1][0], "numbers keep full precision")
	assert.Nil(t, got.Rows[1][1])
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not_found", &domain.TableNotFoundError{Name: "t"}, http.StatusNotFound},
		{"validation", domain.ErrValidation("limit must not be negative"), http.StatusBadRequest},
		{"mismatch", fmt.Errorf("row 1 column %q: %w", "v", &types.MismatchError{Expected: types.Int, Actual: "VARCHAR"}), http.StatusBadRequest},
		{"not_supported", fmt.Errorf("connector %q: sink: %w", "TestBatch", connector.ErrNotSupported), http.StatusMethodNotAllowed},
		{"resource", domain.ErrResource("s3://bucket/x", errors.New("access denied")), http.StatusBadGateway},
		{"timeout", fmt.Errorf("select: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &mockQuerier{
				selectFn: func(context.Context, query.SelectRequest) (*query.QueryResult, error) { return nil, tc.err },
				insertFn: func(context.Context, query.InsertRequest) (int, error) { return 0, tc.err },
			}
			srv := newServer(t, &mockCatalog{}, q)

			resp, _ := do(t, http.MethodPost, srv.URL+"/v1/tables/t/select", `{}`)
			assert.Equal(t, tc.status, resp.StatusCode)
			resp, _ = do(t, http.MethodPost, srv.URL+"/v1/tables/t/insert", `{"rows":[]}`)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
