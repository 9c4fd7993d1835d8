package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"duck-connect/internal/api"
	"duck-connect/internal/domain"
	"duck-connect/internal/service/query"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s (HTTP %d, request %s)", e.Message, e.HTTPStatus, e.RequestID)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.HTTPStatus)
}

// Client talks to the catalog server's /v1 API. It implements
// declarative.Catalog so table files can be applied remotely.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+"/v1"+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Message != "" {
			apiErr.Code = e.Code
			apiErr.Message = e.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateTable implements declarative.Catalog.
func (c *Client) CreateTable(ctx context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error) {
	var resp api.CreateTableResponse
	err := c.do(ctx, http.MethodPost, "/tables", api.CreateTableRequest{
		Name:        def.Name,
		Type:        def.ConnectorType,
		Fields:      def.Fields,
		Options:     def.Options,
		Replace:     replace,
		IfNotExists: ifNotExists,
	}, &resp)
	return resp.Created, err
}

// RemoveTable implements declarative.Catalog.
func (c *Client) RemoveTable(ctx context.Context, name string, ifExists bool) error {
	path := "/tables/" + url.PathEscape(name)
	if ifExists {
		path += "?if_exists=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListDefinitions implements declarative.Catalog.
func (c *Client) ListDefinitions(ctx context.Context) ([]domain.ExternalTableDefinition, error) {
	var resp struct {
		Definitions []domain.ExternalTableDefinition `json:"definitions"`
	}
	if err := c.do(ctx, http.MethodGet, "/definitions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Definitions, nil
}

// ListTables returns every resolvable table.
func (c *Client) ListTables(ctx context.Context) ([]api.TableInfo, error) {
	var resp struct {
		Tables []api.TableInfo `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/tables", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

// GetTable describes one table.
func (c *Client) GetTable(ctx context.Context, name string) (*api.TableInfo, error) {
	var info api.TableInfo
	if err := c.do(ctx, http.MethodGet, "/tables/"+url.PathEscape(name), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Select runs a scan.
func (c *Client) Select(ctx context.Context, name string, req query.SelectRequest) (*query.QueryResult, error) {
	var result query.QueryResult
	if err := c.do(ctx, http.MethodPost, "/tables/"+url.PathEscape(name)+"/select", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Insert writes rows and returns how many were written.
func (c *Client) Insert(ctx context.Context, name string, rows [][]any) (int, error) {
	var resp api.InsertResponse
	err := c.do(ctx, http.MethodPost, "/tables/"+url.PathEscape(name)+"/insert", query.InsertRequest{Rows: rows}, &resp)
	return resp.RowsInserted, err
}

// CreateJob submits a background INSERT ... SELECT.
func (c *Client) CreateJob(ctx context.Context, req query.CreateJobRequest) (bool, error) {
	var resp api.CreateJobResponse
	err := c.do(ctx, http.MethodPost, "/jobs", req, &resp)
	return resp.Created, err
}

// DropJob cancels a running job.
func (c *Client) DropJob(ctx context.Context, name string, ifExists bool) error {
	path := "/jobs/" + url.PathEscape(name)
	if ifExists {
		path += "?if_exists=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListJobs returns every job the server knows about.
func (c *Client) ListJobs(ctx context.Context) ([]query.Job, error) {
	var resp api.ListJobsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}
