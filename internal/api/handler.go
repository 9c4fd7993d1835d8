// Package api exposes the external table catalog and one-shot queries
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/middleware"
	"duck-connect/internal/service/query"
)

// Catalog is the catalog surface the handlers use.
// *catalog.ExternalCatalog implements it.
type Catalog interface {
	CreateTable(ctx context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error)
	RemoveTable(ctx context.Context, name string, ifExists bool) error
	GetTables(ctx context.Context) ([]*connector.Table, error)
	GetTable(ctx context.Context, name string) (*connector.Table, error)
	GetDefinition(ctx context.Context, name string) (*domain.ExternalTableDefinition, error)
	ListDefinitions(ctx context.Context) ([]domain.ExternalTableDefinition, error)
}

// Querier runs selects and inserts. *query.Service implements it.
type Querier interface {
	Select(ctx context.Context, req query.SelectRequest) (*query.QueryResult, error)
	Insert(ctx context.Context, req query.InsertRequest) (int, error)
	InsertSelect(ctx context.Context, req query.InsertSelectRequest) (int64, error)
}

// Jobs manages background INSERT ... SELECT jobs. *query.JobManager
// implements it.
type Jobs interface {
	Submit(ctx context.Context, req query.CreateJobRequest) (bool, error)
	Cancel(ctx context.Context, name string, ifExists bool) error
	Get(name string) (*query.Job, error)
	List() []query.Job
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// Handler serves the /v1 API.
type Handler struct {
	catalog Catalog
	query   Querier
	jobs    Jobs
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(catalog Catalog, q Querier, jobs Jobs, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, query: q, jobs: jobs, logger: logger.With("component", "api")}
}

// Routes mounts the table and job endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/definitions", h.ListDefinitions)
	r.Route("/tables", func(r chi.Router) {
		r.Get("/", h.ListTables)
		r.Post("/", h.CreateTable)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.GetTable)
			r.Delete("/", h.DropTable)
			r.Post("/select", h.Select)
			r.Post("/insert", h.Insert)
			r.Post("/insert-select", h.InsertSelect)
		})
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Post("/", h.CreateJob)
		r.Get("/{name}", h.GetJob)
		r.Delete("/{name}", h.DropJob)
	})
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, ErrorResponse{
		Code:      status,
		Message:   err.Error(),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

// decode reads a JSON body. Numbers are kept as json.Number so integer
// and decimal values survive until they are coerced to column types.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ErrValidation("query parameter %q must be a boolean", name)
	}
	return b, nil
}
