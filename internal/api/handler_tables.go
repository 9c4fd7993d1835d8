package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

// CreateTableRequest is the body of POST /v1/tables.
type CreateTableRequest struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Fields      []domain.ExternalField `json:"fields,omitempty"`
	Options     map[string]string      `json:"options,omitempty"`
	Replace     bool                   `json:"replace,omitempty"`
	IfNotExists bool                   `json:"if_not_exists,omitempty"`
}

// CreateTableResponse reports whether the definition was written.
type CreateTableResponse struct {
	Created bool       `json:"created"`
	Table   *TableInfo `json:"table,omitempty"`
}

// ColumnInfo describes one resolved column.
type ColumnInfo struct {
	Name  string     `json:"name"`
	Type  types.Type `json:"type"`
	Path  string     `json:"path"`
	IsKey bool       `json:"is_key,omitempty"`
}

// TableInfo describes a resolved table.
type TableInfo struct {
	Schema   string            `json:"schema"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Stream   bool              `json:"stream"`
	RowCount int64             `json:"row_count"`
	Columns  []ColumnInfo      `json:"columns"`
	Options  map[string]string `json:"options,omitempty"`
}

func tableToAPI(t *connector.Table) TableInfo {
	info := TableInfo{
		Schema:   t.SchemaName,
		Name:     t.Name,
		Type:     t.Connector().TypeName(),
		Stream:   t.Connector().IsStream(),
		RowCount: t.Statistics.RowCount,
		Columns:  make([]ColumnInfo, len(t.Fields)),
	}
	for i, f := range t.Fields {
		info.Columns[i] = ColumnInfo{Name: f.Name, Type: f.Type, Path: f.Path, IsKey: f.IsKey}
	}
	return info
}

// CreateTable handles POST /v1/tables.
func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	def := domain.ExternalTableDefinition{
		Name:          req.Name,
		ConnectorType: req.Type,
		Fields:        req.Fields,
		Options:       req.Options,
	}
	created, err := h.catalog.CreateTable(r.Context(), def, req.Replace, req.IfNotExists)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, CreateTableResponse{Created: false})
		return
	}
	table, err := h.catalog.GetTable(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info := tableToAPI(table)
	writeJSON(w, http.StatusCreated, CreateTableResponse{Created: true, Table: &info})
}

// ListTables handles GET /v1/tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.catalog.GetTables(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TableInfo, len(tables))
	for i, t := range tables {
		out[i] = tableToAPI(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

// GetTable handles GET /v1/tables/{name}.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	table, err := h.catalog.GetTable(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	def, err := h.catalog.GetDefinition(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info := tableToAPI(table)
	info.Options = def.Options
	writeJSON(w, http.StatusOK, info)
}

// DropTable handles DELETE /v1/tables/{name}?if_exists=true.
func (h *Handler) DropTable(w http.ResponseWriter, r *http.Request) {
	ifExists, err := boolParam(r, "if_exists")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.RemoveTable(r.Context(), chi.URLParam(r, "name"), ifExists); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDefinitions handles GET /v1/definitions: the stored definitions as
// written, including resolved fields.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.catalog.ListDefinitions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if defs == nil {
		defs = []domain.ExternalTableDefinition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"definitions": defs})
}
