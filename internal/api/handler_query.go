package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"duck-connect/internal/service/query"
)

// InsertResponse reports how many rows were written.
type InsertResponse struct {
	RowsInserted int `json:"rows_inserted"`
}

// InsertSelectResponse reports how many rows were copied.
type InsertSelectResponse struct {
	RowsInserted int64 `json:"rows_inserted"`
}

// Select handles POST /v1/tables/{name}/select.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req query.SelectRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Table = chi.URLParam(r, "name")
	result, err := h.query.Select(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Insert handles POST /v1/tables/{name}/insert.
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	var req query.InsertRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Table = chi.URLParam(r, "name")
	n, err := h.query.Insert(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InsertResponse{RowsInserted: n})
}

// InsertSelect handles POST /v1/tables/{name}/insert-select.
func (h *Handler) InsertSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source  string   `json:"source"`
		Columns []string `json:"columns,omitempty"`
		Where   string   `json:"where,omitempty"`
	}
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.query.InsertSelect(r.Context(), query.InsertSelectRequest{
		Table:   chi.URLParam(r, "name"),
		Source:  body.Source,
		Columns: body.Columns,
		Where:   body.Where,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InsertSelectResponse{RowsInserted: n})
}
