package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/web/views"
)

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListTables())
}

func (s *Server) handleTableColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.service.Columns(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cols)
}

// handleAnalysis stores an uploaded spreadsheet and returns its headers
// next to the target table's editable columns. HTMX clients receive the
// mapping form instead.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("tableName")

	part, err := s.filePart(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer part.Close()

	preview, err := s.service.Analyze(r.Context(), table, part, part.FileName())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := views.MappingForm(table, preview).Render(r.Context(), w); err != nil {
			s.respondError(w, r, err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, preview)
}

// handleImport executes a confirmed mapping against a stored file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	actor, _ := core.ActorFromContext(r.Context())

	req, err := s.decodeImportRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.Import(r.Context(), req, actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := views.ImportResult(result).Render(r.Context(), w); err != nil {
			s.respondError(w, r, err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) decodeImportRequest(r *http.Request) (core.ImportRequest, error) {
	var req core.ImportRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return s.importRequestFromForm(r)
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return req, nil
}

// importRequestFromForm reads the fields posted by views.MappingForm. Browsers
// always submit the default input, so an empty one means no default unless
// the column's empty-default box is ticked.
func (s *Server) importRequestFromForm(r *http.Request) (core.ImportRequest, error) {
	if err := r.ParseForm(); err != nil {
		return core.ImportRequest{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	req := core.ImportRequest{
		Table:   r.PostForm.Get(views.FieldTable),
		FileURL: r.PostForm.Get(views.FieldFile),
	}

	cols, err := s.service.Columns(r.Context(), req.Table)
	if err != nil {
		return req, err
	}
	for _, col := range cols {
		m := core.FieldMapping{
			Column:   core.ColumnDescriptor{Name: col.Name},
			Selected: r.PostForm.Get(views.SelectedField(col.Name)) == "true",
		}
		if src := r.PostForm.Get(views.ExcelField(col.Name)); src != "" {
			m.SourceColumn = &src
		}
		if def := r.PostForm.Get(views.DefaultField(col.Name)); def != "" {
			m.DefaultValue = &def
		} else if r.PostForm.Get(views.EmptyDefaultField(col.Name)) == "true" {
			m.DefaultValue = &def
		}
		req.Fields = append(req.Fields, m)
	}
	return req, nil
}
