package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/query"
)

// handleListData returns a page of imported rows within the caller's
// department scope.
func (s *Server) handleListData(w http.ResponseWriter, r *http.Request) {
	actor, _ := core.ActorFromContext(r.Context())
	req := query.PageRequest{
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "pageSize", query.DefaultPageSize),
	}

	page, err := s.service.ListData(r.Context(), chi.URLParam(r, "table"), actor, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

type healthResponse struct {
	Status  string             `json:"status"`
	Imports core.LimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Imports: s.service.LimiterStatus()}
	status := http.StatusOK
	if err := s.service.Health(ctx); err != nil {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
