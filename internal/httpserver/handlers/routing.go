package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
)

// RoutingTable handles GET and POST /api/v2/instance/routing/id/{id}.
func RoutingTable(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := d.Routes.RoutingTable(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeFailure(w, r, d, err)
			return
		}
		writeOK(w, d, "routing", table)
	}
}

// Changes handles GET /api/v2/instance/changes/id/{id}.
func Changes(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := d.Directory.GetInstance(id); err != nil {
			writeFailure(w, r, d, err)
			return
		}
		tracking, err := d.Changes.Get(r.Context(), id)
		if err != nil {
			writeFailure(w, r, d, err)
			return
		}
		writeOK(w, d, "changes", tracking.Markers)
	}
}
