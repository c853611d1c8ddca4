package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz is ready once a catalog is loaded and Redis answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Directory.Count() == 0 {
			writeJSON(w, d, http.StatusServiceUnavailable, readyzResponse{Reason: "catalog not loaded"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			writeJSON(w, d, http.StatusServiceUnavailable, readyzResponse{Reason: "redis unavailable"})
			return
		}

		writeJSON(w, d, http.StatusOK, readyzResponse{Ready: true})
	}
}
