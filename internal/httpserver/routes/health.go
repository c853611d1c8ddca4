package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/mw"
)

func init() { Register("health", registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	admin.Get("/readyz", handlers.Readyz(d))
	admin.Get("/infra", handlers.Infra(d))
	admin.Handle("/metrics", d.Metrics.Handler())
}
