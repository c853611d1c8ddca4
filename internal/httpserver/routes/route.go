package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/handlers"
)

func init() { Register("api", registerRoutes) }

func registerRoutes(r chi.Router, d deps.Deps) {
	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/authoring/element/instance/route/create", handlers.CreateRoute(d))
		r.Post("/authoring/element/instance/route/delete", handlers.DeleteRoute(d))

		r.Get("/instance/routing/id/{id}", handlers.RoutingTable(d))
		r.Post("/instance/routing/id/{id}", handlers.RoutingTable(d))
		r.Get("/instance/changes/id/{id}", handlers.Changes(d))
	})
}
