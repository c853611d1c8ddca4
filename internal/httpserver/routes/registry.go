package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var registry []entry

// Register a named registrar with optional middlewares applied to every
// route it adds.
func Register(name string, reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{name: name, reg: reg, mws: mws})
}

// RegisterAll mounts every registered group. Called once per router.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		target := r
		if len(e.mws) > 0 {
			target = r.With(e.mws...)
		}
		e.reg(target, d)
		d.Logger.Debug("routes registered", logger.String("group", e.name))
	}
}
