package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
)

type componentStatus struct {
	OK              bool             `json:"ok"`
	InstancesLoaded *int             `json:"instances_loaded,omitempty"`
	LastReload      string           `json:"last_reload,omitempty"`
	File            string           `json:"file,omitempty"`
	Records         map[string]int64 `json:"records,omitempty"`
	Error           string           `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instances := d.Directory.Count()
		lastReload := d.Directory.GetLastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"catalog": {
				OK:              instances > 0,
				InstancesLoaded: &instances,
				LastReload:      lastReloadStr,
				File:            d.CatalogFile,
			},
			"redis": checkRedis(r.Context(), d),
		}

		writeJSON(w, d, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

// determineMode is critical without a catalog or without Redis: routes
// can be neither resolved nor stored.
func determineMode(components map[string]componentStatus) string {
	for _, c := range components {
		if !c.OK {
			return "critical"
		}
	}
	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{Error: "store not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{Error: err.Error()}
	}
	counts, err := d.Store.Counts(ctx)
	if err != nil {
		return componentStatus{OK: true, Error: err.Error()}
	}
	return componentStatus{OK: true, Records: counts}
}
