package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

// Reload triggers a manual catalog reload
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual catalog reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d, http.StatusAccepted, map[string]string{"status": "reload triggered"})
		default:
			d.Logger.Warn("catalog reload already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d, http.StatusTooManyRequests, map[string]string{"status": "reload already pending"})
		}
	}
}
