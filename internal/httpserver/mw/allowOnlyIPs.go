package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/utils"
)

// AllowOnlyCIDRS allows only the listed IPs and networks. An empty list
// does not filter.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("AllowOnlyCIDRS: empty matcher, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	for _, bad := range m.Rejected() {
		log.Warn("AllowOnlyCIDRS: ignoring unparsable entry", logger.String("entry", bad))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("AllowOnlyCIDRS: rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
