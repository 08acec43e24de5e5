package handler

import (
	"net/http"

	"github.com/scorekeep/arena/internal/infra"
)

// HealthHandler reports liveness. It touches no dependency.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// ReadyHandler pings every named dependency and reports 503 if any fails.
func ReadyHandler(deps map[string]infra.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		ready := true
		for name, p := range deps {
			if err := infra.HealthCheck(r.Context(), p); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			RespondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
			return
		}
		RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ready",
			"checks": checks,
		})
	}
}
