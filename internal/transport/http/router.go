// Package httptransport assembles the public HTTP surface. It stays thin:
// routing and liveness only, with all business logic behind the per-module
// handlers.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimdesk/internal/transport/http/shared"
)

// Registrar is anything that can attach its routes to a chi router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports the readiness of one backing dependency.
type HealthChecker interface {
	Health() error
}

// NewRouter mounts the module handlers plus the operational endpoints.
// The health and metrics endpoints bypass the handlers' middleware chains;
// probes and scrapers do not authenticate.
func NewRouter(handlers []Registrar, checks map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(results) > 0 {
			body["checks"] = results
		}
		shared.WriteJSON(w, status, body)
	}
}
