package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// readinessCheck reports whether a dependency can serve traffic.
type readinessCheck func(ctx context.Context) error

// newOpsRouter serves liveness, readiness and prometheus metrics.
func newOpsRouter(checks map[string]readinessCheck, workers func() []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		failures := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				failures[name] = err.Error()
			}
		}

		body := map[string]interface{}{
			"status":  "ready",
			"workers": workers(),
			"time":    time.Now().Format(time.RFC3339),
		}
		if len(failures) > 0 {
			body["status"] = "not ready"
			body["failures"] = failures
		}
		writeJSON(w, status, body)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
