package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursetrak/coursetrak-backend/pkg/config"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
)

const healthCheckTimeout = 5 * time.Second

// Pinger is one named dependency the health endpoint verifies.
type Pinger struct {
	Name string
	Ping func(ctx context.Context) error
}

// RouterParams wires the operational HTTP surface.
type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Pingers []Pinger
}

// NewRouter returns the handler serving /healthz and /metrics for the
// worker processes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", healthzHandler(params))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func healthzHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{}
		for _, pinger := range params.Pingers {
			if err := pinger.Ping(ctx); err != nil {
				checks[pinger.Name] = "unavailable"
				status = http.StatusServiceUnavailable
				if params.Logger != nil {
					params.Logger.Error(ctx, pinger.Name+" health check failed", err)
				}
				continue
			}
			checks[pinger.Name] = "ok"
		}

		body := map[string]any{
			"status": "ok",
			"checks": checks,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if params.Config != nil {
			w.Header().Set("X-CourseTrak-Env", params.Config.App.Env)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
