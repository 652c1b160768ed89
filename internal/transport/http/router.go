// Package http assembles the public router. Verification is open to any
// scanner; issuing batches and moving custody require the admin token.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	batchhandler "veritag/internal/batch/handler"
	"veritag/internal/platform/middleware"
	shipmenthandler "veritag/internal/shipment/handler"
	verifyhandler "veritag/internal/verify/handler"
	"veritag/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	AdminToken string
	Batches    *batchhandler.Handler
	Shipments  *shipmenthandler.Handler
	Verify     *verifyhandler.Handler
	// HealthChecks probe backing stores by name. Any failure turns /healthz
	// into a 503 naming the failing component.
	HealthChecks map[string]func(ctx context.Context) error
}

// NewRouter builds the chi router with middleware, the public verification
// surface, and the token-guarded custody surface.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		for name, check := range deps.HealthChecks {
			if err := check(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable,
					map[string]string{"status": "unhealthy", "component": name})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public scanner surface.
	r.Group(func(r chi.Router) {
		deps.Verify.Register(r)
	})

	// Custody surface: issuance and state transitions.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(deps.AdminToken))
		deps.Batches.Register(r)
		deps.Shipments.Register(r)
	})

	return r
}
