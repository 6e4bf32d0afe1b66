package routes

import (
	"net/http"

	"github.com/zatekoja/facilitydirectory/internal/api/handlers"
	"github.com/zatekoja/facilitydirectory/internal/api/middleware"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

// Options configures the middleware around the routes
type Options struct {
	AdminToken     string
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	facilityHandler *handlers.FacilityHandler
	adminHandler    *handlers.AdminHandler
	healthHandler   *handlers.HealthHandler

	opts Options
}

// NewRouter creates a new router
func NewRouter(
	facilityHandler *handlers.FacilityHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		facilityHandler: facilityHandler,
		adminHandler:    adminHandler,
		healthHandler:   healthHandler,
		opts:            opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)
	r.mux.HandleFunc("GET /ready", r.healthHandler.Ready)

	// Public facility endpoints

	r.mux.HandleFunc("GET /v0/facilities", r.facilityHandler.SearchV0)
	r.mux.HandleFunc("GET /v0/facilities/all", r.facilityHandler.AllFacilities)
	r.mux.HandleFunc("GET /v0/facilities/{id}", r.facilityHandler.GetFacilityV0)

	r.mux.HandleFunc("GET /v1/facilities", r.facilityHandler.SearchV1)
	r.mux.HandleFunc("GET /v1/facilities/{id}", r.facilityHandler.GetFacilityV1)
	r.mux.HandleFunc("GET /v1/nearby", r.facilityHandler.Nearby)

	// Admin endpoints

	admin := middleware.AdminAuth(r.opts.AdminToken)
	r.mux.Handle("POST /v0/facilities/{id}/cms-overlay", admin(http.HandlerFunc(r.adminHandler.PutOverlay)))
	r.mux.Handle("GET /v0/facilities/{id}/cms-overlay", admin(http.HandlerFunc(r.adminHandler.GetOverlay)))
	r.mux.Handle("DELETE /v0/facilities/{id}/cms-overlay", admin(http.HandlerFunc(r.adminHandler.DeleteOverlay)))

	r.mux.Handle("GET /internal/management/reload", admin(http.HandlerFunc(r.adminHandler.Reload)))
	r.mux.Handle("POST /internal/management/reload", admin(http.HandlerFunc(r.adminHandler.Reload)))
	r.mux.Handle("GET /internal/management/facilities/{id}", admin(http.HandlerFunc(r.adminHandler.GetStoredFacility)))
	r.mux.Handle("DELETE /internal/management/facilities/{id}", admin(http.HandlerFunc(r.adminHandler.DeleteFacility)))

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so preflights and errors carry its headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.ObservabilityMiddleware(r.opts.Metrics)(handler)
	handler = middleware.CORSMiddleware(r.opts.AllowedOrigins)(handler)

	return handler
}
