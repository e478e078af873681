package routes

import (
	"net/http"

	"github.com/zatekoja/trialmatch/internal/api/handlers"
	"github.com/zatekoja/trialmatch/internal/api/middleware"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	screeningHandler   *handlers.ScreeningHandler
	eligibilityHandler *handlers.EligibilityHandler
	trialHandler       *handlers.TrialHandler
	geocodeHandler     *handlers.GeocodeHandler
	healthHandler      *handlers.HealthHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	screeningHandler *handlers.ScreeningHandler,
	eligibilityHandler *handlers.EligibilityHandler,
	trialHandler *handlers.TrialHandler,
	geocodeHandler *handlers.GeocodeHandler,
	healthHandler *handlers.HealthHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		screeningHandler:   screeningHandler,
		eligibilityHandler: eligibilityHandler,
		trialHandler:       trialHandler,
		geocodeHandler:     geocodeHandler,
		healthHandler:      healthHandler,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Screening endpoints
	r.mux.HandleFunc("POST /api/screen", r.screeningHandler.Screen)
	r.mux.HandleFunc("POST /api/screen/export", r.screeningHandler.Export)
	r.mux.HandleFunc("POST /api/entities", r.screeningHandler.ExtractEntities)

	// Eligibility endpoints
	r.mux.HandleFunc("POST /api/eligibility/parse", r.eligibilityHandler.Parse)
	r.mux.HandleFunc("POST /api/eligibility/evaluate", r.eligibilityHandler.Evaluate)

	// Trial catalog endpoints
	r.mux.HandleFunc("GET /api/trials/stats", r.trialHandler.Stats)
	r.mux.HandleFunc("POST /api/trials/refresh", r.trialHandler.Refresh)
	r.mux.HandleFunc("GET /api/trials/{id}", r.trialHandler.GetTrial)
	r.mux.HandleFunc("POST /api/trials/{id}/eligibility", r.eligibilityHandler.EvaluateTrial)

	r.mux.HandleFunc("GET /api/geocode", r.geocodeHandler.Geocode)

	// Apply middleware in reverse order (last middleware wraps first).
	// Logging runs before observability so spans carry the request id.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)
	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
