package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"session-service/internal/auth"
)

// HealthCheck reports per-component health; a non-empty map means
// degraded.
type HealthCheck func(ctx context.Context) map[string]error

// NewRouter creates and configures the Chi router with all middleware
// and routes. healthCheck may be nil.
func NewRouter(sessionHandler *SessionHandler, verifier auth.Verifier, allowedOrigins []string, healthCheck HealthCheck, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health probe, no auth
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Component health, no auth
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		type healthResponse struct {
			Status     string            `json:"status"`
			Components map[string]string `json:"components,omitempty"`
		}

		resp := healthResponse{Status: "ok"}
		if healthCheck != nil {
			if failures := healthCheck(r.Context()); len(failures) > 0 {
				resp.Status = "degraded"
				resp.Components = make(map[string]string, len(failures))
				for name, err := range failures {
					resp.Components[name] = err.Error()
				}
				respondWithJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		respondWithJSON(w, http.StatusOK, resp)
	})

	// API routes, bearer auth required
	router.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(verifier, logger))
		sessionHandler.RegisterRoutes(r)
	})

	// 404 handler
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	// Method not allowed handler
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}
