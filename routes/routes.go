package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/ugc-pageguard/app"
	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Sign-out, posted by the identity block of every decorated page
	r.With(deps.SessionMiddleware.BindSession).
		Post(deps.Config.Enforcement.SignOutPath, deps.AuthHandler.HandleLogout)

	// Session gate for page scripts
	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(deps.SessionMiddleware.BindSession)

		r.Get("/", deps.SessionHandler.HandleCurrentUser)
		r.Get("/admin", deps.SessionHandler.HandleIsAdministrator)
		r.Post("/authorize", deps.SessionHandler.HandleAuthorize)
	})

	// Everything else is a page or asset under the pages directory. Only
	// GET and HEAD reach the file server so no method skips the guard.
	pages := deps.PageGuard.Handler(http.FileServer(http.Dir(deps.Config.Pages.Dir)))
	r.Method(http.MethodGet, "/*", pages)
	r.Method(http.MethodHead, "/*", pages)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
