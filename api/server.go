/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the referral-entry frontend

ROUTE GROUPS:
  /api/referral/validate, /api/referral/use   Public
  /api/referral/generate, /api/referral/stats,
  /api/referral/{code}/deactivate             Bearer-token protected

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. The JWT
// secret protects the authenticated group; allowedOrigins feeds CORS.
func NewRouter(h *Handler, jwtSecret []byte, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api/referral", func(r chi.Router) {
		// Public routes: code entry during registration
		r.Post("/validate", h.Validate)
		r.Post("/use", h.Use)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(jwtSecret))
			r.Post("/generate", h.Generate)
			r.Get("/stats", h.Stats)
			r.Get("/stats/{code}", h.CodeStats)
			r.Post("/{code}/deactivate", h.Deactivate)
		})
	})

	return r
}
