package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vidstats/internal/middleware"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSAllowedOrigins []string
	Limiter            *middleware.Limiter // nil disables rate limiting
	AccessLog          bool
}

// NewRouter mounts h behind request ids, access logs, panic recovery and
// CORS. The rate limiter applies to /v1 only so health checks are never throttled.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Route("/v1", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Handler)
		}
		r.Post("/answer", h.Answer)
		r.Get("/schema", h.Schema)
		r.Get("/answers", h.History)
		r.Get("/answers/stats", h.HistoryStats)
	})
	return r
}
