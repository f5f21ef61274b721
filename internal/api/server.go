package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/rinkvault/scheduler/internal/config"
	"github.com/rinkvault/scheduler/internal/scheduler"
)

// NewRouter creates and configures the Chi router for the read-only operator
// surface. Every route here is GET-only by design: mutation (create, start,
// pause, resume, stop, delete) lives behind the out-of-scope lifecycle API
// (spec §1), never behind this router.
func NewRouter(manager *scheduler.Manager, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5))

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	h := NewHandler(manager)

	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/configs", func(r chi.Router) {
		r.Get("/", h.ListConfigs)
		r.Get("/{seasonID}/runs", func(w http.ResponseWriter, req *http.Request) {
			h.ListRuns(w, req, chi.URLParam(req, "seasonID"), req.URL.Query().Get("limit"))
		})
	})

	return r
}
