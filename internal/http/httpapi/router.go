package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sdengine/internal/http/handlers"
	"sdengine/internal/middleware"
)

type Options struct {
	RateLimitPerMin int
	AllowedOrigins  []string
}

func NewRouter(app *handlers.App, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/catalog", func(r chi.Router) {
		r.Get("/models", app.CatalogModels)
		r.Get("/adapters", app.CatalogAdapters)
	})

	r.Post("/v1/generate", app.Generate)

	r.Route("/v1/jobs/{job_id}", func(r chi.Router) {
		r.Get("/", app.JobStatus)
		r.Get("/result", app.JobResult)
		r.Get("/archive", app.JobArchive)
		r.Post("/cancel", app.JobCancel)
	})

	r.Route("/v1/sessions/{user_id}", func(r chi.Router) {
		r.Get("/", app.SessionGet)
		r.Post("/adapters", app.SessionAddAdapter)
		r.Delete("/adapters", app.SessionClearAdapters)
		r.Delete("/adapters/{filename}", app.SessionRemoveAdapter)
		r.Put("/aux", app.SessionSetAux)
		r.Patch("/defaults", app.SessionPatchDefaults)
	})

	r.Route("/v1/presets/{user_id}", func(r chi.Router) {
		r.Get("/", app.PresetList)
		r.Post("/", app.PresetSave)
		r.Get("/{preset_id}", app.PresetGet)
		r.Delete("/{preset_id}", app.PresetDelete)
	})

	return r
}
