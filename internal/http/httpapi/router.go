package httpapi

import (
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter assembles the API surface. Country lookup may be nil when no
// GeoIP database is configured.
func NewRouter(app *handlers.App, cfg *infra.Config, lookup middleware.CountryLookup) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(strings.Split(cfg.AllowedOrigins, ",")))
	r.Use(middleware.I18N("en", lookup))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/metrics/summary", app.MetricsSummary)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/v1/stories/{story_id}", func(r chi.Router) {
			r.Post("/generate", app.GenerateStory)
			r.Post("/chapters/generate", app.GenerateChapter)
			r.Post("/brainstorm", app.Brainstorm)
			r.Post("/nextlines", app.NextLines)
			r.Get("/jobs", app.StoryJobs)
		})

		r.Get("/v1/jobs/{job_id}", app.JobStatus)
		r.Get("/v1/usage", app.UsageStatus)
	})

	return r
}
