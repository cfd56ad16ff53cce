package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/surveypulse/dialer-core/internal/observability"
)

// ParseOrigins splits a comma-separated CORS allow-list into a slice,
// trimming whitespace and dropping empty entries.
func ParseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildRouter wires the middleware stack and every route the dialer core
// exposes.
func (s *Server) BuildRouter(corsOrigins []string, rateLimitPerMin int) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID(s.Logger))
	r.Use(Recoverer)
	r.Use(SecurityHeaders)
	r.Use(AccessLog)
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(Timeout(s.RequestTimeout))

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.HealthzHandler)
	r.Get("/readyz", s.ReadyzHandler)
	r.Handle("/metrics", observability.MetricsHandler())

	r.Route("/v1", func(v1 chi.Router) {
		if rateLimitPerMin > 0 {
			v1.Use(httprate.LimitByIP(rateLimitPerMin, time.Minute))
		}

		v1.Post("/reservations", s.ReserveNextHandler)

		v1.Post("/assignments/{id}/complete", s.CompleteAssignmentHandler)
		v1.Post("/assignments/{id}/fail", s.FailAssignmentHandler)
		v1.Post("/assignments/{id}/cancel", s.CancelAssignmentHandler)

		v1.Post("/schemes", s.CreateSchemeHandler)
		v1.Post("/schemes/{id}/publish", s.PublishSchemeHandler)
		v1.Post("/schemes/{id}/archive", s.ArchiveSchemeHandler)
		v1.Post("/schemes/{id}/cells", s.BulkUpsertCellsHandler)
		v1.Get("/schemes/{id}/stats", s.SchemeStatsHandler)

		v1.Post("/cells/{id}/pool", s.BuildPoolHandler)

		v1.Get("/dnc-check/{msisdn}", s.DNCCheckHandler)
	})

	return otelhttp.NewHandler(r, "dialer-core")
}
