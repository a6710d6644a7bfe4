package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpmiddleware "github.com/wolfman30/lead-intake-gateway/internal/http/middleware"
	"github.com/wolfman30/lead-intake-gateway/internal/http/response"
	"github.com/wolfman30/lead-intake-gateway/internal/leads"
	"github.com/wolfman30/lead-intake-gateway/internal/observability/metrics"
	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	LeadsHandler   *leads.Handler
	AllowedOrigins []string
	MetricsHandler http.Handler
	Metrics        *metrics.LeadMetrics
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(logger))

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.OriginGuard(cfg.AllowedOrigins, logger, cfg.Metrics))

		api.Post("/lead", cfg.LeadsHandler.SubmitLead)
		api.Options("/lead", leads.Preflight)

		// Legacy endpoint kept for older site builds.
		api.Post("/feedback", cfg.LeadsHandler.SubmitFeedback)
		api.Options("/feedback", leads.Preflight)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "Not found")
	})

	return otelhttp.NewHandler(r, "lead-intake-gateway",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
