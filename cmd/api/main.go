package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/lead-intake-gateway/internal/api/router"
	appconfig "github.com/wolfman30/lead-intake-gateway/internal/config"
	"github.com/wolfman30/lead-intake-gateway/internal/leads"
	"github.com/wolfman30/lead-intake-gateway/internal/observability/metrics"
	"github.com/wolfman30/lead-intake-gateway/internal/observability/tracing"
	"github.com/wolfman30/lead-intake-gateway/internal/turnstile"
	"github.com/wolfman30/lead-intake-gateway/internal/upstream"
	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

const serviceName = "lead-intake-gateway"

func main() {
	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}
	logger.Info("starting lead intake gateway",
		"env", cfg.Env,
		"port", cfg.Port,
		"allowed_origins", cfg.AllowedOrigins,
	)
	warnMisconfiguration(cfg, logger)

	shutdownTracing, err := tracing.Init(serviceName, cfg.OTelStdout, os.Stdout, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	metricsHandler, leadMetrics := setupMetrics(cfg.MetricsEnabled)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(cfg, logger, metricsHandler, leadMetrics),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	logger.Info("server stopped")
}

// newHandler wires the intake pipeline and returns the root HTTP handler.
func newHandler(cfg *appconfig.Config, logger *logging.Logger, metricsHandler http.Handler, leadMetrics *metrics.LeadMetrics) http.Handler {
	verifier := turnstile.NewClient(cfg.TurnstileSecretKey, cfg.TurnstileVerifyURL, cfg.TurnstileTimeout, logger)
	forwarder := upstream.NewForwarder(cfg, cfg.SiteURL, logger,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithObserver(leadMetrics),
	)
	leadsHandler := leads.NewHandler(leads.NewValidator(), verifier, forwarder, leadMetrics, logger)

	return router.New(&router.Config{
		Logger:         logger,
		LeadsHandler:   leadsHandler,
		AllowedOrigins: cfg.AllowedOrigins,
		MetricsHandler: metricsHandler,
		Metrics:        leadMetrics,
	})
}

// setupMetrics builds a private registry so tests and the process never
// collide on the global one. A disabled endpoint still records metrics.
func setupMetrics(enabled bool) (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	leadMetrics := metrics.NewLeadMetrics(reg)
	if !enabled {
		return nil, leadMetrics
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), leadMetrics
}

// warnMisconfiguration logs, at startup, the variables every request would
// otherwise fail on. Requests still answer with a generic 500.
func warnMisconfiguration(cfg *appconfig.Config, logger *logging.Logger) {
	if cfg.TurnstileSecretKey == "" {
		logger.Warn("bot verification is not configured", "missing", []string{"TURNSTILE_SECRET_KEY"})
	}
	for _, leadType := range leads.Types {
		if _, err := cfg.Destination(string(leadType)); err != nil {
			var misconfigured *appconfig.MisconfiguredError
			if errors.As(err, &misconfigured) {
				logger.Warn("upstream destination is not configured",
					"lead_type", leadType,
					"missing", misconfigured.Missing,
				)
			}
		}
	}
}
