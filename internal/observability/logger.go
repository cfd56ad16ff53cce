// Package observability configures structured logging, OpenTelemetry
// tracing, and Prometheus metrics for the dialer core.
package observability

import (
	"log/slog"
	"os"

	"github.com/surveypulse/dialer-core/internal/config"
)

// SetupLogger configures a JSON slog logger tagged with service and
// environment fields, verbose in dev and info-level otherwise.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
	return logger
}
