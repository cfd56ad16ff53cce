package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

type ctxKey int

const loggerKey ctxKey = iota

// RequestID stamps every request with a ULID, echoes it in the
// X-Request-Id response header, and attaches a request-scoped logger to
// the context so handlers and downstream code log with the same id.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = ulid.Make().String()
			}
			w.Header().Set("X-Request-Id", id)
			logger := base.With(slog.String("request_id", id))
			ctx := context.WithValue(r.Context(), loggerKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFrom returns the request-scoped logger stashed by RequestID, or
// slog.Default if none was attached.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Recoverer converts a panicking handler into a 500 instead of taking
// down the server, logging the panic value.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFrom(r.Context()).Error("panic recovered", slog.Any("panic", rec))
				writeError(w, r, ErrPayload{status: http.StatusInternalServerError, code: "internal_error", message: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets a conservative baseline of response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// AccessLog logs one line per request with the route pattern, status,
// and latency, at a level that rises with the status code.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		logger := LoggerFrom(r.Context())
		pattern := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		attrs := []any{
			slog.String("method", r.Method),
			slog.String("route", pattern),
			slog.Int("status", ww.status),
			slog.Duration("duration", time.Since(start)),
		}
		switch {
		case ww.status >= 500:
			logger.Error("request completed", attrs...)
		case ww.status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Timeout wraps the handler chain so a stuck request is cut off instead of
// holding a connection (and, transitively, a DB row lock) forever.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":{"code":"timeout","message":"request timed out"}}`)
	}
}
