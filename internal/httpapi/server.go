// Package httpapi exposes the dialer core's reservation, assignment,
// scheme, and pool operations over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/surveypulse/dialer-core/internal/assignment"
	"github.com/surveypulse/dialer-core/internal/dnc"
	"github.com/surveypulse/dialer-core/internal/domain"
	"github.com/surveypulse/dialer-core/internal/pool"
	"github.com/surveypulse/dialer-core/internal/ratelimit"
	"github.com/surveypulse/dialer-core/internal/reservation"
	"github.com/surveypulse/dialer-core/internal/scheme"
)

// HealthCheck probes a single dependency; a non-nil error marks it down.
type HealthCheck func(ctx context.Context) error

// Server holds every service the HTTP surface calls into.
type Server struct {
	Logger      *slog.Logger
	Reservation *reservation.Engine
	Assignment  *assignment.Service
	Scheme      *scheme.Service
	Pool        *pool.Builder
	Limiter     ratelimit.Limiter
	Store       domain.Store
	DNC         *dnc.Cache

	DBCheck HealthCheck

	RequestTimeout time.Duration
}

// NewServer constructs a Server. dncCache may be nil; the DNC-check
// endpoint then reports 404 for every lookup instead of panicking.
func NewServer(logger *slog.Logger, res *reservation.Engine, asg *assignment.Service, sch *scheme.Service, pb *pool.Builder, lim ratelimit.Limiter, store domain.Store, dncCache *dnc.Cache, dbCheck HealthCheck) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Logger:         logger,
		Reservation:    res,
		Assignment:     asg,
		Scheme:         sch,
		Pool:           pb,
		Limiter:        lim,
		Store:          store,
		DNC:            dncCache,
		DBCheck:        dbCheck,
		RequestTimeout: 10 * time.Second,
	}
}

// HealthzHandler is the liveness probe: if the process can answer HTTP at
// all, it's live.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyzHandler probes every configured dependency and reports 503 if any
// is down.
func (s *Server) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make([]check, 0, 1)
	allOK := true
	if s.DBCheck != nil {
		if err := s.DBCheck(ctx); err != nil {
			checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			allOK = false
		} else {
			checks = append(checks, check{Name: "db", OK: true})
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"checks": checks})
}
