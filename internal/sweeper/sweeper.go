// Package sweeper runs the background TTL expiry job that reverses
// reservations whose deadline has elapsed (component C9).
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/surveypulse/dialer-core/internal/assignment"
	"github.com/surveypulse/dialer-core/internal/domain"
)

const defaultBatchLimit = 500

// Service periodically expires overdue reserved assignments.
type Service struct {
	Store      domain.Store
	Clock      domain.Clock
	Assignment *assignment.Service
	BatchLimit int
}

// NewService constructs a sweeper Service.
func NewService(store domain.Store, clock domain.Clock, events domain.EventPublisher) *Service {
	return &Service{
		Store:      store,
		Clock:      clock,
		Assignment: assignment.NewService(clock, events),
		BatchLimit: defaultBatchLimit,
	}
}

// SweepOnce expires every overdue reserved assignment across all projects,
// in one transaction per spec §4.8, and returns how many it expired.
func (s *Service) SweepOnce(ctx context.Context) (int, error) {
	limit := s.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	var swept int
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		n, err := s.Assignment.SweepExpired(ctx, tx, nil, s.Clock.Now(), limit)
		if err != nil {
			return fmt.Errorf("op=sweeper.sweep_once: %w", err)
		}
		swept = n
		return nil
	})
	return swept, err
}

// RunPeriodic sweeps immediately, then again on every tick, until ctx is
// cancelled. A failed sweep is logged and does not stop the loop.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if n, err := s.SweepOnce(ctx); err != nil {
		slog.Error("initial ttl sweep failed", slog.Any("error", err))
	} else if n > 0 {
		slog.Info("ttl sweep expired reservations", slog.Int("count", n))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("ttl sweeper stopping")
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				slog.Error("ttl sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				slog.Info("ttl sweep expired reservations", slog.Int("count", n))
			}
		}
	}
}
