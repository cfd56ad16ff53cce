// Package reservation implements ReserveNext, the transactional core that
// picks a scheme, ranks its cells, claims a sample, and records an
// assignment (component C7).
package reservation

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/surveypulse/dialer-core/internal/assignment"
	"github.com/surveypulse/dialer-core/internal/domain"
	"github.com/surveypulse/dialer-core/internal/quota"
	"github.com/surveypulse/dialer-core/internal/scheme"
)

var tracer = otel.Tracer("github.com/surveypulse/dialer-core/internal/reservation")

// Engine runs ReserveNext and the TTL expiry path it shares with the
// sweeper (component C9).
type Engine struct {
	Store      domain.Store
	Clock      domain.Clock
	IDs        domain.IDGenerator
	Events     domain.EventPublisher
	Assignment *assignment.Service
	SweepSize  int // max expired rows swept per ReserveNext call; 0 means a sane default
}

// NewEngine constructs a reservation Engine.
func NewEngine(store domain.Store, clock domain.Clock, ids domain.IDGenerator, events domain.EventPublisher) *Engine {
	return &Engine{
		Store:      store,
		Clock:      clock,
		IDs:        ids,
		Events:     events,
		Assignment: assignment.NewService(clock, events),
		SweepSize:  500,
	}
}

// Request is the input to ReserveNext.
type Request struct {
	ProjectID     string
	InterviewerID string
	TTL           time.Duration
	SchemeID      *string // optional explicit scheme override
}

// ReserveNext runs the full algorithm from spec §4.6 as one logical
// transaction: sweep expired reservations, enforce actor uniqueness,
// select a scheme, rank its cells, claim a sample, and record the
// assignment.
func (e *Engine) ReserveNext(ctx domain.Context, req Request) (domain.DialerAssignment, error) {
	ctx, span := tracer.Start(ctx, "reservation.ReserveNext", trace.WithAttributes(
		attribute.String("project_id", req.ProjectID),
		attribute.String("interviewer_id", req.InterviewerID),
	))
	defer span.End()

	if req.ProjectID == "" || req.InterviewerID == "" {
		return domain.DialerAssignment{}, fmt.Errorf("op=reservation.reserve_next: %w: project and interviewer required", domain.ErrInvalidArgument)
	}
	if req.TTL <= 0 {
		return domain.DialerAssignment{}, fmt.Errorf("op=reservation.reserve_next: %w: ttl must be positive", domain.ErrInvalidArgument)
	}

	var out domain.DialerAssignment
	err := e.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		now := e.Clock.Now()

		// Step 1: TTL sweep.
		if _, err := e.Assignment.SweepExpired(ctx, tx, &req.ProjectID, now, e.sweepSize()); err != nil {
			return fmt.Errorf("op=reservation.reserve_next: %w", err)
		}

		// Step 2: actor uniqueness (I13).
		active, err := tx.LockActiveReservation(ctx, req.InterviewerID, now)
		if err != nil {
			return fmt.Errorf("op=reservation.reserve_next: %w", err)
		}
		if active != nil && active.Status == domain.AssignmentReserved && active.ExpiresAt.After(now) {
			return fmt.Errorf("op=reservation.reserve_next: %w", domain.ErrAlreadyReserved)
		}

		// Step 3: scheme selection.
		sch, err := scheme.PickActive(ctx, tx, req.ProjectID, req.SchemeID)
		if err != nil {
			return fmt.Errorf("op=reservation.reserve_next: %w", err)
		}

		// Step 4: cell ranking.
		cells, err := tx.LockCellsSkipLocked(ctx, sch.ID)
		if err != nil {
			return fmt.Errorf("op=reservation.reserve_next: %w", err)
		}
		candidates := rankCells(cells, sch.OverflowPolicy)
		if len(candidates) == 0 {
			return fmt.Errorf("op=reservation.reserve_next: %w", domain.ErrNoCapacity)
		}

		// Step 5: sample claim, trying cells in rank order.
		var claimed domain.SampleContact
		var chosenCell domain.QuotaCell
		found := false
		for _, cell := range candidates {
			sample, err := tx.ClaimNextAvailableSample(ctx, req.ProjectID, cell.ID, req.InterviewerID, now)
			if err != nil {
				if isNoSample(err) {
					continue
				}
				return fmt.Errorf("op=reservation.reserve_next: %w", err)
			}
			claimed = sample
			chosenCell = cell
			found = true
			break
		}
		if !found {
			return fmt.Errorf("op=reservation.reserve_next: %w", domain.ErrNoSample)
		}

		// Step 6: assignment creation.
		newAssignment := domain.DialerAssignment{
			ID:            e.IDs.NewID(),
			ProjectID:     req.ProjectID,
			SchemeID:      sch.ID,
			CellID:        chosenCell.ID,
			InterviewerID: req.InterviewerID,
			SampleID:      claimed.ID,
			Status:        domain.AssignmentReserved,
			ReservedAt:    now,
			ExpiresAt:     now.Add(req.TTL),
		}
		created, err := tx.CreateAssignment(ctx, newAssignment)
		if err != nil {
			return fmt.Errorf("op=reservation.reserve_next: %w", err)
		}

		// Step 7: counter update.
		if err := tx.ApplyCounterDelta(ctx, chosenCell.ID, domain.CellCounterDelta{InProgress: 1, Reserved: 1}); err != nil {
			return fmt.Errorf("op=reservation.reserve_next: %w", err)
		}

		out = created
		return nil
	})
	if err != nil {
		return domain.DialerAssignment{}, err
	}

	e.Events.Publish(ctx, domain.LifecycleEvent{
		AssignmentID:  out.ID,
		ProjectID:     out.ProjectID,
		CellID:        out.CellID,
		InterviewerID: out.InterviewerID,
		Status:        out.Status,
		At:            out.ReservedAt,
	})
	slog.Info("reservation created",
		slog.String("assignment_id", out.ID),
		slog.String("project_id", out.ProjectID),
		slog.String("cell_id", out.CellID),
		slog.String("interviewer_id", out.InterviewerID),
	)
	return out, nil
}

func (e *Engine) sweepSize() int {
	if e.SweepSize <= 0 {
		return 500
	}
	return e.SweepSize
}

// rankCells keeps only cells with remaining capacity and sorts them by the
// quota package's RankKey, ascending, with id as the final tie-break.
func rankCells(cells []domain.QuotaCell, policy domain.OverflowPolicy) []domain.QuotaCell {
	var out []domain.QuotaCell
	for _, c := range cells {
		if quota.HasCapacity(c, policy) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := quota.RankKey(out[i], policy), quota.RankKey(out[j], policy)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func isNoSample(err error) bool {
	return errors.Is(err, domain.ErrNoSample)
}
