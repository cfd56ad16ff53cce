// Package assignment implements the terminal lifecycle transitions on a
// DialerAssignment — complete, fail, cancel, expire — and the Interview
// progress tracking coupled to it (component C8).
package assignment

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// Service applies assignment-lifecycle transitions within a transaction
// already opened by a caller (ReserveNext's sweep step, the TTL sweeper,
// or an outer-shell handler running its own RunInTx).
type Service struct {
	Clock  domain.Clock
	Events domain.EventPublisher
}

// NewService constructs an assignment Service.
func NewService(clock domain.Clock, events domain.EventPublisher) *Service {
	return &Service{Clock: clock, Events: events}
}

// transition is the shared machinery behind Complete/Fail/Cancel/Expire:
// look up the assignment under its row lock, no-op if already terminal
// (TerminalTransition is idempotent success per spec §4.7/§7), else apply
// the status-specific counter delta, sample effect, and interview effect.
func (s *Service) transition(ctx domain.Context, tx domain.Tx, assignmentID string, newStatus domain.AssignmentStatus, outcome *string, meta map[string]any) (domain.DialerAssignment, error) {
	a, err := tx.GetAssignmentForUpdate(ctx, assignmentID)
	if err != nil {
		return domain.DialerAssignment{}, fmt.Errorf("op=assignment.transition: %w", err)
	}
	if a.Status.IsTerminal() {
		return a, nil
	}

	now := s.Clock.Now()
	delta := domain.CellCounterDelta{InProgress: -1, Reserved: -1}

	switch newStatus {
	case domain.AssignmentCompleted:
		delta.Achieved = 1
		if err := tx.ApplyCounterDelta(ctx, a.CellID, delta); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.complete: %w", err)
		}
		if err := tx.ReleaseSample(ctx, a.SampleID, domain.SampleCompleted); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.complete: %w", err)
		}
		if err := tx.MarkCompleted(ctx, a.SampleID); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.complete: %w", err)
		}
		if _, err := tx.UpsertInterview(ctx, domain.Interview{
			AssignmentID: a.ID,
			StartForm:    &a.ReservedAt,
			EndForm:      &now,
			Status:       domain.InterviewCompleted,
			OutcomeCode:  outcome,
			Meta:         meta,
		}); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.complete: %w", err)
		}

	case domain.AssignmentFailed, domain.AssignmentCancelled, domain.AssignmentExpired:
		if err := tx.ApplyCounterDelta(ctx, a.CellID, delta); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.transition: %w", err)
		}
		if err := tx.ReleaseSample(ctx, a.SampleID, domain.SampleAvailable); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.transition: %w", err)
		}
		if err := tx.DeleteInterviewByAssignment(ctx, a.ID); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("op=assignment.transition: %w", err)
		}

	default:
		return domain.DialerAssignment{}, fmt.Errorf("op=assignment.transition: %w: unsupported status %q", domain.ErrInvalidArgument, newStatus)
	}

	a.Status = newStatus
	a.CompletedAt = &now
	a.OutcomeCode = outcome
	if len(meta) > 0 {
		if a.Meta == nil {
			a.Meta = map[string]any{}
		}
		maps.Copy(a.Meta, meta)
	}
	if err := tx.UpdateAssignment(ctx, a); err != nil {
		return domain.DialerAssignment{}, fmt.Errorf("op=assignment.transition: %w", err)
	}

	s.Events.Publish(ctx, domain.LifecycleEvent{
		AssignmentID:  a.ID,
		ProjectID:     a.ProjectID,
		CellID:        a.CellID,
		InterviewerID: a.InterviewerID,
		Status:        a.Status,
		At:            now,
	})
	return a, nil
}

// Complete marks the assignment completed: achieved +1, sample completed,
// interview upserted as completed.
func (s *Service) Complete(ctx domain.Context, tx domain.Tx, assignmentID string, outcome *string, meta map[string]any) (domain.DialerAssignment, error) {
	return s.transition(ctx, tx, assignmentID, domain.AssignmentCompleted, outcome, meta)
}

// defaultFailOutcomeCode is applied when a Fail caller supplies no
// outcome_code of its own.
const defaultFailOutcomeCode = "FAIL"

// Fail marks the assignment failed: sample released back to available with
// no interviewer, interview deleted.
func (s *Service) Fail(ctx domain.Context, tx domain.Tx, assignmentID string, outcome *string, meta map[string]any) (domain.DialerAssignment, error) {
	if outcome == nil {
		defaultOutcome := defaultFailOutcomeCode
		outcome = &defaultOutcome
	}
	return s.transition(ctx, tx, assignmentID, domain.AssignmentFailed, outcome, meta)
}

// Cancel marks the assignment cancelled: sample released back to
// available, interview deleted.
func (s *Service) Cancel(ctx domain.Context, tx domain.Tx, assignmentID string, meta map[string]any) (domain.DialerAssignment, error) {
	return s.transition(ctx, tx, assignmentID, domain.AssignmentCancelled, nil, meta)
}

// Expire marks the assignment expired, using the same counter-decrement
// path as the other terminal transitions so (I6)-(I8) hold. Shared by
// ReserveNext's pre-sweep step and the background TTL sweeper (C9).
func (s *Service) Expire(ctx domain.Context, tx domain.Tx, assignmentID string) (domain.DialerAssignment, error) {
	return s.transition(ctx, tx, assignmentID, domain.AssignmentExpired, nil, nil)
}

// SweepExpired expires every reserved assignment in projectID (or across
// all projects when nil) whose TTL has elapsed as of now, logging and
// continuing past per-row errors so one bad row never stops the sweep
// (spec §4.8/§7).
func (s *Service) SweepExpired(ctx domain.Context, tx domain.Tx, projectID *string, now time.Time, limit int) (int, error) {
	expired, err := tx.ListExpiredReserved(ctx, projectID, now, limit)
	if err != nil {
		return 0, fmt.Errorf("op=assignment.sweep_expired: %w", err)
	}
	swept := 0
	for _, a := range expired {
		if _, err := s.Expire(ctx, tx, a.ID); err != nil {
			slog.Error("ttl sweep failed to expire assignment",
				slog.String("assignment_id", a.ID), slog.Any("error", err))
			continue
		}
		swept++
	}
	return swept, nil
}
