package assignment_test

import (
	"fmt"
	"time"

	"github.com/surveypulse/dialer-core/internal/domain"
)

type fakeTx struct {
	assignments map[string]domain.DialerAssignment
	cells       map[string]domain.QuotaCell
	samples     map[string]domain.SampleContact
	interviews  map[string]domain.Interview // keyed by assignment id
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		assignments: map[string]domain.DialerAssignment{},
		cells:       map[string]domain.QuotaCell{},
		samples:     map[string]domain.SampleContact{},
		interviews:  map[string]domain.Interview{},
	}
}

func (tx *fakeTx) GetAssignment(_ domain.Context, id string) (domain.DialerAssignment, error) {
	a, ok := tx.assignments[id]
	if !ok {
		return domain.DialerAssignment{}, fmt.Errorf("op=fake.get_assignment: %w", domain.ErrNotFound)
	}
	return a, nil
}

func (tx *fakeTx) GetAssignmentForUpdate(ctx domain.Context, id string) (domain.DialerAssignment, error) {
	return tx.GetAssignment(ctx, id)
}

func (tx *fakeTx) CreateAssignment(_ domain.Context, a domain.DialerAssignment) (domain.DialerAssignment, error) {
	tx.assignments[a.ID] = a
	return a, nil
}

func (tx *fakeTx) UpdateAssignment(_ domain.Context, a domain.DialerAssignment) error {
	tx.assignments[a.ID] = a
	return nil
}

func (tx *fakeTx) ListExpiredReserved(_ domain.Context, projectID *string, now time.Time, limit int) ([]domain.DialerAssignment, error) {
	var out []domain.DialerAssignment
	for _, a := range tx.assignments {
		if a.Status != domain.AssignmentReserved || a.ExpiresAt.After(now) {
			continue
		}
		if projectID != nil && a.ProjectID != *projectID {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (tx *fakeTx) LockActiveReservation(_ domain.Context, interviewerID string, now time.Time) (*domain.DialerAssignment, error) {
	for _, a := range tx.assignments {
		if a.InterviewerID == interviewerID && a.Status == domain.AssignmentReserved {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (tx *fakeTx) ApplyCounterDelta(_ domain.Context, cellID string, delta domain.CellCounterDelta) error {
	c, ok := tx.cells[cellID]
	if !ok {
		return fmt.Errorf("op=fake.apply_delta: %w", domain.ErrNotFound)
	}
	c.Achieved = addClamp(c.Achieved, delta.Achieved)
	c.InProgress = addClamp(c.InProgress, delta.InProgress)
	c.Reserved = addClamp(c.Reserved, delta.Reserved)
	tx.cells[cellID] = c
	return nil
}

func addClamp(u uint, delta int) uint {
	v := int(u) + delta
	if v < 0 {
		return 0
	}
	return uint(v)
}

func (tx *fakeTx) ReleaseSample(_ domain.Context, sampleID string, status domain.SampleStatus) error {
	s, ok := tx.samples[sampleID]
	if !ok {
		return fmt.Errorf("op=fake.release_sample: %w", domain.ErrNotFound)
	}
	s.Status = status
	if status == domain.SampleAvailable {
		s.InterviewerID = nil
		s.UsedAt = nil
	}
	tx.samples[sampleID] = s
	return nil
}

func (tx *fakeTx) MarkCompleted(_ domain.Context, sampleID string) error {
	s, ok := tx.samples[sampleID]
	if !ok {
		return fmt.Errorf("op=fake.mark_completed: %w", domain.ErrNotFound)
	}
	s.Status = domain.SampleCompleted
	tx.samples[sampleID] = s
	return nil
}

func (tx *fakeTx) GetSample(_ domain.Context, id string) (domain.SampleContact, error) {
	s, ok := tx.samples[id]
	if !ok {
		return domain.SampleContact{}, fmt.Errorf("op=fake.get_sample: %w", domain.ErrNotFound)
	}
	return s, nil
}

func (tx *fakeTx) UpsertInterview(_ domain.Context, iv domain.Interview) (domain.Interview, error) {
	tx.interviews[iv.AssignmentID] = iv
	return iv, nil
}

func (tx *fakeTx) DeleteInterviewByAssignment(_ domain.Context, assignmentID string) error {
	delete(tx.interviews, assignmentID)
	return nil
}

func (tx *fakeTx) GetInterviewByAssignment(_ domain.Context, assignmentID string) (domain.Interview, error) {
	iv, ok := tx.interviews[assignmentID]
	if !ok {
		return domain.Interview{}, fmt.Errorf("op=fake.get_interview: %w", domain.ErrNotFound)
	}
	return iv, nil
}

// The remaining Tx methods are unused by this package's tests.
func (tx *fakeTx) GetProject(domain.Context, string) (domain.Project, error) {
	return domain.Project{}, nil
}
func (tx *fakeTx) CreateScheme(domain.Context, domain.QuotaScheme) (domain.QuotaScheme, error) {
	return domain.QuotaScheme{}, nil
}
func (tx *fakeTx) UpdateScheme(domain.Context, domain.QuotaScheme) error { return nil }
func (tx *fakeTx) GetScheme(domain.Context, string) (domain.QuotaScheme, error) {
	return domain.QuotaScheme{}, nil
}
func (tx *fakeTx) GetSchemeForUpdate(domain.Context, string) (domain.QuotaScheme, error) {
	return domain.QuotaScheme{}, nil
}
func (tx *fakeTx) ListSchemesByProject(domain.Context, string) ([]domain.QuotaScheme, error) {
	return nil, nil
}
func (tx *fakeTx) NextVersion(domain.Context, string, string) (int, error) { return 0, nil }
func (tx *fakeTx) ClearOtherDefaults(domain.Context, string, string) error { return nil }
func (tx *fakeTx) UpsertCell(_ domain.Context, c domain.QuotaCell) (domain.QuotaCell, error) {
	tx.cells[c.ID] = c
	return c, nil
}
func (tx *fakeTx) GetCell(_ domain.Context, id string) (domain.QuotaCell, error) {
	c, ok := tx.cells[id]
	if !ok {
		return domain.QuotaCell{}, fmt.Errorf("op=fake.get_cell: %w", domain.ErrNotFound)
	}
	return c, nil
}
func (tx *fakeTx) ListCellsForScheme(domain.Context, string) ([]domain.QuotaCell, error) {
	return nil, nil
}
func (tx *fakeTx) LockCellsSkipLocked(domain.Context, string) ([]domain.QuotaCell, error) {
	return nil, nil
}
func (tx *fakeTx) BulkInsertIgnoreConflict(domain.Context, []domain.SampleContact) (int, error) {
	return 0, nil
}
func (tx *fakeTx) ClaimNextAvailableSample(domain.Context, string, string, string, time.Time) (domain.SampleContact, error) {
	return domain.SampleContact{}, fmt.Errorf("op=fake: %w", domain.ErrNoSample)
}
func (tx *fakeTx) CountPooled(domain.Context, string, string) (int, error) { return 0, nil }
func (tx *fakeTx) IsBlocked(domain.Context, string) (bool, error)          { return false, nil }

type noopEvents struct{ events []domain.LifecycleEvent }

func (n *noopEvents) Publish(_ domain.Context, evt domain.LifecycleEvent) {
	n.events = append(n.events, evt)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
