package httpapi_test

import (
	"fmt"
	"time"

	"github.com/surveypulse/dialer-core/internal/domain"
)

type fakeTx struct {
	schemes       map[string]domain.QuotaScheme
	cells         map[string]domain.QuotaCell
	samples       []domain.SampleContact
	assignments   map[string]domain.DialerAssignment
	activeByActor map[string]*domain.DialerAssignment
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		schemes:       map[string]domain.QuotaScheme{},
		cells:         map[string]domain.QuotaCell{},
		assignments:   map[string]domain.DialerAssignment{},
		activeByActor: map[string]*domain.DialerAssignment{},
	}
}

func (tx *fakeTx) GetScheme(_ domain.Context, id string) (domain.QuotaScheme, error) {
	sc, ok := tx.schemes[id]
	if !ok {
		return domain.QuotaScheme{}, fmt.Errorf("op=fake.get_scheme: %w", domain.ErrNotFound)
	}
	return sc, nil
}

func (tx *fakeTx) ListSchemesByProject(_ domain.Context, projectID string) ([]domain.QuotaScheme, error) {
	var out []domain.QuotaScheme
	for _, sc := range tx.schemes {
		if sc.ProjectID == projectID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (tx *fakeTx) LockCellsSkipLocked(_ domain.Context, schemeID string) ([]domain.QuotaCell, error) {
	return tx.ListCellsForScheme(nil, schemeID)
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

func (tx *fakeTx) ClaimNextAvailableSample(_ domain.Context, _ string, cellID string, interviewerID string, now time.Time) (domain.SampleContact, error) {
	for i, s := range tx.samples {
		if s.QuotaCellID != nil && *s.QuotaCellID == cellID && s.Status == domain.SampleAvailable {
			s.Status = domain.SampleClaimed
			s.InterviewerID = &interviewerID
			s.UsedAt = &now
			s.AttemptCount++
			tx.samples[i] = s
			return s, nil
		}
	}
	return domain.SampleContact{}, fmt.Errorf("op=fake.claim: %w", domain.ErrNoSample)
}

func (tx *fakeTx) LockActiveReservation(_ domain.Context, interviewerID string, now time.Time) (*domain.DialerAssignment, error) {
	a, ok := tx.activeByActor[interviewerID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (tx *fakeTx) CreateAssignment(_ domain.Context, a domain.DialerAssignment) (domain.DialerAssignment, error) {
	tx.assignments[a.ID] = a
	if a.Status == domain.AssignmentReserved {
		cp := a
		tx.activeByActor[a.InterviewerID] = &cp
	}
	return a, nil
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

func (tx *fakeTx) GetAssignmentForUpdate(_ domain.Context, id string) (domain.DialerAssignment, error) {
	a, ok := tx.assignments[id]
	if !ok {
		return domain.DialerAssignment{}, fmt.Errorf("op=fake.get_assignment: %w", domain.ErrNotFound)
	}
	return a, nil
}

func (tx *fakeTx) UpdateAssignment(_ domain.Context, a domain.DialerAssignment) error {
	tx.assignments[a.ID] = a
	return nil
}

func (tx *fakeTx) GetProject(domain.Context, string) (domain.Project, error) {
	return domain.Project{}, nil
}
func (tx *fakeTx) CreateScheme(_ domain.Context, s domain.QuotaScheme) (domain.QuotaScheme, error) {
	tx.schemes[s.ID] = s
	return s, nil
}
func (tx *fakeTx) UpdateScheme(_ domain.Context, s domain.QuotaScheme) error {
	tx.schemes[s.ID] = s
	return nil
}
func (tx *fakeTx) GetSchemeForUpdate(ctx domain.Context, id string) (domain.QuotaScheme, error) {
	return tx.GetScheme(ctx, id)
}
func (tx *fakeTx) NextVersion(domain.Context, string, string) (int, error) { return 1, nil }
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
func (tx *fakeTx) ListCellsForScheme(_ domain.Context, schemeID string) ([]domain.QuotaCell, error) {
	var out []domain.QuotaCell
	for _, c := range tx.cells {
		if c.SchemeID == schemeID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (tx *fakeTx) BulkInsertIgnoreConflict(domain.Context, []domain.SampleContact) (int, error) {
	return 0, nil
}
func (tx *fakeTx) ReleaseSample(_ domain.Context, sampleID string, status domain.SampleStatus) error {
	for i, s := range tx.samples {
		if s.ID == sampleID {
			s.Status = status
			tx.samples[i] = s
			return nil
		}
	}
	return fmt.Errorf("op=fake.release_sample: %w", domain.ErrNotFound)
}
func (tx *fakeTx) MarkCompleted(domain.Context, string) error { return nil }
func (tx *fakeTx) GetSample(_ domain.Context, id string) (domain.SampleContact, error) {
	for _, s := range tx.samples {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.SampleContact{}, fmt.Errorf("op=fake.get_sample: %w", domain.ErrNotFound)
}
func (tx *fakeTx) CountPooled(domain.Context, string, string) (int, error) { return 0, nil }
func (tx *fakeTx) GetAssignment(_ domain.Context, id string) (domain.DialerAssignment, error) {
	return tx.GetAssignmentForUpdate(nil, id)
}
func (tx *fakeTx) UpsertInterview(_ domain.Context, iv domain.Interview) (domain.Interview, error) {
	return iv, nil
}
func (tx *fakeTx) DeleteInterviewByAssignment(domain.Context, string) error { return nil }
func (tx *fakeTx) GetInterviewByAssignment(domain.Context, string) (domain.Interview, error) {
	return domain.Interview{}, fmt.Errorf("op=fake: %w", domain.ErrNotFound)
}
func (tx *fakeTx) IsBlocked(domain.Context, string) (bool, error) { return false, nil }

type fakeStore struct{ tx *fakeTx }

func (s *fakeStore) RunInTx(ctx domain.Context, fn domain.TxFunc) error { return fn(ctx, s.tx) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("id%d", g.n)
}

type noopEvents struct{}

func (noopEvents) Publish(domain.Context, domain.LifecycleEvent) {}

type noopBank struct{}

func (noopBank) FindCandidates(domain.Context, string, domain.SelectorPredicate, int, time.Time) ([]domain.BankCandidate, error) {
	return nil, nil
}
