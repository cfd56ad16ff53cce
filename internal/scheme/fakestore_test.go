package scheme_test

import (
	"fmt"
	"sort"
	"time"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// fakeStore is an in-memory domain.Store/domain.Tx used across this
// package's tests; it is intentionally minimal and not safe for
// concurrent use (the concurrency guarantees are exercised against the
// real Postgres store in internal/store/postgres).
type fakeStore struct {
	projects map[string]domain.Project
	schemes  map[string]domain.QuotaScheme
	cells    map[string]domain.QuotaCell
	versions map[string]int // key: projectID|name
	clock    fakeClock
}

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: map[string]domain.Project{},
		schemes:  map[string]domain.QuotaScheme{},
		cells:    map[string]domain.QuotaCell{},
		versions: map[string]int{},
		clock:    fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func (s *fakeStore) RunInTx(ctx domain.Context, fn domain.TxFunc) error {
	return fn(ctx, s)
}

func (s *fakeStore) GetProject(_ domain.Context, id string) (domain.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("op=fake.get_project: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (s *fakeStore) CreateScheme(_ domain.Context, sc domain.QuotaScheme) (domain.QuotaScheme, error) {
	s.schemes[sc.ID] = sc
	return sc, nil
}

func (s *fakeStore) UpdateScheme(_ domain.Context, sc domain.QuotaScheme) error {
	s.schemes[sc.ID] = sc
	return nil
}

func (s *fakeStore) GetScheme(_ domain.Context, id string) (domain.QuotaScheme, error) {
	sc, ok := s.schemes[id]
	if !ok {
		return domain.QuotaScheme{}, fmt.Errorf("op=fake.get_scheme: %w", domain.ErrNotFound)
	}
	return sc, nil
}

func (s *fakeStore) GetSchemeForUpdate(ctx domain.Context, id string) (domain.QuotaScheme, error) {
	return s.GetScheme(ctx, id)
}

func (s *fakeStore) ListSchemesByProject(_ domain.Context, projectID string) ([]domain.QuotaScheme, error) {
	var out []domain.QuotaScheme
	for _, sc := range s.schemes {
		if sc.ProjectID == projectID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) NextVersion(_ domain.Context, projectID, name string) (int, error) {
	key := projectID + "|" + name
	s.versions[key]++
	return s.versions[key], nil
}

func (s *fakeStore) ClearOtherDefaults(_ domain.Context, projectID, exceptSchemeID string) error {
	for id, sc := range s.schemes {
		if sc.ProjectID == projectID && id != exceptSchemeID {
			sc.IsDefault = false
			s.schemes[id] = sc
		}
	}
	return nil
}

func (s *fakeStore) UpsertCell(_ domain.Context, c domain.QuotaCell) (domain.QuotaCell, error) {
	s.cells[c.ID] = c
	return c, nil
}

func (s *fakeStore) GetCell(_ domain.Context, id string) (domain.QuotaCell, error) {
	c, ok := s.cells[id]
	if !ok {
		return domain.QuotaCell{}, fmt.Errorf("op=fake.get_cell: %w", domain.ErrNotFound)
	}
	return c, nil
}

func (s *fakeStore) ListCellsForScheme(_ domain.Context, schemeID string) ([]domain.QuotaCell, error) {
	var out []domain.QuotaCell
	for _, c := range s.cells {
		if c.SchemeID == schemeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) LockCellsSkipLocked(ctx domain.Context, schemeID string) ([]domain.QuotaCell, error) {
	return s.ListCellsForScheme(ctx, schemeID)
}

func (s *fakeStore) ApplyCounterDelta(_ domain.Context, cellID string, delta domain.CellCounterDelta) error {
	c, ok := s.cells[cellID]
	if !ok {
		return fmt.Errorf("op=fake.apply_delta: %w", domain.ErrNotFound)
	}
	c.Achieved = addClamp(c.Achieved, delta.Achieved)
	c.InProgress = addClamp(c.InProgress, delta.InProgress)
	c.Reserved = addClamp(c.Reserved, delta.Reserved)
	s.cells[cellID] = c
	return nil
}

func addClamp(u uint, delta int) uint {
	v := int(u) + delta
	if v < 0 {
		return 0
	}
	return uint(v)
}

// The remaining Tx methods (samples, assignments, interviews, DNC) are not
// exercised by the scheme package's tests.
func (s *fakeStore) BulkInsertIgnoreConflict(domain.Context, []domain.SampleContact) (int, error) {
	return 0, nil
}
func (s *fakeStore) ClaimNextAvailableSample(domain.Context, string, string, string, time.Time) (domain.SampleContact, error) {
	return domain.SampleContact{}, fmt.Errorf("op=fake: %w", domain.ErrNoSample)
}
func (s *fakeStore) ReleaseSample(domain.Context, string, domain.SampleStatus) error { return nil }
func (s *fakeStore) MarkCompleted(domain.Context, string) error                      { return nil }
func (s *fakeStore) GetSample(domain.Context, string) (domain.SampleContact, error) {
	return domain.SampleContact{}, fmt.Errorf("op=fake: %w", domain.ErrNotFound)
}
func (s *fakeStore) CountPooled(domain.Context, string, string) (int, error) { return 0, nil }

func (s *fakeStore) LockActiveReservation(domain.Context, string, time.Time) (*domain.DialerAssignment, error) {
	return nil, nil
}
func (s *fakeStore) CreateAssignment(_ domain.Context, a domain.DialerAssignment) (domain.DialerAssignment, error) {
	return a, nil
}
func (s *fakeStore) GetAssignment(domain.Context, string) (domain.DialerAssignment, error) {
	return domain.DialerAssignment{}, fmt.Errorf("op=fake: %w", domain.ErrNotFound)
}
func (s *fakeStore) GetAssignmentForUpdate(domain.Context, string) (domain.DialerAssignment, error) {
	return domain.DialerAssignment{}, fmt.Errorf("op=fake: %w", domain.ErrNotFound)
}
func (s *fakeStore) UpdateAssignment(domain.Context, domain.DialerAssignment) error { return nil }
func (s *fakeStore) ListExpiredReserved(domain.Context, *string, time.Time, int) ([]domain.DialerAssignment, error) {
	return nil, nil
}
func (s *fakeStore) UpsertInterview(_ domain.Context, iv domain.Interview) (domain.Interview, error) {
	return iv, nil
}
func (s *fakeStore) DeleteInterviewByAssignment(domain.Context, string) error { return nil }
func (s *fakeStore) GetInterviewByAssignment(domain.Context, string) (domain.Interview, error) {
	return domain.Interview{}, fmt.Errorf("op=fake: %w", domain.ErrNotFound)
}
func (s *fakeStore) IsBlocked(domain.Context, string) (bool, error) { return false, nil }
