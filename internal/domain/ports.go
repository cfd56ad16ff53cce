package domain

import "time"

// Clock abstracts wall-clock time so reservation TTLs and lifecycle
// timestamps are deterministic under test (component C1).
//
//go:generate mockery --name=Clock --with-expecter --filename=clock_mock.go
type Clock interface {
	Now() time.Time
}

// IDGenerator mints unique, ordering-friendly identifiers for rows that
// participate in id-ascending tie-breaks (component C1).
//
//go:generate mockery --name=IDGenerator --with-expecter --filename=idgenerator_mock.go
type IDGenerator interface {
	NewID() string
}

// CellCounterDelta is applied atomically in-store; it must never be
// expressed as an application-side read-modify-write (see spec §4.1).
type CellCounterDelta struct {
	Achieved   int
	InProgress int
	Reserved   int
}

// ProjectRepository reads project records.
//
//go:generate mockery --name=ProjectRepository --with-expecter --filename=project_repository_mock.go
type ProjectRepository interface {
	GetProject(ctx Context, id string) (Project, error)
}

// SchemeRepository manages QuotaScheme rows within a transaction.
//
//go:generate mockery --name=SchemeRepository --with-expecter --filename=scheme_repository_mock.go
type SchemeRepository interface {
	CreateScheme(ctx Context, s QuotaScheme) (QuotaScheme, error)
	UpdateScheme(ctx Context, s QuotaScheme) error
	GetScheme(ctx Context, id string) (QuotaScheme, error)
	GetSchemeForUpdate(ctx Context, id string) (QuotaScheme, error)
	ListSchemesByProject(ctx Context, projectID string) ([]QuotaScheme, error)
	NextVersion(ctx Context, projectID, name string) (int, error)
	ClearOtherDefaults(ctx Context, projectID, exceptSchemeID string) error
}

// CellRepository manages QuotaCell rows and their counters within a
// transaction.
//
//go:generate mockery --name=CellRepository --with-expecter --filename=cell_repository_mock.go
type CellRepository interface {
	UpsertCell(ctx Context, c QuotaCell) (QuotaCell, error)
	GetCell(ctx Context, id string) (QuotaCell, error)
	ListCellsForScheme(ctx Context, schemeID string) ([]QuotaCell, error)
	// LockCellsSkipLocked returns the scheme's cells currently unlocked by
	// any concurrent transaction, each now held under a row lock for the
	// duration of the caller's transaction.
	LockCellsSkipLocked(ctx Context, schemeID string) ([]QuotaCell, error)
	// ApplyCounterDelta performs an atomic in-place update of achieved,
	// in_progress, and reserved. It must be called while the cell's row
	// lock is held.
	ApplyCounterDelta(ctx Context, cellID string, delta CellCounterDelta) error
}

// SampleRepository manages SampleContact rows within a transaction.
//
//go:generate mockery --name=SampleRepository --with-expecter --filename=sample_repository_mock.go
type SampleRepository interface {
	// BulkInsertIgnoreConflict inserts rows, skipping any that would
	// violate (project, quota_cell, phone_id) uniqueness. It returns the
	// number of rows attempted, per spec §4.5/§9(c).
	BulkInsertIgnoreConflict(ctx Context, samples []SampleContact) (attempted int, err error)
	// ClaimNextAvailableSample selects and claims one available, active,
	// non-DNC sample for the given cell, ordered by last_attempt_at asc
	// nulls first, id asc, skipping rows locked by a concurrent claim. It
	// returns domain.ErrNoSample wrapped when none is available.
	ClaimNextAvailableSample(ctx Context, projectID, cellID, interviewerID string, now time.Time) (SampleContact, error)
	// ReleaseSample sets the sample's status. Releasing to SampleAvailable
	// also clears interviewer and used_at, per the fail/cancel/expire sample
	// effect in spec §4.7.
	ReleaseSample(ctx Context, sampleID string, status SampleStatus) error
	MarkCompleted(ctx Context, sampleID string) error
	GetSample(ctx Context, id string) (SampleContact, error)
	CountPooled(ctx Context, projectID, cellID string) (int, error)
}

// AssignmentRepository manages DialerAssignment rows within a transaction.
//
//go:generate mockery --name=AssignmentRepository --with-expecter --filename=assignment_repository_mock.go
type AssignmentRepository interface {
	// LockActiveReservation locks and returns the interviewer's live
	// reserved assignment, if any (I13 enforcement point).
	LockActiveReservation(ctx Context, interviewerID string, now time.Time) (*DialerAssignment, error)
	CreateAssignment(ctx Context, a DialerAssignment) (DialerAssignment, error)
	GetAssignment(ctx Context, id string) (DialerAssignment, error)
	GetAssignmentForUpdate(ctx Context, id string) (DialerAssignment, error)
	UpdateAssignment(ctx Context, a DialerAssignment) error
	// ListExpiredReserved returns reserved assignments whose TTL has
	// elapsed, ordered by id, optionally scoped to one project.
	ListExpiredReserved(ctx Context, projectID *string, now time.Time, limit int) ([]DialerAssignment, error)
}

// InterviewRepository manages Interview rows within a transaction.
//
//go:generate mockery --name=InterviewRepository --with-expecter --filename=interview_repository_mock.go
type InterviewRepository interface {
	UpsertInterview(ctx Context, iv Interview) (Interview, error)
	DeleteInterviewByAssignment(ctx Context, assignmentID string) error
	GetInterviewByAssignment(ctx Context, assignmentID string) (Interview, error)
}

// DNCChecker reports whether a msisdn is on the do-not-contact list.
//
//go:generate mockery --name=DNCChecker --with-expecter --filename=dnc_checker_mock.go
type DNCChecker interface {
	IsBlocked(ctx Context, msisdn string) (bool, error)
}

// Tx bundles every repository port reachable inside one store
// transaction (component C2).
type Tx interface {
	ProjectRepository
	SchemeRepository
	CellRepository
	SampleRepository
	AssignmentRepository
	InterviewRepository
	DNCChecker
}

// TxFunc is the unit of work run by Store.RunInTx.
type TxFunc func(ctx Context, tx Tx) error

// Store provides transactional access to the relational backend, with
// pessimistic row locks and skip-locked selection available through Tx
// (component C2).
//
//go:generate mockery --name=Store --with-expecter --filename=store_mock.go
type Store interface {
	RunInTx(ctx Context, fn TxFunc) error
}

// AgeRange is an inclusive [Min, Max] age bound, e.g. parsed from an
// age-band string such as "18-24" or "65+".
type AgeRange struct {
	Min int
	Max int
}

// SelectorPredicate is the normalised form of a QuotaCell's Selector,
// ready to drive a BankGateway query (component C3).
type SelectorPredicate struct {
	Genders       []string
	ProvinceCodes []string
	CityCodes     []string
	AgeRanges     []AgeRange
	AgeBands      []string // original band strings, for relabeling results
}

// BankCandidate is one row returned by the bank gateway.
type BankCandidate struct {
	PhoneID      string
	Msisdn       string
	PersonID     string
	Gender       string
	DOB          time.Time
	ProvinceCode string
	CityCode     string
}

// BankGateway queries the external, read-only bank schema for candidate
// contacts (component C3).
//
//go:generate mockery --name=BankGateway --with-expecter --filename=bank_gateway_mock.go
type BankGateway interface {
	// FindCandidates returns up to limit candidates matching pred, ordered
	// by phone_id ascending, excluding DNC msisdns and phones already
	// present in the project's sample pool. today must be computed once
	// per call by the caller so age arithmetic is stable.
	FindCandidates(ctx Context, projectID string, pred SelectorPredicate, limit int, today time.Time) ([]BankCandidate, error)
}

// LifecycleEvent is published whenever an assignment transitions state.
type LifecycleEvent struct {
	AssignmentID  string
	ProjectID     string
	CellID        string
	InterviewerID string
	Status        AssignmentStatus
	At            time.Time
}

// EventPublisher delivers lifecycle events to downstream, out-of-scope
// consumers (e.g. collection-performance analytics). Delivery is
// best-effort and must never block or fail a lifecycle transition.
//
//go:generate mockery --name=EventPublisher --with-expecter --filename=event_publisher_mock.go
type EventPublisher interface {
	Publish(ctx Context, evt LifecycleEvent)
}
