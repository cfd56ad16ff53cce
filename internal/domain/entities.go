package domain

import (
	"context"
	"time"
)

// Context is an alias so call sites in this codebase read domain.Context
// without importing the standard context package directly.
type Context = context.Context

// ProjectStatus enumerates the lifecycle state of a Project.
type ProjectStatus string

// Project statuses.
const (
	ProjectActive   ProjectStatus = "active"
	ProjectPaused   ProjectStatus = "paused"
	ProjectArchived ProjectStatus = "archived"
)

// Project is the container for schemes, cells, samples, and assignments.
type Project struct {
	ID     string
	Code   string
	Name   string
	Status ProjectStatus
}

// SchemeStatus enumerates the lifecycle state of a QuotaScheme.
type SchemeStatus string

// Scheme statuses.
const (
	SchemeDraft     SchemeStatus = "draft"
	SchemePublished SchemeStatus = "published"
	SchemeArchived  SchemeStatus = "archived"
)

// OverflowPolicy governs how a scheme's cells cap and rank candidates.
type OverflowPolicy string

// Overflow policies.
const (
	PolicyStrict   OverflowPolicy = "strict"
	PolicySoft     OverflowPolicy = "soft"
	PolicyWeighted OverflowPolicy = "weighted"
)

// Dimension is one ordered demographic axis of a scheme (e.g. gender,
// province). Values is optional — when set it enumerates the allowed
// scalar values for validation; an empty Values means any value is
// accepted.
type Dimension struct {
	Key    string
	Values []string
}

// QuotaScheme is a versioned plan of cells for a project.
//
// Invariants (see spec): (I1) (project, name, version) unique; (I2) at most
// one scheme per project has IsDefault && Status == published; (I3) cells
// may only be edited while Status == draft; (I4) PublishedAt is non-nil iff
// the scheme has transitioned through published at least once.
type QuotaScheme struct {
	ID             string
	ProjectID      string
	Name           string
	Version        int
	Status         SchemeStatus
	Dimensions     []Dimension
	OverflowPolicy OverflowPolicy
	Priority       int
	IsDefault      bool
	PublishedAt    *time.Time
	CreatedBy      string
}

// Selector is a structured predicate over sample attributes. Values may be
// a scalar (string) or a list of scalars (membership test).
type Selector map[string]any

// QuotaCell is one demographic bucket of a scheme with its own target and
// counters.
//
// Invariants: (I5) (scheme, selector) unique; (I6) achieved <= target under
// strict, achieved <= soft_cap under soft/weighted when soft_cap is set;
// (I7) in_progress == reserved always; (I8) counters never negative.
type QuotaCell struct {
	ID         string
	SchemeID   string
	Selector   Selector
	Label      string
	Target     uint
	SoftCap    *uint
	Weight     float64
	Achieved   uint
	InProgress uint
	Reserved   uint
	UpdatedAt  time.Time
}

// SampleStatus enumerates the lifecycle state of a SampleContact.
type SampleStatus string

// Sample statuses.
const (
	SampleAvailable SampleStatus = "available"
	SampleClaimed   SampleStatus = "claimed"
	SampleCompleted SampleStatus = "completed"
	SampleBlocked   SampleStatus = "blocked"
)

// SampleContact is a candidate contact materialised from the bank into a
// project's sample pool.
//
// Invariants: (I9) (project, quota_cell, phone_id) unique when phone_id is
// set; (I10) only available samples may transition to claimed; (I11)
// completed is terminal; (I12) AttemptCount is monotonically
// non-decreasing.
type SampleContact struct {
	ID            string
	ProjectID     string
	QuotaCellID   *string
	PhoneID       *string
	PersonID      *string
	PhoneNumber   string
	Gender        *string
	AgeBand       *string
	ProvinceCode  *string
	CityCode      *string
	Attributes    map[string]any
	Status        SampleStatus
	AttemptCount  uint
	LastAttemptAt *time.Time
	InterviewerID *string
	UsedAt        *time.Time
	IsActive      bool
	CreatedAt     time.Time
}

// DoNotContactEntry is a read-mostly exclusion predicate keyed by msisdn.
type DoNotContactEntry struct {
	Msisdn  string
	Reason  string
	AddedAt time.Time
}

// AssignmentStatus enumerates the lifecycle state of a DialerAssignment.
type AssignmentStatus string

// Assignment statuses.
const (
	AssignmentReserved  AssignmentStatus = "reserved"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentFailed    AssignmentStatus = "failed"
	AssignmentExpired   AssignmentStatus = "expired"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// IsTerminal reports whether the status is a sticky terminal state (I15).
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case AssignmentCompleted, AssignmentFailed, AssignmentExpired, AssignmentCancelled:
		return true
	default:
		return false
	}
}

// DialerAssignment is a short-lived hold on one sample by one interviewer.
//
// Invariants: (I13) at most one reserved-and-unexpired assignment per
// interviewer; (I14) at most one reserved assignment per sample; (I15)
// terminal statuses are sticky; (I16) ExpiresAt > ReservedAt.
type DialerAssignment struct {
	ID            string
	ProjectID     string
	SchemeID      string
	CellID        string
	InterviewerID string
	SampleID      string
	Status        AssignmentStatus
	ReservedAt    time.Time
	ExpiresAt     time.Time
	CompletedAt   *time.Time
	OutcomeCode   *string
	Meta          map[string]any
}

// InterviewStatus enumerates the lifecycle state of an Interview.
type InterviewStatus string

// Interview statuses.
const (
	InterviewNotStarted InterviewStatus = "not_started"
	InterviewInProgress InterviewStatus = "in_progress"
	InterviewCompleted  InterviewStatus = "completed"
)

// Interview is the one-to-one survey-session record attached to an
// assignment; its lifetime is a subset of the assignment's.
type Interview struct {
	ID           string
	AssignmentID string
	StartForm    *time.Time
	EndForm      *time.Time
	Status       InterviewStatus
	OutcomeCode  *string
	Meta         map[string]any
}
