package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/surveypulse/dialer-core/internal/domain"
)

const assignmentColumns = `id, project_id, scheme_id, cell_id, interviewer_id, sample_id, status,
	reserved_at, expires_at, completed_at, outcome_code, meta`

func (tx *pgTx) scanAssignment(row interface {
	Scan(dest ...any) error
}) (domain.DialerAssignment, error) {
	var a domain.DialerAssignment
	var meta []byte
	if err := row.Scan(&a.ID, &a.ProjectID, &a.SchemeID, &a.CellID, &a.InterviewerID, &a.SampleID, &a.Status,
		&a.ReservedAt, &a.ExpiresAt, &a.CompletedAt, &a.OutcomeCode, &meta); err != nil {
		return domain.DialerAssignment{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return domain.DialerAssignment{}, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	return a, nil
}

// LockActiveReservation locks and returns the interviewer's live reserved
// assignment, enforcing I13 at the point a new reservation is attempted.
func (tx *pgTx) LockActiveReservation(ctx domain.Context, interviewerID string, now time.Time) (*domain.DialerAssignment, error) {
	ctx, end := dbSpan(ctx, "assignments.LockActiveReservation", "dialer_assignments")
	defer end()

	q := `SELECT ` + assignmentColumns + ` FROM dialer_assignments
		WHERE interviewer_id = $1 AND status = $2
		FOR UPDATE`
	a, err := tx.scanAssignment(tx.tx.QueryRow(ctx, q, interviewerID, domain.AssignmentReserved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapErr("assignment.lock_active", err)
	}
	return &a, nil
}

func (tx *pgTx) CreateAssignment(ctx domain.Context, a domain.DialerAssignment) (domain.DialerAssignment, error) {
	ctx, end := dbSpan(ctx, "assignments.Create", "dialer_assignments")
	defer end()

	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return domain.DialerAssignment{}, fmt.Errorf("op=assignment.create.marshal_meta: %w", err)
	}
	q := `INSERT INTO dialer_assignments
		(id, project_id, scheme_id, cell_id, interviewer_id, sample_id, status, reserved_at, expires_at, completed_at, outcome_code, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = tx.tx.Exec(ctx, q, a.ID, a.ProjectID, a.SchemeID, a.CellID, a.InterviewerID, a.SampleID, a.Status,
		a.ReservedAt, a.ExpiresAt, a.CompletedAt, a.OutcomeCode, meta)
	if err != nil {
		return domain.DialerAssignment{}, mapErr("assignment.create", err)
	}
	return a, nil
}

func (tx *pgTx) GetAssignment(ctx domain.Context, id string) (domain.DialerAssignment, error) {
	ctx, end := dbSpan(ctx, "assignments.Get", "dialer_assignments")
	defer end()

	q := `SELECT ` + assignmentColumns + ` FROM dialer_assignments WHERE id = $1`
	a, err := tx.scanAssignment(tx.tx.QueryRow(ctx, q, id))
	if err != nil {
		return domain.DialerAssignment{}, mapErr("assignment.get", err)
	}
	return a, nil
}

func (tx *pgTx) GetAssignmentForUpdate(ctx domain.Context, id string) (domain.DialerAssignment, error) {
	ctx, end := dbSpan(ctx, "assignments.GetForUpdate", "dialer_assignments")
	defer end()

	q := `SELECT ` + assignmentColumns + ` FROM dialer_assignments WHERE id = $1 FOR UPDATE`
	a, err := tx.scanAssignment(tx.tx.QueryRow(ctx, q, id))
	if err != nil {
		return domain.DialerAssignment{}, mapErr("assignment.get_for_update", err)
	}
	return a, nil
}

func (tx *pgTx) UpdateAssignment(ctx domain.Context, a domain.DialerAssignment) error {
	ctx, end := dbSpan(ctx, "assignments.Update", "dialer_assignments")
	defer end()

	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return fmt.Errorf("op=assignment.update.marshal_meta: %w", err)
	}
	q := `UPDATE dialer_assignments SET status=$2, completed_at=$3, outcome_code=$4, meta=$5 WHERE id=$1`
	if _, err := tx.tx.Exec(ctx, q, a.ID, a.Status, a.CompletedAt, a.OutcomeCode, meta); err != nil {
		return mapErr("assignment.update", err)
	}
	return nil
}

// ListExpiredReserved returns reserved assignments whose TTL has elapsed,
// ordered by id so repeated sweeps make steady forward progress.
func (tx *pgTx) ListExpiredReserved(ctx domain.Context, projectID *string, now time.Time, limit int) ([]domain.DialerAssignment, error) {
	ctx, end := dbSpan(ctx, "assignments.ListExpiredReserved", "dialer_assignments")
	defer end()

	q := `SELECT ` + assignmentColumns + ` FROM dialer_assignments
		WHERE status = $1 AND expires_at <= $2 AND ($3::text IS NULL OR project_id = $3)
		ORDER BY id
		LIMIT $4`
	rows, err := tx.tx.Query(ctx, q, domain.AssignmentReserved, now, projectID, limit)
	if err != nil {
		return nil, mapErr("assignment.list_expired", err)
	}
	defer rows.Close()

	var out []domain.DialerAssignment
	for rows.Next() {
		a, err := tx.scanAssignment(rows)
		if err != nil {
			return nil, mapErr("assignment.list_expired.scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("assignment.list_expired.rows", err)
	}
	return out, nil
}
