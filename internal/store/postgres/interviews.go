package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/surveypulse/dialer-core/internal/domain"
)

const interviewColumns = `id, assignment_id, start_form, end_form, status, outcome_code, meta`

func (tx *pgTx) scanInterview(row interface {
	Scan(dest ...any) error
}) (domain.Interview, error) {
	var iv domain.Interview
	var meta []byte
	if err := row.Scan(&iv.ID, &iv.AssignmentID, &iv.StartForm, &iv.EndForm, &iv.Status, &iv.OutcomeCode, &meta); err != nil {
		return domain.Interview{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &iv.Meta); err != nil {
			return domain.Interview{}, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	return iv, nil
}

// UpsertInterview inserts or replaces the one interview row belonging to an
// assignment (assignment_id is unique).
func (tx *pgTx) UpsertInterview(ctx domain.Context, iv domain.Interview) (domain.Interview, error) {
	ctx, end := dbSpan(ctx, "interviews.Upsert", "interviews")
	defer end()

	if iv.ID == "" {
		iv.ID = iv.AssignmentID
	}
	meta, err := json.Marshal(iv.Meta)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("op=interview.upsert.marshal_meta: %w", err)
	}
	q := `INSERT INTO interviews (id, assignment_id, start_form, end_form, status, outcome_code, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (assignment_id) DO UPDATE SET
			start_form=EXCLUDED.start_form, end_form=EXCLUDED.end_form,
			status=EXCLUDED.status, outcome_code=EXCLUDED.outcome_code, meta=EXCLUDED.meta`
	_, err = tx.tx.Exec(ctx, q, iv.ID, iv.AssignmentID, iv.StartForm, iv.EndForm, iv.Status, iv.OutcomeCode, meta)
	if err != nil {
		return domain.Interview{}, mapErr("interview.upsert", err)
	}
	return iv, nil
}

func (tx *pgTx) DeleteInterviewByAssignment(ctx domain.Context, assignmentID string) error {
	ctx, end := dbSpan(ctx, "interviews.DeleteByAssignment", "interviews")
	defer end()

	q := `DELETE FROM interviews WHERE assignment_id = $1`
	if _, err := tx.tx.Exec(ctx, q, assignmentID); err != nil {
		return mapErr("interview.delete_by_assignment", err)
	}
	return nil
}

func (tx *pgTx) GetInterviewByAssignment(ctx domain.Context, assignmentID string) (domain.Interview, error) {
	ctx, end := dbSpan(ctx, "interviews.GetByAssignment", "interviews")
	defer end()

	q := `SELECT ` + interviewColumns + ` FROM interviews WHERE assignment_id = $1`
	iv, err := tx.scanInterview(tx.tx.QueryRow(ctx, q, assignmentID))
	if err != nil {
		return domain.Interview{}, mapErr("interview.get_by_assignment", err)
	}
	return iv, nil
}
