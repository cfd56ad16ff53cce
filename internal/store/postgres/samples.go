package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/surveypulse/dialer-core/internal/domain"
)

func (tx *pgTx) BulkInsertIgnoreConflict(ctx domain.Context, samples []domain.SampleContact) (int, error) {
	ctx, end := dbSpan(ctx, "samples.BulkInsertIgnoreConflict", "sample_contacts")
	defer end()

	q := `INSERT INTO sample_contacts
		(id, project_id, quota_cell_id, phone_id, person_id, phone_number, gender, age_band,
		 province_code, city_code, attributes, status, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (project_id, quota_cell_id, phone_id) WHERE phone_id IS NOT NULL DO NOTHING`

	attempted := 0
	for _, s := range samples {
		attrs, err := json.Marshal(s.Attributes)
		if err != nil {
			return attempted, fmt.Errorf("op=sample.bulk_insert.marshal_attributes: %w", err)
		}
		_, err = tx.tx.Exec(ctx, q, s.ID, s.ProjectID, s.QuotaCellID, s.PhoneID, s.PersonID, s.PhoneNumber,
			s.Gender, s.AgeBand, s.ProvinceCode, s.CityCode, attrs, domain.SampleAvailable, s.IsActive, s.CreatedAt)
		if err != nil {
			return attempted, mapErr("sample.bulk_insert", err)
		}
		attempted++
	}
	return attempted, nil
}

const sampleColumns = `id, project_id, quota_cell_id, phone_id, person_id, phone_number, gender, age_band,
	province_code, city_code, attributes, status, attempt_count, last_attempt_at, interviewer_id,
	used_at, is_active, created_at`

func (tx *pgTx) scanSample(row interface {
	Scan(dest ...any) error
}) (domain.SampleContact, error) {
	var s domain.SampleContact
	var attrs []byte
	if err := row.Scan(&s.ID, &s.ProjectID, &s.QuotaCellID, &s.PhoneID, &s.PersonID, &s.PhoneNumber,
		&s.Gender, &s.AgeBand, &s.ProvinceCode, &s.CityCode, &attrs, &s.Status, &s.AttemptCount,
		&s.LastAttemptAt, &s.InterviewerID, &s.UsedAt, &s.IsActive, &s.CreatedAt); err != nil {
		return domain.SampleContact{}, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &s.Attributes); err != nil {
			return domain.SampleContact{}, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return s, nil
}

// ClaimNextAvailableSample selects the oldest-attempted, active, non-DNC
// available sample for the cell and atomically claims it, skipping rows a
// concurrent claim already has locked.
func (tx *pgTx) ClaimNextAvailableSample(ctx domain.Context, projectID, cellID, interviewerID string, now time.Time) (domain.SampleContact, error) {
	ctx, end := dbSpan(ctx, "samples.ClaimNextAvailable", "sample_contacts")
	defer end()

	q := `SELECT ` + sampleColumns + ` FROM sample_contacts sc
		WHERE sc.project_id = $1 AND sc.quota_cell_id = $2 AND sc.status = $3 AND sc.is_active
		  AND NOT EXISTS (SELECT 1 FROM dnc_entries d WHERE d.msisdn = sc.phone_number)
		ORDER BY sc.last_attempt_at ASC NULLS FIRST, sc.id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`
	s, err := tx.scanSample(tx.tx.QueryRow(ctx, q, projectID, cellID, domain.SampleAvailable))
	if err != nil {
		return domain.SampleContact{}, mapErr("sample.claim", errNoSampleOr(err))
	}

	upd := `UPDATE sample_contacts SET status=$2, interviewer_id=$3, used_at=$4, attempt_count=attempt_count+1, last_attempt_at=$4 WHERE id=$1`
	if _, err := tx.tx.Exec(ctx, upd, s.ID, domain.SampleClaimed, interviewerID, now); err != nil {
		return domain.SampleContact{}, mapErr("sample.claim.update", err)
	}

	s.Status = domain.SampleClaimed
	s.InterviewerID = &interviewerID
	s.UsedAt = &now
	s.AttemptCount++
	s.LastAttemptAt = &now
	return s, nil
}

// errNoSampleOr maps a bare no-rows condition to domain.ErrNoSample instead
// of domain.ErrNotFound, since "nothing left to claim" is an expected
// business outcome here, not a missing-row bug.
func errNoSampleOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNoSample
	}
	return err
}

// ReleaseSample sets status and, when releasing back to available, clears
// the interviewer and used_at markers left by a prior claim.
func (tx *pgTx) ReleaseSample(ctx domain.Context, sampleID string, status domain.SampleStatus) error {
	ctx, end := dbSpan(ctx, "samples.Release", "sample_contacts")
	defer end()

	var q string
	var err error
	if status == domain.SampleAvailable {
		q = `UPDATE sample_contacts SET status=$2, interviewer_id=NULL, used_at=NULL WHERE id=$1`
		_, err = tx.tx.Exec(ctx, q, sampleID, status)
	} else {
		q = `UPDATE sample_contacts SET status=$2 WHERE id=$1`
		_, err = tx.tx.Exec(ctx, q, sampleID, status)
	}
	if err != nil {
		return mapErr("sample.release", err)
	}
	return nil
}

func (tx *pgTx) MarkCompleted(ctx domain.Context, sampleID string) error {
	ctx, end := dbSpan(ctx, "samples.MarkCompleted", "sample_contacts")
	defer end()

	q := `UPDATE sample_contacts SET status=$2 WHERE id=$1`
	if _, err := tx.tx.Exec(ctx, q, sampleID, domain.SampleCompleted); err != nil {
		return mapErr("sample.mark_completed", err)
	}
	return nil
}

func (tx *pgTx) GetSample(ctx domain.Context, id string) (domain.SampleContact, error) {
	ctx, end := dbSpan(ctx, "samples.Get", "sample_contacts")
	defer end()

	q := `SELECT ` + sampleColumns + ` FROM sample_contacts WHERE id = $1`
	s, err := tx.scanSample(tx.tx.QueryRow(ctx, q, id))
	if err != nil {
		return domain.SampleContact{}, mapErr("sample.get", err)
	}
	return s, nil
}

func (tx *pgTx) CountPooled(ctx domain.Context, projectID, cellID string) (int, error) {
	ctx, end := dbSpan(ctx, "samples.CountPooled", "sample_contacts")
	defer end()

	q := `SELECT COUNT(*) FROM sample_contacts WHERE project_id = $1 AND quota_cell_id = $2`
	var n int
	if err := tx.tx.QueryRow(ctx, q, projectID, cellID).Scan(&n); err != nil {
		return 0, mapErr("sample.count_pooled", err)
	}
	return n, nil
}
