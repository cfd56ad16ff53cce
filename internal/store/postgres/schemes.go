package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/surveypulse/dialer-core/internal/domain"
)

func (tx *pgTx) CreateScheme(ctx domain.Context, s domain.QuotaScheme) (domain.QuotaScheme, error) {
	ctx, end := dbSpan(ctx, "schemes.Create", "quota_schemes")
	defer end()

	dims, err := json.Marshal(s.Dimensions)
	if err != nil {
		return domain.QuotaScheme{}, fmt.Errorf("op=scheme.create.marshal_dimensions: %w", err)
	}

	q := `INSERT INTO quota_schemes
		(id, project_id, name, version, status, dimensions, overflow_policy, priority, is_default, published_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = tx.tx.Exec(ctx, q, s.ID, s.ProjectID, s.Name, s.Version, s.Status, dims,
		s.OverflowPolicy, s.Priority, s.IsDefault, s.PublishedAt, s.CreatedBy)
	if err != nil {
		return domain.QuotaScheme{}, mapErr("scheme.create", err)
	}
	return s, nil
}

func (tx *pgTx) UpdateScheme(ctx domain.Context, s domain.QuotaScheme) error {
	ctx, end := dbSpan(ctx, "schemes.Update", "quota_schemes")
	defer end()

	dims, err := json.Marshal(s.Dimensions)
	if err != nil {
		return fmt.Errorf("op=scheme.update.marshal_dimensions: %w", err)
	}

	q := `UPDATE quota_schemes SET
		status=$2, dimensions=$3, overflow_policy=$4, priority=$5, is_default=$6, published_at=$7
		WHERE id=$1`
	_, err = tx.tx.Exec(ctx, q, s.ID, s.Status, dims, s.OverflowPolicy, s.Priority, s.IsDefault, s.PublishedAt)
	if err != nil {
		return mapErr("scheme.update", err)
	}
	return nil
}

func (tx *pgTx) scanScheme(row interface {
	Scan(dest ...any) error
}) (domain.QuotaScheme, error) {
	var s domain.QuotaScheme
	var dims []byte
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Version, &s.Status, &dims,
		&s.OverflowPolicy, &s.Priority, &s.IsDefault, &s.PublishedAt, &s.CreatedBy); err != nil {
		return domain.QuotaScheme{}, err
	}
	if len(dims) > 0 {
		if err := json.Unmarshal(dims, &s.Dimensions); err != nil {
			return domain.QuotaScheme{}, fmt.Errorf("unmarshal dimensions: %w", err)
		}
	}
	return s, nil
}

const schemeColumns = `id, project_id, name, version, status, dimensions, overflow_policy, priority, is_default, published_at, created_by`

func (tx *pgTx) GetScheme(ctx domain.Context, id string) (domain.QuotaScheme, error) {
	ctx, end := dbSpan(ctx, "schemes.Get", "quota_schemes")
	defer end()

	q := `SELECT ` + schemeColumns + ` FROM quota_schemes WHERE id = $1`
	s, err := tx.scanScheme(tx.tx.QueryRow(ctx, q, id))
	if err != nil {
		return domain.QuotaScheme{}, mapErr("scheme.get", err)
	}
	return s, nil
}

func (tx *pgTx) GetSchemeForUpdate(ctx domain.Context, id string) (domain.QuotaScheme, error) {
	ctx, end := dbSpan(ctx, "schemes.GetForUpdate", "quota_schemes")
	defer end()

	q := `SELECT ` + schemeColumns + ` FROM quota_schemes WHERE id = $1 FOR UPDATE`
	s, err := tx.scanScheme(tx.tx.QueryRow(ctx, q, id))
	if err != nil {
		return domain.QuotaScheme{}, mapErr("scheme.get_for_update", err)
	}
	return s, nil
}

func (tx *pgTx) ListSchemesByProject(ctx domain.Context, projectID string) ([]domain.QuotaScheme, error) {
	ctx, end := dbSpan(ctx, "schemes.ListByProject", "quota_schemes")
	defer end()

	q := `SELECT ` + schemeColumns + ` FROM quota_schemes WHERE project_id = $1 ORDER BY id`
	rows, err := tx.tx.Query(ctx, q, projectID)
	if err != nil {
		return nil, mapErr("scheme.list_by_project", err)
	}
	defer rows.Close()

	var out []domain.QuotaScheme
	for rows.Next() {
		s, err := tx.scanScheme(rows)
		if err != nil {
			return nil, mapErr("scheme.list_by_project.scan", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("scheme.list_by_project.rows", err)
	}
	return out, nil
}

func (tx *pgTx) NextVersion(ctx domain.Context, projectID, name string) (int, error) {
	ctx, end := dbSpan(ctx, "schemes.NextVersion", "quota_schemes")
	defer end()

	q := `SELECT COALESCE(MAX(version), 0) + 1 FROM quota_schemes WHERE project_id = $1 AND name = $2`
	var next int
	if err := tx.tx.QueryRow(ctx, q, projectID, name).Scan(&next); err != nil {
		return 0, mapErr("scheme.next_version", err)
	}
	return next, nil
}

func (tx *pgTx) ClearOtherDefaults(ctx domain.Context, projectID, exceptSchemeID string) error {
	ctx, end := dbSpan(ctx, "schemes.ClearOtherDefaults", "quota_schemes")
	defer end()

	q := `UPDATE quota_schemes SET is_default = FALSE WHERE project_id = $1 AND id <> $2 AND is_default`
	if _, err := tx.tx.Exec(ctx, q, projectID, exceptSchemeID); err != nil {
		return mapErr("scheme.clear_other_defaults", err)
	}
	return nil
}
