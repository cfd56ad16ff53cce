package postgres

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// selectorHash returns a stable digest of a cell's selector so
// (scheme_id, selector_hash) can carry the uniqueness constraint that a
// raw JSONB column cannot express portably across key ordering.
func selectorHash(sel domain.Selector) (string, error) {
	canon, err := json.Marshal(sel)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func (tx *pgTx) UpsertCell(ctx domain.Context, c domain.QuotaCell) (domain.QuotaCell, error) {
	ctx, end := dbSpan(ctx, "cells.Upsert", "quota_cells")
	defer end()

	sel, err := json.Marshal(c.Selector)
	if err != nil {
		return domain.QuotaCell{}, fmt.Errorf("op=cell.upsert.marshal_selector: %w", err)
	}
	hash, err := selectorHash(c.Selector)
	if err != nil {
		return domain.QuotaCell{}, fmt.Errorf("op=cell.upsert.hash_selector: %w", err)
	}

	q := `INSERT INTO quota_cells (id, scheme_id, selector, selector_hash, label, target, soft_cap, weight, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (id) DO UPDATE SET
			selector=EXCLUDED.selector, selector_hash=EXCLUDED.selector_hash, label=EXCLUDED.label,
			target=EXCLUDED.target, soft_cap=EXCLUDED.soft_cap, weight=EXCLUDED.weight, updated_at=now()
		RETURNING achieved, in_progress, reserved, updated_at`
	err = tx.tx.QueryRow(ctx, q, c.ID, c.SchemeID, sel, hash, c.Label, c.Target, c.SoftCap, c.Weight).
		Scan(&c.Achieved, &c.InProgress, &c.Reserved, &c.UpdatedAt)
	if err != nil {
		return domain.QuotaCell{}, mapErr("cell.upsert", err)
	}
	return c, nil
}

func (tx *pgTx) scanCell(row interface {
	Scan(dest ...any) error
}) (domain.QuotaCell, error) {
	var c domain.QuotaCell
	var sel []byte
	if err := row.Scan(&c.ID, &c.SchemeID, &sel, &c.Label, &c.Target, &c.SoftCap, &c.Weight,
		&c.Achieved, &c.InProgress, &c.Reserved, &c.UpdatedAt); err != nil {
		return domain.QuotaCell{}, err
	}
	if len(sel) > 0 {
		if err := json.Unmarshal(sel, &c.Selector); err != nil {
			return domain.QuotaCell{}, fmt.Errorf("unmarshal selector: %w", err)
		}
	}
	return c, nil
}

const cellColumns = `id, scheme_id, selector, label, target, soft_cap, weight, achieved, in_progress, reserved, updated_at`

func (tx *pgTx) GetCell(ctx domain.Context, id string) (domain.QuotaCell, error) {
	ctx, end := dbSpan(ctx, "cells.Get", "quota_cells")
	defer end()

	q := `SELECT ` + cellColumns + ` FROM quota_cells WHERE id = $1`
	c, err := tx.scanCell(tx.tx.QueryRow(ctx, q, id))
	if err != nil {
		return domain.QuotaCell{}, mapErr("cell.get", err)
	}
	return c, nil
}

func (tx *pgTx) ListCellsForScheme(ctx domain.Context, schemeID string) ([]domain.QuotaCell, error) {
	ctx, end := dbSpan(ctx, "cells.ListForScheme", "quota_cells")
	defer end()
	return tx.queryCells(ctx, `SELECT `+cellColumns+` FROM quota_cells WHERE scheme_id = $1 ORDER BY id`, schemeID)
}

// LockCellsSkipLocked returns the scheme's cells not currently held by a
// concurrent reservation, each now row-locked for the caller's transaction.
func (tx *pgTx) LockCellsSkipLocked(ctx domain.Context, schemeID string) ([]domain.QuotaCell, error) {
	ctx, end := dbSpan(ctx, "cells.LockSkipLocked", "quota_cells")
	defer end()
	q := `SELECT ` + cellColumns + ` FROM quota_cells WHERE scheme_id = $1 ORDER BY id FOR UPDATE SKIP LOCKED`
	return tx.queryCells(ctx, q, schemeID)
}

func (tx *pgTx) queryCells(ctx domain.Context, q string, args ...any) ([]domain.QuotaCell, error) {
	rows, err := tx.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr("cell.query", err)
	}
	defer rows.Close()

	var out []domain.QuotaCell
	for rows.Next() {
		c, err := tx.scanCell(rows)
		if err != nil {
			return nil, mapErr("cell.query.scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("cell.query.rows", err)
	}
	return out, nil
}

// ApplyCounterDelta increments achieved/in_progress/reserved in place,
// clamped at zero, so concurrent transactions never race a read-modify-write
// cycle against each other.
func (tx *pgTx) ApplyCounterDelta(ctx domain.Context, cellID string, delta domain.CellCounterDelta) error {
	ctx, end := dbSpan(ctx, "cells.ApplyCounterDelta", "quota_cells")
	defer end()

	q := `UPDATE quota_cells SET
		achieved = GREATEST(0, achieved + $2),
		in_progress = GREATEST(0, in_progress + $3),
		reserved = GREATEST(0, reserved + $4),
		updated_at = now()
		WHERE id = $1`
	tag, err := tx.tx.Exec(ctx, q, cellID, delta.Achieved, delta.InProgress, delta.Reserved)
	if err != nil {
		return mapErr("cell.apply_counter_delta", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=cell.apply_counter_delta: %w", domain.ErrNotFound)
	}
	return nil
}
