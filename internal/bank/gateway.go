package bank

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// PgxGateway implements domain.BankGateway against the external,
// read-only bank.bank_person/bank.bank_phone tables over a pgx pool.
type PgxGateway struct {
	Pool PgxPool
	// Backoff bounds retries around the query before BankUnavailable is
	// surfaced; a zero value disables retries.
	Backoff backoff.BackOff
}

// PgxPool is the minimal subset of *pgxpool.Pool this gateway needs,
// narrow enough to fake in unit tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Rows is the subset of pgx.Rows this gateway consumes.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// poolAdapter adapts *pgxpool.Pool (whose Query returns pgx.Rows) to PgxPool.
type poolAdapter struct{ *pgxpool.Pool }

func (p poolAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return p.Pool.Query(ctx, sql, args...)
}

// NewPgxGateway wraps a pgx pool with a bounded exponential backoff.
func NewPgxGateway(pool *pgxpool.Pool) *PgxGateway {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second
	return &PgxGateway{Pool: poolAdapter{pool}, Backoff: b}
}

// FindCandidates implements domain.BankGateway.
func (g *PgxGateway) FindCandidates(ctx domain.Context, projectID string, pred domain.SelectorPredicate, limit int, today time.Time) ([]domain.BankCandidate, error) {
	tracer := otel.Tracer("bank.gateway")
	ctx, span := tracer.Start(ctx, "bank.FindCandidates")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "bank_person,bank_phone"),
		attribute.Int("limit", limit),
	)

	if limit <= 0 {
		limit = 1000
	}

	query, args := buildQuery(projectID, pred, limit, today)

	var out []domain.BankCandidate
	op := func() error {
		rows, err := g.Pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var c domain.BankCandidate
			if err := rows.Scan(&c.PhoneID, &c.Msisdn, &c.PersonID, &c.Gender, &c.DOB, &c.ProvinceCode, &c.CityCode); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	}

	var err error
	if g.Backoff != nil {
		err = backoff.Retry(op, g.Backoff)
	} else {
		err = op()
	}
	if err != nil {
		slog.Error("bank gateway query failed", slog.String("project_id", projectID), slog.Any("error", err))
		return nil, fmt.Errorf("op=bank.find_candidates: %w", domain.ErrBankUnavailable)
	}
	return out, nil
}

// buildQuery translates pred into dob bounds computed against today rather
// than SQL's current_date, so that a single FindCandidates call sees a
// stable notion of "now" no matter how long the query takes (spec §4.2).
func buildQuery(projectID string, pred domain.SelectorPredicate, limit int, today time.Time) (string, []any) {
	var b strings.Builder
	args := []any{projectID}
	argN := 1

	b.WriteString(`SELECT p.phone_id, p.msisdn, per.person_id, per.gender, per.dob, per.province_code, per.city_code
FROM bank.bank_phone p
JOIN bank.bank_person per ON per.person_id = p.person_id
WHERE p.is_mobile AND p.is_active
AND NOT EXISTS (SELECT 1 FROM dnc_entries d WHERE d.msisdn = p.msisdn)
AND NOT EXISTS (SELECT 1 FROM sample_contacts s WHERE s.project_id = $1 AND s.phone_id = p.phone_id)`)

	if len(pred.Genders) > 0 {
		argN++
		args = append(args, pred.Genders)
		fmt.Fprintf(&b, " AND per.gender = ANY($%d)", argN)
	}
	if len(pred.ProvinceCodes) > 0 {
		argN++
		args = append(args, pred.ProvinceCodes)
		fmt.Fprintf(&b, " AND per.province_code = ANY($%d)", argN)
	}
	if len(pred.CityCodes) > 0 {
		argN++
		args = append(args, pred.CityCodes)
		fmt.Fprintf(&b, " AND per.city_code = ANY($%d)", argN)
	}
	if len(pred.AgeRanges) > 0 {
		b.WriteString(" AND (")
		for i, rng := range pred.AgeRanges {
			if i > 0 {
				b.WriteString(" OR ")
			}
			dobUpper := today.AddDate(-rng.Min, 0, 0)
			dobLower := today.AddDate(-(rng.Max + 1), 0, 1)
			argN++
			lowerPlaceholder := fmt.Sprintf("$%d", argN)
			args = append(args, dobLower)
			argN++
			upperPlaceholder := fmt.Sprintf("$%d", argN)
			args = append(args, dobUpper)
			fmt.Fprintf(&b, "per.dob BETWEEN %s AND %s", lowerPlaceholder, upperPlaceholder)
		}
		b.WriteString(")")
	}

	argN++
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY p.phone_id ASC LIMIT $%d", argN)

	return b.String(), args
}
