// Package pool materialises SampleContact rows into a project's sample
// pool by querying the external bank schema through a BankGateway,
// excluding DNC and already-pooled phones (component C6).
package pool

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/surveypulse/dialer-core/internal/bank"
	"github.com/surveypulse/dialer-core/internal/domain"
)

var tracer = otel.Tracer("github.com/surveypulse/dialer-core/internal/pool")

const (
	defaultMultiplier = 5
	minEffectiveLimit = 1000
)

// Builder runs BuildPool against a Store and BankGateway.
type Builder struct {
	Store domain.Store
	Bank  domain.BankGateway
	Clock domain.Clock
	IDs   domain.IDGenerator
}

// NewBuilder constructs a Builder.
func NewBuilder(store domain.Store, gw domain.BankGateway, clock domain.Clock, ids domain.IDGenerator) *Builder {
	return &Builder{Store: store, Bank: gw, Clock: clock, IDs: ids}
}

// BuildPool materialises candidates for one cell per spec §4.5. limit and
// multiplier are optional; multiplier defaults to 5 when zero. It returns
// the number of rows attempted against the bulk insert (pre-conflict), not
// the number that ultimately landed.
func (b *Builder) BuildPool(ctx domain.Context, cellID string, limit int, multiplier int) (int, error) {
	ctx, span := tracer.Start(ctx, "pool.BuildPool", trace.WithAttributes())
	defer span.End()

	if multiplier <= 0 {
		multiplier = defaultMultiplier
	}

	var attempted int
	err := b.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		cell, err := tx.GetCell(ctx, cellID)
		if err != nil {
			return fmt.Errorf("op=pool.build_pool: %w", err)
		}
		scheme, err := tx.GetScheme(ctx, cell.SchemeID)
		if err != nil {
			return fmt.Errorf("op=pool.build_pool: %w", err)
		}

		effLimit := limit
		if effLimit <= 0 {
			effLimit = int(cell.Target) * multiplier
			if effLimit < minEffectiveLimit {
				effLimit = minEffectiveLimit
			}
		}

		pred, err := bank.BuildPredicate(cell.Selector)
		if err != nil {
			return fmt.Errorf("op=pool.build_pool: %w", err)
		}

		today := b.Clock.Now()
		candidates, err := b.Bank.FindCandidates(ctx, scheme.ProjectID, pred, effLimit, today)
		if err != nil {
			return fmt.Errorf("op=pool.build_pool: %w", err)
		}

		ageRanges := make([]domain.AgeRange, len(pred.AgeRanges))
		copy(ageRanges, pred.AgeRanges)

		samples := make([]domain.SampleContact, 0, len(candidates))
		for _, c := range candidates {
			cellIDCopy := cellID
			phoneID := c.PhoneID
			personID := c.PersonID
			gender := c.Gender
			province := c.ProvinceCode
			city := c.CityCode

			var ageBand *string
			if len(pred.AgeBands) > 0 {
				age := bank.AgeOn(c.DOB, today)
				band := bank.AgeBandFor(age, pred.AgeBands, ageRanges)
				if band != "" {
					ageBand = &band
				}
			}

			samples = append(samples, domain.SampleContact{
				ID:           b.IDs.NewID(),
				ProjectID:    scheme.ProjectID,
				QuotaCellID:  &cellIDCopy,
				PhoneID:      &phoneID,
				PersonID:     &personID,
				PhoneNumber:  c.Msisdn,
				Gender:       nonEmpty(gender),
				AgeBand:      ageBand,
				ProvinceCode: nonEmpty(province),
				CityCode:     nonEmpty(city),
				Status:       domain.SampleAvailable,
				IsActive:     true,
				CreatedAt:    today,
			})
		}

		n, err := tx.BulkInsertIgnoreConflict(ctx, samples)
		if err != nil {
			return fmt.Errorf("op=pool.build_pool: %w", err)
		}
		attempted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attempted, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
