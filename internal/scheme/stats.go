package scheme

import (
	"fmt"

	"github.com/surveypulse/dialer-core/internal/domain"
)

const unspecifiedBucket = "Unspecified"

// DimensionBucket aggregates one dimension value's totals across every
// cell whose selector carries it.
type DimensionBucket struct {
	Value      string
	Target     uint
	Achieved   uint
	InProgress uint
}

// Stats is the aggregate view of a scheme's cells, broken down by each of
// the scheme's declared dimensions.
type Stats struct {
	SchemeID       string
	TargetTotal    uint
	AchievedTotal  uint
	InProgress     uint
	RemainingTotal int
	ByDimension    map[string][]DimensionBucket
}

// SchemeStats aggregates a scheme's cells into totals and a per-dimension
// breakdown. A cell whose selector lacks a given dimension key contributes
// to that dimension's "Unspecified" bucket.
func (s *Service) SchemeStats(ctx domain.Context, schemeID string) (Stats, error) {
	var out Stats
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		sch, err := tx.GetScheme(ctx, schemeID)
		if err != nil {
			return fmt.Errorf("op=scheme.stats: %w", err)
		}
		cells, err := tx.ListCellsForScheme(ctx, schemeID)
		if err != nil {
			return fmt.Errorf("op=scheme.stats: %w", err)
		}

		out = aggregateStats(sch, cells)
		return nil
	})
	return out, err
}

func aggregateStats(sch domain.QuotaScheme, cells []domain.QuotaCell) Stats {
	out := Stats{
		SchemeID:    sch.ID,
		ByDimension: make(map[string][]DimensionBucket, len(sch.Dimensions)),
	}

	buckets := make(map[string]map[string]*DimensionBucket, len(sch.Dimensions))
	for _, d := range sch.Dimensions {
		buckets[d.Key] = make(map[string]*DimensionBucket)
	}

	for _, c := range cells {
		out.TargetTotal += c.Target
		out.AchievedTotal += c.Achieved
		out.InProgress += c.InProgress

		for _, d := range sch.Dimensions {
			value := unspecifiedBucket
			if raw, ok := c.Selector[d.Key]; ok {
				if s, ok := raw.(string); ok && s != "" {
					value = s
				}
			}
			b, ok := buckets[d.Key][value]
			if !ok {
				b = &DimensionBucket{Value: value}
				buckets[d.Key][value] = b
			}
			b.Target += c.Target
			b.Achieved += c.Achieved
			b.InProgress += c.InProgress
		}
	}

	out.RemainingTotal = int(out.TargetTotal) - int(out.AchievedTotal)

	for key, byValue := range buckets {
		list := make([]DimensionBucket, 0, len(byValue))
		for _, b := range byValue {
			list = append(list, *b)
		}
		out.ByDimension[key] = list
	}
	return out
}
