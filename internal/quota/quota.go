// Package quota implements the cell capacity arithmetic and selector
// matching that the scheme lifecycle and reservation engine build on
// (component C4).
package quota

import (
	"math"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// CapacityLimit returns the effective cap for a cell under policy. A
// target of zero with no soft cap set means unlimited, represented as
// +Inf.
func CapacityLimit(cell domain.QuotaCell, policy domain.OverflowPolicy) float64 {
	switch policy {
	case domain.PolicyStrict:
		if cell.Target == 0 {
			return math.Inf(1)
		}
		return float64(cell.Target)
	case domain.PolicySoft, domain.PolicyWeighted:
		if cell.SoftCap != nil {
			return float64(*cell.SoftCap)
		}
		if cell.Target == 0 {
			return math.Inf(1)
		}
		return float64(cell.Target)
	default:
		return float64(cell.Target)
	}
}

// RemainingSlots returns max(0, capacity_limit - (achieved+in_progress)).
// An unlimited capacity_limit yields +Inf.
func RemainingSlots(cell domain.QuotaCell, policy domain.OverflowPolicy) float64 {
	limit := CapacityLimit(cell, policy)
	if math.IsInf(limit, 1) {
		return math.Inf(1)
	}
	used := float64(cell.Achieved) + float64(cell.InProgress)
	remaining := limit - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasCapacity reports whether the cell can accept another reservation
// under policy.
func HasCapacity(cell domain.QuotaCell, policy domain.OverflowPolicy) bool {
	limit := CapacityLimit(cell, policy)
	if math.IsInf(limit, 1) {
		return true
	}
	return RemainingSlots(cell, policy) > 0
}

// WeightedScore returns weight * remaining_slots, used to rank cells under
// the weighted overflow policy. +Inf propagates through a positive weight.
func WeightedScore(cell domain.QuotaCell, policy domain.OverflowPolicy) float64 {
	return cell.Weight * RemainingSlots(cell, policy)
}

// RankKey ranks a cell for candidate selection in ReserveNext (spec §4.6
// step 4): weighted policy sorts by -weighted_score then id ascending;
// every other policy sorts by -remaining_slots (unlimited cells first)
// then id ascending. A lower RankKey sorts first.
func RankKey(cell domain.QuotaCell, policy domain.OverflowPolicy) float64 {
	if policy == domain.PolicyWeighted {
		score := WeightedScore(cell, policy)
		if math.IsInf(score, 1) {
			return math.Inf(-1)
		}
		return -score
	}
	remaining := RemainingSlots(cell, policy)
	if math.IsInf(remaining, 1) {
		return math.Inf(-1)
	}
	return -remaining
}

// MatchesSelector reports whether a sample satisfies every key in
// selector. A sample attribute that is absent is a non-match. An empty
// selector matches everything (component C4).
func MatchesSelector(sample domain.SampleContact, selector domain.Selector) bool {
	for key, want := range selector {
		got, ok := sampleAttribute(sample, key)
		if !ok {
			return false
		}
		if !matchesValue(got, want) {
			return false
		}
	}
	return true
}

func sampleAttribute(sample domain.SampleContact, key string) (string, bool) {
	switch key {
	case "gender":
		return derefString(sample.Gender)
	case "age_band":
		return derefString(sample.AgeBand)
	case "province_code":
		return derefString(sample.ProvinceCode)
	case "city_code":
		return derefString(sample.CityCode)
	default:
		v, ok := sample.Attributes[key]
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		return s, ok
	}
}

func derefString(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

// matchesValue compares a sample's scalar attribute against a selector
// value that may be a scalar or a list/membership set.
func matchesValue(got string, want any) bool {
	switch w := want.(type) {
	case string:
		return got == w
	case []string:
		for _, v := range w {
			if v == got {
				return true
			}
		}
		return false
	case []any:
		for _, v := range w {
			if s, ok := v.(string); ok && s == got {
				return true
			}
		}
		return false
	default:
		return false
	}
}
