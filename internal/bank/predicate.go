// Package bank implements the read-only gateway over the external bank
// schema (component C3): normalising a cell's selector into a
// domain.SelectorPredicate, querying bank_person/bank_phone, and deriving
// ages and age bands from dates of birth.
package bank

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/surveypulse/dialer-core/internal/domain"
)

const maxAge = 120

// BuildPredicate splits a cell's selector into equality filters over
// gender/province_code/city_code and age constraints (ranges or band
// strings), per spec §4.2/§4.5.
func BuildPredicate(selector domain.Selector) (domain.SelectorPredicate, error) {
	var pred domain.SelectorPredicate
	for key, val := range selector {
		switch key {
		case "gender":
			vs, err := toStrings(val)
			if err != nil {
				return pred, fmt.Errorf("op=bank.build_predicate: %w: gender: %v", domain.ErrInvalidArgument, err)
			}
			pred.Genders = vs
		case "province_code":
			vs, err := toStrings(val)
			if err != nil {
				return pred, fmt.Errorf("op=bank.build_predicate: %w: province_code: %v", domain.ErrInvalidArgument, err)
			}
			pred.ProvinceCodes = vs
		case "city_code":
			vs, err := toStrings(val)
			if err != nil {
				return pred, fmt.Errorf("op=bank.build_predicate: %w: city_code: %v", domain.ErrInvalidArgument, err)
			}
			pred.CityCodes = vs
		case "age_band":
			bands, err := toStrings(val)
			if err != nil {
				return pred, fmt.Errorf("op=bank.build_predicate: %w: age_band: %v", domain.ErrInvalidArgument, err)
			}
			for _, band := range bands {
				rng, err := ParseAgeBand(band)
				if err != nil {
					return pred, fmt.Errorf("op=bank.build_predicate: %w: %v", domain.ErrInvalidArgument, err)
				}
				pred.AgeRanges = append(pred.AgeRanges, rng)
				pred.AgeBands = append(pred.AgeBands, band)
			}
		default:
			// Attribute-only selector keys (e.g. "segment") are not part
			// of the bank predicate; they are applied against
			// Attributes once candidates are materialised, if at all.
		}
	}
	return pred, nil
}

// ParseAgeBand parses "A-B" into [A,B] and "A+" into [A,120], per spec
// §4.2.
func ParseAgeBand(band string) (domain.AgeRange, error) {
	band = strings.TrimSpace(band)
	if strings.HasSuffix(band, "+") {
		minStr := strings.TrimSuffix(band, "+")
		min, err := strconv.Atoi(minStr)
		if err != nil {
			return domain.AgeRange{}, fmt.Errorf("invalid age band %q: %w", band, err)
		}
		return domain.AgeRange{Min: min, Max: maxAge}, nil
	}
	parts := strings.SplitN(band, "-", 2)
	if len(parts) != 2 {
		return domain.AgeRange{}, fmt.Errorf("invalid age band %q", band)
	}
	min, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	max, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || min > max {
		return domain.AgeRange{}, fmt.Errorf("invalid age band %q", band)
	}
	return domain.AgeRange{Min: min, Max: max}, nil
}

// AgeOn computes the age of someone born on dob as of today.
func AgeOn(dob, today time.Time) int {
	age := today.Year() - dob.Year()
	anniversary := time.Date(today.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	if today.Before(anniversary) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// AgeBandFor returns the first band string (in order) whose range
// contains age, or "" if none match.
func AgeBandFor(age int, bands []string, ranges []domain.AgeRange) string {
	for i, rng := range ranges {
		if age >= rng.Min && age <= rng.Max {
			return bands[i]
		}
	}
	return ""
}

func toStrings(val any) ([]string, error) {
	switch v := val.(type) {
	case string:
		return []string{v}, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported selector value type %T", val)
	}
}
