package scheme

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// PickActive selects the active scheme for a reservation request per spec
// §4.4: an explicit schemeID must exist, belong to the project, and be
// published; otherwise prefer the default published scheme, then any
// published scheme, both tie-broken by priority desc then published_at
// desc.
func PickActive(ctx domain.Context, tx domain.Tx, projectID string, schemeID *string) (domain.QuotaScheme, error) {
	if schemeID != nil && *schemeID != "" {
		sch, err := tx.GetScheme(ctx, *schemeID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.QuotaScheme{}, fmt.Errorf("op=scheme.pick_active: %w: unknown scheme id: %w", domain.ErrInvalidArgument, err)
			}
			return domain.QuotaScheme{}, fmt.Errorf("op=scheme.pick_active: %w", err)
		}
		if sch.ProjectID != projectID || sch.Status != domain.SchemePublished {
			return domain.QuotaScheme{}, fmt.Errorf("op=scheme.pick_active: %w: scheme is not a published scheme of this project", domain.ErrInvalidArgument)
		}
		return sch, nil
	}

	all, err := tx.ListSchemesByProject(ctx, projectID)
	if err != nil {
		return domain.QuotaScheme{}, fmt.Errorf("op=scheme.pick_active: %w", err)
	}

	var published []domain.QuotaScheme
	for _, sch := range all {
		if sch.Status == domain.SchemePublished {
			published = append(published, sch)
		}
	}
	if len(published) == 0 {
		return domain.QuotaScheme{}, fmt.Errorf("op=scheme.pick_active: %w", domain.ErrNoSchemeAvailable)
	}

	byRank := func(list []domain.QuotaScheme) domain.QuotaScheme {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Priority != list[j].Priority {
				return list[i].Priority > list[j].Priority
			}
			ti, tj := publishedAtOrZero(list[i]), publishedAtOrZero(list[j])
			return ti.After(tj)
		})
		return list[0]
	}

	var defaults []domain.QuotaScheme
	for _, sch := range published {
		if sch.IsDefault {
			defaults = append(defaults, sch)
		}
	}
	if len(defaults) > 0 {
		return byRank(defaults), nil
	}
	return byRank(published), nil
}

func publishedAtOrZero(s domain.QuotaScheme) time.Time {
	if s.PublishedAt == nil {
		return time.Time{}
	}
	return *s.PublishedAt
}
