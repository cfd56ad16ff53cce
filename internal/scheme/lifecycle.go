// Package scheme implements the quota scheme lifecycle state machine and
// cell editing gated by it (component C5).
package scheme

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// Service mutates QuotaScheme rows, enforcing the draft -> published ->
// archived state machine and the default-uniqueness invariant (I2).
type Service struct {
	Store domain.Store
	Clock domain.Clock
	IDs   domain.IDGenerator
}

// NewService constructs a scheme Service.
func NewService(store domain.Store, clock domain.Clock, ids domain.IDGenerator) *Service {
	return &Service{Store: store, Clock: clock, IDs: ids}
}

// CellDefinition is the input shape for BulkUpsertCells.
type CellDefinition struct {
	Selector domain.Selector
	Label    string
	Target   uint
	SoftCap  *uint
	Weight   float64
}

// CreateDraft creates a new draft scheme, allocating the next version for
// (project, name) per invariant I1.
func (s *Service) CreateDraft(ctx domain.Context, projectID, name, createdBy string, dims []domain.Dimension, policy domain.OverflowPolicy, priority int) (domain.QuotaScheme, error) {
	if projectID == "" || name == "" {
		return domain.QuotaScheme{}, fmt.Errorf("op=scheme.create_draft: %w: project and name required", domain.ErrInvalidArgument)
	}
	if policy == "" {
		policy = domain.PolicyStrict
	}

	var out domain.QuotaScheme
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("op=scheme.create_draft: %w: project not found: %w", domain.ErrInvalidArgument, err)
			}
			return fmt.Errorf("op=scheme.create_draft: %w", err)
		}
		version, err := tx.NextVersion(ctx, projectID, name)
		if err != nil {
			return fmt.Errorf("op=scheme.create_draft: %w", err)
		}
		created, err := tx.CreateScheme(ctx, domain.QuotaScheme{
			ID:             s.IDs.NewID(),
			ProjectID:      projectID,
			Name:           name,
			Version:        version,
			Status:         domain.SchemeDraft,
			Dimensions:     dims,
			OverflowPolicy: policy,
			Priority:       priority,
			CreatedBy:      createdBy,
		})
		if err != nil {
			return fmt.Errorf("op=scheme.create_draft: %w", err)
		}
		out = created
		return nil
	})
	return out, err
}

// Publish transitions a draft (or re-publishes a published) scheme to
// published, stamping PublishedAt on first publish and running
// default-uniqueness when isDefault is true (spec §4.4).
func (s *Service) Publish(ctx domain.Context, schemeID string, isDefault *bool) (domain.QuotaScheme, error) {
	var out domain.QuotaScheme
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		sch, err := tx.GetSchemeForUpdate(ctx, schemeID)
		if err != nil {
			return fmt.Errorf("op=scheme.publish: %w", err)
		}
		if sch.Status == domain.SchemeArchived {
			return fmt.Errorf("op=scheme.publish: %w: cannot publish an archived scheme", domain.ErrInvalidArgument)
		}
		now := s.Clock.Now()
		if sch.PublishedAt == nil {
			sch.PublishedAt = &now
		}
		sch.Status = domain.SchemePublished
		if isDefault != nil {
			sch.IsDefault = *isDefault
		}
		if err := tx.UpdateScheme(ctx, sch); err != nil {
			return fmt.Errorf("op=scheme.publish: %w", err)
		}
		if sch.IsDefault {
			if err := tx.ClearOtherDefaults(ctx, sch.ProjectID, sch.ID); err != nil {
				return fmt.Errorf("op=scheme.publish: %w", err)
			}
		}
		out = sch
		return nil
	})
	if err == nil {
		slog.Info("scheme published", slog.String("scheme_id", out.ID), slog.Bool("is_default", out.IsDefault))
	}
	return out, err
}

// Archive transitions a draft or published scheme to archived, clearing
// IsDefault.
func (s *Service) Archive(ctx domain.Context, schemeID string) (domain.QuotaScheme, error) {
	var out domain.QuotaScheme
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		sch, err := tx.GetSchemeForUpdate(ctx, schemeID)
		if err != nil {
			return fmt.Errorf("op=scheme.archive: %w", err)
		}
		sch.Status = domain.SchemeArchived
		sch.IsDefault = false
		if err := tx.UpdateScheme(ctx, sch); err != nil {
			return fmt.Errorf("op=scheme.archive: %w", err)
		}
		out = sch
		return nil
	})
	return out, err
}

// BulkUpsertCells replaces or creates cells on a scheme. Per invariant I3,
// this is only permitted while the scheme is in draft status.
func (s *Service) BulkUpsertCells(ctx domain.Context, schemeID string, defs []CellDefinition) ([]domain.QuotaCell, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("op=scheme.bulk_upsert_cells: %w: no cells given", domain.ErrInvalidArgument)
	}
	for _, d := range defs {
		if d.Weight < 0 {
			return nil, fmt.Errorf("op=scheme.bulk_upsert_cells: %w: weight must be positive", domain.ErrInvalidArgument)
		}
	}

	var out []domain.QuotaCell
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		sch, err := tx.GetSchemeForUpdate(ctx, schemeID)
		if err != nil {
			return fmt.Errorf("op=scheme.bulk_upsert_cells: %w", err)
		}
		if sch.Status != domain.SchemeDraft {
			return fmt.Errorf("op=scheme.bulk_upsert_cells: %w: cells may only be edited while the scheme is a draft", domain.ErrInvalidArgument)
		}
		for _, d := range defs {
			weight := d.Weight
			if weight == 0 {
				weight = 1
			}
			cell, err := tx.UpsertCell(ctx, domain.QuotaCell{
				ID:       s.IDs.NewID(),
				SchemeID: schemeID,
				Selector: d.Selector,
				Label:    d.Label,
				Target:   d.Target,
				SoftCap:  d.SoftCap,
				Weight:   weight,
			})
			if err != nil {
				return fmt.Errorf("op=scheme.bulk_upsert_cells: %w", err)
			}
			out = append(out, cell)
		}
		return nil
	})
	return out, err
}
