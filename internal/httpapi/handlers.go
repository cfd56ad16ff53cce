package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surveypulse/dialer-core/internal/domain"
	"github.com/surveypulse/dialer-core/internal/reservation"
	"github.com/surveypulse/dialer-core/internal/scheme"
)

// reserveNextRequest is the body of POST /v1/reservations.
type reserveNextRequest struct {
	ProjectID     string  `json:"project_id" validate:"required"`
	InterviewerID string  `json:"interviewer_id" validate:"required"`
	TTLSeconds    int     `json:"ttl_seconds" validate:"omitempty,gt=0"`
	SchemeID      *string `json:"scheme_id" validate:"omitempty"`
}

const defaultReservationTTL = 5 * time.Minute

// ReserveNextHandler handles POST /v1/reservations.
func (s *Server) ReserveNextHandler(w http.ResponseWriter, r *http.Request) {
	var req reserveNextRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if s.Limiter != nil {
		allowed, retryAfter, err := s.Limiter.Allow(r.Context(), req.InterviewerID, 1)
		if err != nil {
			s.Logger.Warn("rate limiter error, allowing request", "error", err)
		}
		if !allowed {
			w.Header().Set("Retry-After", retryAfter.String())
			writeDomainErr(w, r, domain.ErrRateLimited)
			return
		}
	}

	ttl := defaultReservationTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	assignment, err := s.Reservation.ReserveNext(r.Context(), reservation.Request{
		ProjectID:     req.ProjectID,
		InterviewerID: req.InterviewerID,
		TTL:           ttl,
		SchemeID:      req.SchemeID,
	})
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

// transitionRequest is the shared body shape for complete/fail/cancel.
type transitionRequest struct {
	OutcomeCode *string        `json:"outcome_code" validate:"omitempty"`
	Meta        map[string]any `json:"meta" validate:"omitempty"`
}

func (s *Server) runTransition(w http.ResponseWriter, r *http.Request, fn func(ctx domain.Context, tx domain.Tx, assignmentID string) (domain.DialerAssignment, error)) {
	assignmentID := chi.URLParam(r, "id")
	var result domain.DialerAssignment
	err := s.Store.RunInTx(r.Context(), func(ctx domain.Context, tx domain.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx, assignmentID)
		return txErr
	})
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CompleteAssignmentHandler handles POST /v1/assignments/{id}/complete.
func (s *Server) CompleteAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	s.runTransition(w, r, func(ctx domain.Context, tx domain.Tx, id string) (domain.DialerAssignment, error) {
		return s.Assignment.Complete(ctx, tx, id, req.OutcomeCode, req.Meta)
	})
}

// FailAssignmentHandler handles POST /v1/assignments/{id}/fail.
func (s *Server) FailAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	s.runTransition(w, r, func(ctx domain.Context, tx domain.Tx, id string) (domain.DialerAssignment, error) {
		return s.Assignment.Fail(ctx, tx, id, req.OutcomeCode, req.Meta)
	})
}

// CancelAssignmentHandler handles POST /v1/assignments/{id}/cancel.
func (s *Server) CancelAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	s.runTransition(w, r, func(ctx domain.Context, tx domain.Tx, id string) (domain.DialerAssignment, error) {
		return s.Assignment.Cancel(ctx, tx, id, req.Meta)
	})
}

// createSchemeRequest is the body of POST /v1/schemes.
type createSchemeRequest struct {
	ProjectID  string             `json:"project_id" validate:"required"`
	Name       string             `json:"name" validate:"required"`
	CreatedBy  string             `json:"created_by" validate:"required"`
	Dimensions []domain.Dimension `json:"dimensions" validate:"required,min=1,dive"`
	Policy     string             `json:"overflow_policy" validate:"omitempty"`
	Priority   int                `json:"priority" validate:"omitempty,gte=0"`
}

// CreateSchemeHandler handles POST /v1/schemes.
func (s *Server) CreateSchemeHandler(w http.ResponseWriter, r *http.Request) {
	var req createSchemeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	policy := domain.OverflowPolicy(req.Policy)
	if policy == "" {
		policy = domain.PolicySoft
	}
	sch, err := s.Scheme.CreateDraft(r.Context(), req.ProjectID, req.Name, req.CreatedBy, req.Dimensions, policy, req.Priority)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sch)
}

// publishSchemeRequest is the body of POST /v1/schemes/{id}/publish.
type publishSchemeRequest struct {
	IsDefault *bool `json:"is_default" validate:"omitempty"`
}

// PublishSchemeHandler handles POST /v1/schemes/{id}/publish.
func (s *Server) PublishSchemeHandler(w http.ResponseWriter, r *http.Request) {
	var req publishSchemeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	sch, err := s.Scheme.Publish(r.Context(), chi.URLParam(r, "id"), req.IsDefault)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

// ArchiveSchemeHandler handles POST /v1/schemes/{id}/archive.
func (s *Server) ArchiveSchemeHandler(w http.ResponseWriter, r *http.Request) {
	sch, err := s.Scheme.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

// bulkUpsertCellsRequest is the body of POST /v1/schemes/{id}/cells.
type bulkUpsertCellsRequest struct {
	Cells []cellDefinitionDTO `json:"cells" validate:"required,min=1,dive"`
}

type cellDefinitionDTO struct {
	Selector domain.Selector `json:"selector" validate:"required"`
	Label    string          `json:"label" validate:"omitempty"`
	Target   uint            `json:"target" validate:"required,gt=0"`
	SoftCap  *uint           `json:"soft_cap" validate:"omitempty"`
	Weight   float64         `json:"weight" validate:"omitempty,gte=0"`
}

// BulkUpsertCellsHandler handles POST /v1/schemes/{id}/cells.
func (s *Server) BulkUpsertCellsHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkUpsertCellsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	defs := make([]scheme.CellDefinition, 0, len(req.Cells))
	for _, c := range req.Cells {
		defs = append(defs, scheme.CellDefinition{Selector: c.Selector, Label: c.Label, Target: c.Target, SoftCap: c.SoftCap, Weight: c.Weight})
	}
	cells, err := s.Scheme.BulkUpsertCells(r.Context(), chi.URLParam(r, "id"), defs)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cells)
}

// SchemeStatsHandler handles GET /v1/schemes/{id}/stats.
func (s *Server) SchemeStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Scheme.SchemeStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// buildPoolRequest is the body of POST /v1/cells/{id}/pool.
type buildPoolRequest struct {
	Limit      int `json:"limit" validate:"omitempty,gte=0"`
	Multiplier int `json:"multiplier" validate:"omitempty,gte=0"`
}

// BuildPoolHandler handles POST /v1/cells/{id}/pool.
func (s *Server) BuildPoolHandler(w http.ResponseWriter, r *http.Request) {
	var req buildPoolRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	attempted, err := s.Pool.BuildPool(r.Context(), chi.URLParam(r, "id"), req.Limit, req.Multiplier)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"attempted": attempted})
}

// DNCCheckHandler handles GET /v1/dnc-check/{msisdn}, an operator-facing
// lookup through the Redis-backed do-not-contact cache. The reservation
// path does not use this cache; its claim query checks dnc_entries itself.
func (s *Server) DNCCheckHandler(w http.ResponseWriter, r *http.Request) {
	if s.DNC == nil {
		writeError(w, r, ErrPayload{status: http.StatusNotFound, code: "not_found", message: "dnc check not configured"})
		return
	}
	msisdn := chi.URLParam(r, "msisdn")
	blocked, err := s.DNC.IsBlocked(r.Context(), msisdn)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"blocked": blocked})
}
