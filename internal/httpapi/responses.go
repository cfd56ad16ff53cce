package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// ErrPayload is the JSON shape returned for every non-2xx response.
type ErrPayload struct {
	status  int
	code    string
	message string
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, ep ErrPayload) {
	env := errorEnvelope{}
	env.Error.Code = ep.code
	env.Error.Message = ep.message
	writeJSON(w, ep.status, env)
}

// mapDomainErr classifies an error returned by a service call into the
// HTTP status and code it maps to per the taxonomy in domain/errors.go.
func mapDomainErr(err error) ErrPayload {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return ErrPayload{status: http.StatusBadRequest, code: "invalid_argument", message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return ErrPayload{status: http.StatusNotFound, code: "not_found", message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return ErrPayload{status: http.StatusConflict, code: "conflict", message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyReserved):
		return ErrPayload{status: http.StatusConflict, code: "already_reserved", message: err.Error()}
	case errors.Is(err, domain.ErrNoSchemeAvailable), errors.Is(err, domain.ErrNoCapacity), errors.Is(err, domain.ErrNoSample):
		return ErrPayload{status: http.StatusUnprocessableEntity, code: "no_capacity", message: err.Error()}
	case errors.Is(err, domain.ErrBankUnavailable):
		return ErrPayload{status: http.StatusServiceUnavailable, code: "bank_unavailable", message: err.Error()}
	case errors.Is(err, domain.ErrRateLimited):
		return ErrPayload{status: http.StatusTooManyRequests, code: "rate_limited", message: err.Error()}
	default:
		return ErrPayload{status: http.StatusInternalServerError, code: "internal_error", message: "internal error"}
	}
}

func writeDomainErr(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, mapDomainErr(err))
}
