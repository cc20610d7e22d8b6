package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"ledger-exchange/apperr"
)

var unauthorizedErr = apperr.New(apperr.Unauthorized, "missing or malformed bearer token")

// statusFor maps each apperr.Kind to its HTTP status code per spec.md §7.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	case apperr.BadCredentials:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Conflict:
		return http.StatusBadRequest
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.InvariantViolation, apperr.TransientStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code and a uniform {"error": "..."} body.
// invariant_violation is logged at error level; everything else at warn.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.InvariantViolation {
		log.Error("invariant violation", "err", err)
	} else {
		log.Warn("request failed", "kind", kind, "err", err)
	}
	writeJSON(w, statusFor(kind), map[string]string{"error": publicMessage(err)})
}

// publicMessage strips internal detail from store-wrapped causes; callers
// only ever see the apperr.Error's own message, never a raw driver error.
func publicMessage(err error) string {
	if appErr, ok := err.(*apperr.Error); ok {
		return appErr.Message
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
