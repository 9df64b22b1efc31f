package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/interbank/internal/adapter/http/dto"
	"github.com/iho/interbank/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Code:    code,
		Message: details,
	})
}

// writeDomainError maps a domain error to its status and machine code and
// writes it.
func writeDomainError(w http.ResponseWriter, err error, message string) {
	status, code := mapDomainError(err)
	writeError(w, status, code, message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes and stable
// machine-readable codes.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrTransferNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPeerNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, domain.ErrUnsupportedPair):
		return http.StatusUnprocessableEntity, "currency_unsupported"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, "validation_failure"
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "authentication_failure"
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable, "directory_unavailable"
	case errors.Is(err, domain.ErrPeerTransport):
		return http.StatusBadGateway, "peer_transport_failure"
	case errors.Is(err, domain.ErrKeyUnavailable):
		return http.StatusInternalServerError, "key_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
