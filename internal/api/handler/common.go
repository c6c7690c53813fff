package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/validation"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &domain.APIError{
		Code:    status,
		Message: message,
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	var fieldErrs validation.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": fieldErrs})
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrGroupNotFound):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrOwnerNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOwnerMismatch):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrGatewayFailed):
		respondError(w, http.StatusBadGateway, "gateway request failed")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

// actor identifies who performed a mutation for the audit trail.
func actor(r *http.Request) string {
	if who := r.Header.Get("X-Actor"); who != "" {
		return who
	}
	return "api"
}
