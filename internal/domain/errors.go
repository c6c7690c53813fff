package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrGroupNotFound     = errors.New("schedule group not found")
	ErrOwnerMismatch     = errors.New("schedule owner does not match group owner")
	ErrOwnerNotFound     = errors.New("owner not found")
	ErrInvalidRecurrence = errors.New("invalid recurrence")
	ErrGatewayFailed     = errors.New("device action gateway failed")
)

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
