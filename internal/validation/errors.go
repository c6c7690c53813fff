package validation

import (
	"strings"

	"github.com/netcurfew/netcurfew/internal/domain"
)

// FieldError reports a single rejected request field. It unwraps to
// domain.ErrInvalidInput so callers can classify it without knowing the
// concrete type.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error { return domain.ErrInvalidInput }

// FieldErrors aggregates every rejected field of one request, so a caller
// sees all problems at once instead of one per round trip.
type FieldErrors []*FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "invalid request"
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) Unwrap() error { return domain.ErrInvalidInput }

// Add records one rejected field.
func (e *FieldErrors) Add(field, value, message string) {
	*e = append(*e, &FieldError{Field: field, Value: value, Message: message})
}

// AsError returns the collection as an error, or nil when every field passed.
func (e FieldErrors) AsError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
