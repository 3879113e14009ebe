package eligibility

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for malformed requests. Callers should
// re-prompt; no partial verdict is produced.
var ErrInvalidInput = errors.New("invalid eligibility input")

// InputError describes which field of a request is malformed.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}
