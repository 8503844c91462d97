package fields

import (
	"errors"
	"fmt"

	"voicebook/models"
)

// ErrValidation matches every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError names the field whose answer could not be used.
type ValidationError struct {
	Field  models.Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(f models.Field, format string, args ...any) error {
	return &ValidationError{Field: f, Reason: fmt.Sprintf(format, args...)}
}
