package midi

import (
	"errors"
	"fmt"
)

// ErrInvalidMessage is matched by every decode/validation failure
var ErrInvalidMessage = errors.New("invalid midi message")

// ValidationError reports the first out-of-range field of a message
type ValidationError struct {
	Field string
	Value int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid midi message: %s=%d out of range", e.Field, e.Value)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidMessage
}
