package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Malformed rule or workflow input. Usually wrapped in a *ValidationError with itemized messages.
	ErrValidation = errors.New("validation failed")
	// A single action within a matched rule failed. Recorded on the ActionResult; never aborts sibling actions.
	ErrActionExecution = errors.New("action execution failed")
	// Referenced rule, content, user, or workflow doesn't exist.
	ErrNotFound = errors.New("not found")
	// Acting user lacks the capability for the operation.
	ErrForbidden = errors.New("forbidden")
	// Daily action quota exhausted; the action was skipped.
	ErrCircuitBreaker = errors.New("circuit breaker tripped")
)

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Helper for constructing a single-message validation error.
func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Errors: msgs}
}
