package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrSolverTimeout is returned when the external solver exceeds its
	// deadline. The affected request escalates; it is never downgraded
	// to a weaker tier.
	ErrSolverTimeout = errors.New("verification: solver timeout")
	// ErrSolverUnavailable is returned when no solver is configured or
	// the solver cannot be reached (fail-closed).
	ErrSolverUnavailable = errors.New("verification: solver unavailable")
)

// ValidationError rejects malformed principle or policy input before
// scoring begins. Inputs are never silently coerced.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
}

// ConfigurationError indicates a startup configuration violation, such
// as a broken threshold ordering. It is fatal: the engine must not
// serve with an invalid configuration.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Detail
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
