package utils

import "fmt"

// ZError represents a structured chunk-layer error.
// Context names the operation that failed; Cause is the underlying error
// and stays reachable through errors.Is and errors.As.
type ZError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *ZError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// WrapError creates a contextual error.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ZError{
		Context: context,
		Cause:   cause,
	}
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *ZError) Unwrap() error {
	return e.Cause
}
