package audit

import "fmt"

// ValidationError rejects an external rule result with a bad shape.
type ValidationError struct {
	RuleID string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid result from rule %s: %s", e.RuleID, e.Reason)
}

// ScriptLoadError is returned when a rule script cannot be read or fetched.
type ScriptLoadError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("loading rule script %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptLoadError) Unwrap() error {
	return e.Err
}
