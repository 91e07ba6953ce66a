package stats

import "fmt"

// StructuralError reports a stats document that lacks a mandatory top-level
// field. Nothing downstream can proceed without it.
type StructuralError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid stats document: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid stats document: missing %q", e.Field)
}
