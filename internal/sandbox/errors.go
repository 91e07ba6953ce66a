package sandbox

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// TimeoutError is returned when a script runs past its wall-clock limit.
type TimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script exceeded timeout of %s", e.Timeout)
}

// MemoryLimitError is returned when a script grows the heap past its limit.
type MemoryLimitError struct {
	Limit uint64
	Used  uint64
}

// Error implements the error interface.
func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("script exceeded memory limit of %s (used %s)", humanize.IBytes(e.Limit), humanize.IBytes(e.Used))
}

// ResultError is returned when a script does not produce a usable result.
type ResultError struct {
	Reason string
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return "invalid script result: " + e.Reason
}
