package ahafs

import (
	"errors"
	"fmt"
)

// Common errors returned by event sources.
var (
	// ErrSourceClosed is returned when an operation is attempted on a
	// closed event source.
	ErrSourceClosed = errors.New("event source is closed")

	// ErrSlotTableFull is returned when no monitor slots remain.
	ErrSlotTableFull = errors.New("monitor slot table is full")
)

// NativeError reports a failed native operation against the event
// producer, carrying the OS-level cause.
type NativeError struct {
	// Op is the failed operation (register, cancel, poll, wakeup).
	Op string

	// Path is the monitor path involved, when applicable.
	Path string

	// Err is the underlying OS error.
	Err error
}

func (e *NativeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("ahafs %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("ahafs %s: %v", e.Op, e.Err)
}

func (e *NativeError) Unwrap() error {
	return e.Err
}
