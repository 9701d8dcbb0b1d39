package watchkey

import "errors"

// Common errors returned by the watchkey package.
var (
	// ErrQueueClosed is returned by Take when the ready queue has been
	// closed and no signaled keys remain.
	ErrQueueClosed = errors.New("watch queue is closed")

	// ErrUnknownKind is returned when an event kind name cannot be parsed.
	ErrUnknownKind = errors.New("unknown event kind")
)
