package poller

import "errors"

// Common errors returned by the poller.
var (
	// ErrPollerClosed is returned when a request is submitted after the
	// poller has shut down.
	ErrPollerClosed = errors.New("poller is closed")
)
