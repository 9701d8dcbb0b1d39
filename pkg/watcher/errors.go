package watcher

import "errors"

// Usage errors reported synchronously by Register. None of them changes
// service state.
var (
	// ErrUnsupportedModifier is returned when Register receives any
	// modifier; this platform supports none.
	ErrUnsupportedModifier = errors.New("watch modifiers are not supported")

	// ErrNotDirectory is returned when the registered path does not
	// resolve to a directory.
	ErrNotDirectory = errors.New("watch path is not a directory")

	// ErrNoEventKinds is returned when Register is called with an empty
	// kind set.
	ErrNoEventKinds = errors.New("no event kinds requested")

	// ErrServiceClosed is returned when the watch service has been
	// closed.
	ErrServiceClosed = errors.New("watch service is closed")
)
