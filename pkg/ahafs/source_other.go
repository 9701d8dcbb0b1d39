//go:build !(aix || linux || darwin)

package ahafs

import (
	"github.com/0xmhha/fswatch/pkg/logger"
)

// NewPlatformSource returns the event source for this host. Without the
// event-producer filesystem only the in-memory source is available; it
// registers paths but produces no events on its own.
func NewPlatformSource(log logger.Logger) (EventSource, error) {
	log.Warn("event-producer filesystem unavailable on this platform, using in-memory source")
	return NewMemorySource(), nil
}
