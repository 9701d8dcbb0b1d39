// Package parser turns the raw text buffer produced by one poll cycle
// into structured poll events.
//
// The event producer writes line-oriented records:
//
//	BEGIN_WD=<wd>
//	RC_FROM_EVPROD=<code>
//	BEGIN_EVPROD_INFO
//	<file name>
//	END_EVPROD_INFO
//	END_WD
//
// Records whose watch descriptor is unknown or whose return code maps to
// no event kind are dropped with a diagnostic; a mismatch between the
// expected and parsed record count is a warning, never a failure.
package parser

import (
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// PollEvent is one parsed change record. It lives only within the poll
// cycle that produced it.
type PollEvent struct {
	// Kind is the translated event kind.
	Kind watchkey.Kind

	// Key is the key the record was addressed to. It may be a SubKey;
	// dispatch resolves it to the owning TopLevelKey.
	Key watchkey.Key

	// FileName is the affected file name when the producer reported one.
	FileName string
}

// Resolver maps a watch descriptor to its registered key. The poller
// passes its registry lookup here.
type Resolver func(wd int) (watchkey.Key, bool)

// Parser produces poll events from raw event-log buffers.
type Parser interface {
	// Parse scans buf (NUL terminated, at most cap(buf) bytes) in a
	// single pass and returns the events in record order. expected is
	// the record count reported by the poll call.
	Parse(buf []byte, expected int, resolve Resolver) []PollEvent
}
