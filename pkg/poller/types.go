// Package poller runs the background worker at the heart of the watch
// service. A single goroutine owns every native resource: it drains a
// request queue of register/cancel/close operations submitted by caller
// goroutines, blocks on the native poll primitive with a bounded timeout,
// parses the resulting event buffer and dispatches each event to its
// owning key.
//
// Callers never touch the watch-descriptor registry or a key's sub-key
// set directly; requests are marshaled onto the poller goroutine and the
// caller blocks until it answers, so register, cancel and close are
// synchronous from the caller's point of view.
package poller

import (
	"time"

	"github.com/0xmhha/fswatch/pkg/ahafs"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// Config contains poller configuration.
type Config struct {
	// MountPoint is where the event-producer filesystem is mounted.
	// Default: ahafs.DefaultMountPoint.
	MountPoint string

	// PollTimeout bounds one blocking poll call so queued requests are
	// picked up even without a wakeup. Default: ahafs.DefaultPollTimeout.
	PollTimeout time.Duration

	// EventBufferSize is the raw event buffer capacity per poll cycle.
	// Default: ahafs.EventBufferSize.
	EventBufferSize int
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.MountPoint == "" {
		c.MountPoint = ahafs.DefaultMountPoint
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = ahafs.DefaultPollTimeout
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = ahafs.EventBufferSize
	}
	return c
}

// opKind discriminates queued requests.
type opKind int

const (
	opRegister opKind = iota
	opCancel
	opClose
)

// request is one operation marshaled onto the poller goroutine.
type request struct {
	op    opKind
	path  string
	kinds watchkey.Kind
	key   watchkey.Key

	// reply is buffered so the poller never blocks answering.
	reply chan response
}

// response answers one request.
type response struct {
	key *watchkey.TopLevelKey
	err error
}
