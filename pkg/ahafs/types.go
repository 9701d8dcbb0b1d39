// Package ahafs defines the contract with the kernel event-producer
// facility that backs the watch service, and provides two implementations:
// a unix one driven by monitor files and poll(2), and an in-memory one for
// tests and hosts without the event-producer filesystem.
//
// The facility exposes filesystem changes through a pseudo-filesystem
// mounted at a configurable mount point. Creating a monitor file under
// that mount registers interest in a path; deleting it cancels interest.
// Registered monitors are identified by small integer watch descriptors
// and report changes as line-oriented text records framed by
// BEGIN_WD=<wd> / END_WD markers.
package ahafs

import (
	"path/filepath"
	"time"
)

const (
	// DefaultMountPoint is where the event-producer filesystem is
	// conventionally mounted.
	DefaultMountPoint = "/aha"

	// DefaultPollTimeout bounds one blocking poll call so queued
	// register/cancel/close requests are not starved.
	DefaultPollTimeout = time.Second

	// MaxSlots is the maximum number of simultaneously registered
	// monitors, including the internal wakeup channel.
	MaxSlots = 2048

	// EventBufferSize is the capacity of the raw event buffer filled by
	// one poll call.
	EventBufferSize = 2096
)

// Monitor factories exposed by the event producer. Directory changes and
// file changes are reported by distinct producers.
const (
	dirMonitorFactory  = "modDir.monFactory"
	fileMonitorFactory = "modFile.monFactory"
)

// EventSource is the facility the poller blocks on. Implementations own
// the poll handle, the slot table and the wakeup channel; the poller is
// the only goroutine calling RegisterPath, CancelWatch and Poll.
type EventSource interface {
	// RegisterPath registers interest in monitorPath, using nextSlot as
	// the next free slot index, and returns the assigned watch
	// descriptor. Parent directories of the monitor path are created as
	// needed.
	RegisterPath(nextSlot int, monitorPath string) (int, error)

	// CancelWatch releases the watch descriptor. Cancelling a descriptor
	// that is already gone is success, keeping cancellation idempotent.
	CancelWatch(slots, wd int) error

	// Poll blocks until events arrive, a wakeup is signaled, or the
	// timeout expires. Raw event text is written into buf (NUL
	// terminated) and the number of records is returned. A timeout
	// yields zero records and a nil error.
	Poll(slots int, timeout time.Duration, buf []byte) (int, error)

	// Wakeup makes a blocked Poll return promptly.
	Wakeup() error

	// Close releases the poll handle, the wakeup channel and every
	// remaining monitor. Idempotent.
	Close() error
}

// MonitorPath builds the monitor file path registering interest in path:
// <mountPoint>/fs/<producer>/<parent>/<name>.mon, where the producer is
// the directory or file monitor factory. path must be absolute.
func MonitorPath(mountPoint, path string, dir bool) string {
	producer := fileMonitorFactory
	if dir {
		producer = dirMonitorFactory
	}
	return filepath.Join(mountPoint, "fs", producer,
		filepath.Dir(path), filepath.Base(path)+".mon")
}
