// Package watcher provides the user-facing watch service.
//
// A WatchService registers directories for change notification, hands out
// one TopLevelKey per registered path, and delivers signaled keys through
// a blocking Take / non-blocking PollKey interface. Native resource
// management and event translation happen on a dedicated poller goroutine;
// every WatchService method is safe to call from any goroutine.
//
// Example usage:
//
//	svc, err := watcher.New(watcher.Config{}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	key, err := svc.Register("/var/spool/input", watchkey.Create|watchkey.Modify)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    signaled, err := svc.Take(ctx)
//	    if err != nil {
//	        break
//	    }
//	    for _, ev := range signaled.Events() {
//	        fmt.Printf("%s: %s %s\n", signaled.Watchable(), ev.Kind, ev.Name)
//	    }
//	    signaled.Reset()
//	}
//	_ = key
package watcher

import (
	"time"

	"github.com/0xmhha/fswatch/pkg/ahafs"
)

// Modifier adjusts how a path is registered. This platform supports no
// modifiers; any value passed to Register is rejected.
type Modifier string

// Config contains watch service configuration.
type Config struct {
	// MountPoint is where the event-producer filesystem is mounted.
	// Default: ahafs.DefaultMountPoint.
	MountPoint string

	// PollTimeout bounds one blocking poll cycle.
	// Default: ahafs.DefaultPollTimeout.
	PollTimeout time.Duration

	// EventBufferSize is the raw event buffer capacity per poll cycle.
	// Default: ahafs.EventBufferSize.
	EventBufferSize int

	// Source overrides the native event source. Default: the platform
	// source.
	Source ahafs.EventSource
}
