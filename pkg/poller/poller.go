package poller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xmhha/fswatch/pkg/ahafs"
	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/parser"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// Poller is the background worker translating native poll results into
// signaled watch keys. All fields below requests are owned by the run
// goroutine.
type Poller struct {
	cfg    Config
	source ahafs.EventSource
	queue  *watchkey.Queue
	log    logger.Logger

	requests chan request
	done     chan struct{}

	parser   parser.Parser
	registry *watchkey.Registry
	nextSlot int
	closed   bool
}

// New creates a poller over the given event source. Signaled keys are
// announced on queue. Start must be called before submitting requests.
func New(cfg Config, source ahafs.EventSource, queue *watchkey.Queue, log logger.Logger) *Poller {
	return &Poller{
		cfg:      cfg.withDefaults(),
		source:   source,
		queue:    queue,
		log:      log,
		requests: make(chan request, 16),
		done:     make(chan struct{}),
		parser:   parser.New(log),
		registry: watchkey.NewRegistry(),
		nextSlot: 1, // slot 0 belongs to the wakeup channel
	}
}

// Start launches the run loop.
func (p *Poller) Start() {
	go p.run()
}

// Done is closed when the run loop has terminated and all native
// resources are released.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Register watches path with the given kind set. It blocks until the
// poller goroutine has allocated the native resources. When modify
// interest is requested, every regular file currently in the directory
// gets its own sub-key; on partial failure the sub-keys created so far
// stay registered and the error is returned (best effort, no rollback).
func (p *Poller) Register(path string, kinds watchkey.Kind) (*watchkey.TopLevelKey, error) {
	resp := p.submit(request{op: opRegister, path: path, kinds: kinds})
	return resp.key, resp.err
}

// Cancel releases key and, for a TopLevelKey, all of its sub-keys. The
// native resources are gone when Cancel returns.
func (p *Poller) Cancel(key watchkey.Key) error {
	resp := p.submit(request{op: opCancel, key: key})
	if resp.err == ErrPollerClosed {
		// Everything was already released by the shutdown.
		return nil
	}
	return resp.err
}

// Close cancels every key, releases the event source and terminates the
// run loop. Idempotent.
func (p *Poller) Close() error {
	resp := p.submit(request{op: opClose})
	if resp.err == ErrPollerClosed {
		return nil
	}
	return resp.err
}

// submit marshals one request onto the poller goroutine and blocks for
// its answer.
func (p *Poller) submit(req request) response {
	req.reply = make(chan response, 1)

	select {
	case p.requests <- req:
	case <-p.done:
		return response{err: ErrPollerClosed}
	}

	if err := p.source.Wakeup(); err != nil {
		p.log.Warn("poller wakeup failed", "error", err)
	}

	select {
	case resp := <-req.reply:
		return resp
	case <-p.done:
		// The run loop may have answered just before terminating.
		select {
		case resp := <-req.reply:
			return resp
		default:
			return response{err: ErrPollerClosed}
		}
	}
}

// run is the poller loop: drain requests, poll, parse, dispatch.
func (p *Poller) run() {
	defer close(p.done)

	buf := ahafs.NewBuffer(p.cfg.EventBufferSize)
	defer buf.Release()

	for {
		if p.processRequests() {
			return
		}

		count, err := p.source.Poll(p.nextSlot, p.cfg.PollTimeout, buf.Bytes())
		if err != nil {
			p.log.Error("native poll failed, shutting down watch service", "error", err)
			p.shutdown()
			return
		}
		if count == 0 {
			continue
		}

		for _, ev := range p.parser.Parse(buf.Bytes(), count, p.registry.Get) {
			if dispatchErr := p.processPollEvent(ev); dispatchErr != nil {
				p.log.Error("event dispatch failed, shutting down watch service",
					"error", dispatchErr)
				p.shutdown()
				return
			}
		}
	}
}

// shutdown releases everything and answers any requests still queued.
func (p *Poller) shutdown() {
	p.closeAll()
	p.processRequests()
}

// processRequests drains the request queue without blocking. Returns true
// once a close request has been handled.
func (p *Poller) processRequests() bool {
	shutdown := false
	for {
		select {
		case req := <-p.requests:
			if p.handleRequest(req) {
				shutdown = true
			}
		default:
			return shutdown
		}
	}
}

// handleRequest executes one request on the poller goroutine.
func (p *Poller) handleRequest(req request) bool {
	switch req.op {
	case opRegister:
		if p.closed {
			req.reply <- response{err: ErrPollerClosed}
			return false
		}
		key, err := p.registerPath(req.path, req.kinds)
		req.reply <- response{key: key, err: err}

	case opCancel:
		if !p.closed {
			p.cancelKey(req.key)
		}
		req.reply <- response{}

	case opClose:
		if !p.closed {
			p.closeAll()
		}
		req.reply <- response{}
		return true
	}
	return false
}

// registerPath allocates the native watch for one directory and builds
// its TopLevelKey.
func (p *Poller) registerPath(path string, kinds watchkey.Kind) (*watchkey.TopLevelKey, error) {
	monPath := ahafs.MonitorPath(p.cfg.MountPoint, path, true)

	wd, err := p.createWatchDescriptor(monPath)
	if err != nil {
		return nil, err
	}

	key := watchkey.NewTopLevelKey(wd, path, kinds, p.queue)
	p.registry.Add(key)

	// The event producer reports directory entry changes only; file
	// content changes are detected by monitoring every file inside the
	// directory individually.
	if key.IsWatching(watchkey.Modify) {
		if err := p.watchSubKeyFiles(path, key); err != nil {
			return key, err
		}
	}

	p.log.Debug("path registered",
		"path", path,
		"wd", wd,
		"kinds", kinds.String(),
		"sub_keys", len(key.SubKeys()))
	return key, nil
}

// createWatchDescriptor asks the event producer for a new monitor.
func (p *Poller) createWatchDescriptor(monPath string) (int, error) {
	wd, err := p.source.RegisterPath(p.nextSlot, monPath)
	if err != nil {
		return watchkey.InvalidWatchDescriptor,
			fmt.Errorf("failed to register monitor path %s: %w", monPath, err)
	}
	p.nextSlot++
	return wd, nil
}

// watchSubKeyFiles creates one sub-key per regular file directly inside
// root (non-recursive). Stops at the first failure, keeping the sub-keys
// already created.
func (p *Poller) watchSubKeyFiles(root string, key *watchkey.TopLevelKey) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s: %w", root, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, err := p.createSubKey(filepath.Join(root, entry.Name()), key); err != nil {
			return err
		}
	}
	return nil
}

// createSubKey allocates a file monitor and attaches the sub-key to its
// owning TopLevelKey.
func (p *Poller) createSubKey(filePath string, parent *watchkey.TopLevelKey) (*watchkey.SubKey, error) {
	monPath := ahafs.MonitorPath(p.cfg.MountPoint, filePath, false)

	wd, err := p.createWatchDescriptor(monPath)
	if err != nil {
		return nil, err
	}

	sub := watchkey.NewSubKey(wd, filePath, parent.WatchDescriptor())
	p.registry.Add(sub)
	parent.AddSubKey(sub)
	return sub, nil
}

// cancelKey cancels one key; a TopLevelKey's sub-keys go first so the
// invariant that sub-keys never outlive their parent holds.
func (p *Poller) cancelKey(k watchkey.Key) {
	switch key := k.(type) {
	case *watchkey.TopLevelKey:
		for _, sub := range key.SubKeys() {
			p.cancelOne(sub)
		}
		p.cancelOne(key)
	case *watchkey.SubKey:
		p.cancelOne(key)
	}
}

// cancelOne releases a single key's native resources and registry entry.
// Resources already gone are treated as cancelled, keeping the operation
// idempotent.
func (p *Poller) cancelOne(k watchkey.Key) {
	if k.State() == watchkey.Cancelled {
		return
	}

	if err := p.source.CancelWatch(p.nextSlot, k.WatchDescriptor()); err != nil {
		p.log.Warn("failed to cancel watch descriptor",
			"wd", k.WatchDescriptor(),
			"error", err)
	}

	switch key := k.(type) {
	case *watchkey.TopLevelKey:
		p.removeMonitorPath(ahafs.MonitorPath(p.cfg.MountPoint, key.Watchable(), true))
		key.MarkCancelled()
	case *watchkey.SubKey:
		p.removeMonitorPath(ahafs.MonitorPath(p.cfg.MountPoint, key.Watchable(), false))
		if parent, ok := p.registry.Resolve(key); ok {
			parent.RemoveSubKey(key.WatchDescriptor())
		}
		key.MarkCancelled()
	}

	p.registry.Remove(k.WatchDescriptor())
}

// removeMonitorPath deletes the monitor file registering interest. A
// missing file means interest is already gone.
func (p *Poller) removeMonitorPath(monPath string) {
	if err := os.Remove(monPath); err != nil && !os.IsNotExist(err) {
		p.log.Warn("unable to remove monitor path", "path", monPath, "error", err)
	}
}

// closeAll cancels every key and releases the event source.
func (p *Poller) closeAll() {
	for _, k := range p.registry.Keys() {
		if k.State() != watchkey.Cancelled {
			p.cancelKey(k)
		}
	}

	if err := p.source.Close(); err != nil {
		p.log.Warn("failed to close event source", "error", err)
	}

	p.nextSlot = 1
	p.closed = true
	p.queue.Close()
	p.log.Info("poller closed")
}

// processPollEvent applies one parsed event: structural updates to the
// sub-key set first, then the user-visible signal. Structural updates
// must complete before the next event in the same buffer is processed,
// since a later record may reference the sub-key just created or removed.
func (p *Poller) processPollEvent(ev parser.PollEvent) error {
	receiver, ok := p.registry.Resolve(ev.Key)
	if !ok {
		p.log.Debug("event for unresolvable key dropped",
			"wd", ev.Key.WatchDescriptor())
		return nil
	}

	switch {
	case ev.Kind == watchkey.Create && receiver.IsWatching(watchkey.Modify) && ev.FileName != "":
		// A new file in a modify-watched directory gets its own monitor.
		if _, err := p.createSubKey(filepath.Join(receiver.Watchable(), ev.FileName), receiver); err != nil {
			return err
		}

	case ev.Kind == watchkey.Delete && receiver.IsWatching(watchkey.Modify) && ev.FileName != "":
		// Cancel the sub-key of the deleted file, but not the receiver.
		if sub, found := receiver.SubKeyFor(filepath.Join(receiver.Watchable(), ev.FileName)); found {
			p.cancelOne(sub)
		}
	}

	// Only signal kinds the receiver asked for. Overflow is always
	// delivered: losing records is something every caller must see.
	if ev.Kind == watchkey.Overflow || receiver.IsWatching(ev.Kind) {
		receiver.Signal(ev.Kind, p.eventContext(ev))
	}
	return nil
}

// eventContext picks the name delivered with a signaled event: the
// producer-reported file name when present, otherwise the monitored
// file's name for sub-key events.
func (p *Poller) eventContext(ev parser.PollEvent) string {
	if ev.FileName != "" {
		return ev.FileName
	}
	if sub, ok := ev.Key.(*watchkey.SubKey); ok {
		return filepath.Base(sub.Watchable())
	}
	return ""
}
