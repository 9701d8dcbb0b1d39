package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/0xmhha/fswatch/pkg/ahafs"
	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/poller"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// WatchService is the registrar callers interact with. It owns the ready
// queue and the poller, and tracks which paths are registered so repeated
// registrations return the existing key.
type WatchService struct {
	log    logger.Logger
	queue  *watchkey.Queue
	poller *poller.Poller

	mu         sync.Mutex
	registered map[string]*watchkey.TopLevelKey
	closed     bool
}

// New creates a watch service and starts its poller goroutine.
func New(cfg Config, log logger.Logger) (*WatchService, error) {
	source := cfg.Source
	if source == nil {
		var err error
		source, err = ahafs.NewPlatformSource(log)
		if err != nil {
			return nil, fmt.Errorf("failed to create event source: %w", err)
		}
	}

	queue := watchkey.NewQueue()
	p := poller.New(poller.Config{
		MountPoint:      cfg.MountPoint,
		PollTimeout:     cfg.PollTimeout,
		EventBufferSize: cfg.EventBufferSize,
	}, source, queue, log)
	p.Start()

	log.Info("watch service started")

	return &WatchService{
		log:        log,
		queue:      queue,
		poller:     p,
		registered: make(map[string]*watchkey.TopLevelKey),
	}, nil
}

// Register watches path for the given event kinds and returns its key.
//
// Registering a path that is already registered returns the existing key
// unchanged; a differing kind set on the second call is ignored. This is
// a documented limitation, kept for compatibility with the original
// registration semantics.
//
// Modifiers are not supported and any non-empty modifier list fails with
// ErrUnsupportedModifier. Paths that do not resolve to a directory fail
// with ErrNotDirectory.
func (s *WatchService) Register(path string, kinds watchkey.Kind, modifiers ...Modifier) (*watchkey.TopLevelKey, error) {
	if len(modifiers) > 0 {
		return nil, ErrUnsupportedModifier
	}
	if kinds == 0 {
		return nil, ErrNoEventKinds
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch path: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if key, ok := s.registered[abs]; ok {
		return key, nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	key, err := s.poller.Register(abs, kinds)
	if err != nil {
		return nil, err
	}

	s.registered[abs] = key
	s.log.Debug("registered watch", "path", abs, "kinds", kinds.String())
	return key, nil
}

// Registered returns the key currently registered for path, if any.
func (s *WatchService) Registered(path string) (*watchkey.TopLevelKey, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.registered[abs]
	return key, ok
}

// Cancel releases key and all of its sub-keys. The path can be
// registered again afterwards.
func (s *WatchService) Cancel(key watchkey.Key) error {
	if err := s.poller.Cancel(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if top, ok := key.(*watchkey.TopLevelKey); ok {
		delete(s.registered, top.Watchable())
	}
	return nil
}

// Take blocks until a key has signaled events, the context is done, or
// the service is closed.
func (s *WatchService) Take(ctx context.Context) (*watchkey.TopLevelKey, error) {
	return s.queue.Take(ctx)
}

// PollKey returns the next signaled key without blocking, or nil.
func (s *WatchService) PollKey() *watchkey.TopLevelKey {
	return s.queue.Poll()
}

// Done is closed once the poller has terminated, whether through Close or
// a fatal native failure.
func (s *WatchService) Done() <-chan struct{} {
	return s.poller.Done()
}

// Close cancels every key and releases all native resources. Idempotent.
func (s *WatchService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.registered = make(map[string]*watchkey.TopLevelKey)
	s.mu.Unlock()

	err := s.poller.Close()
	s.log.Info("watch service closed")
	return err
}
