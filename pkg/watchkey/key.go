package watchkey

import "sync"

// maxPendingEvents caps the per-key pending queue. Once reached, further
// events collapse into a single trailing Overflow entry.
const maxPendingEvents = 512

// Key is the interface over the two watch-key variants, TopLevelKey and
// SubKey. Dispatch points that care about the variant use a type switch
// over exactly these two types.
type Key interface {
	// WatchDescriptor returns the descriptor assigned by the native
	// event facility, or InvalidWatchDescriptor.
	WatchDescriptor() int

	// Watchable returns the path this key monitors.
	Watchable() string

	// State returns the key's lifecycle state.
	State() State

	// sealed restricts implementations to this package so variant
	// switches stay exhaustive.
	sealed()
}

// TopLevelKey is the key returned to the user for one registration. It
// owns the SubKeys created for files inside a watched directory and the
// FIFO of signaled events awaiting retrieval.
type TopLevelKey struct {
	wd        int
	path      string
	requested Kind
	queue     *Queue

	mu        sync.Mutex
	state     State
	subKeys   map[int]*SubKey
	pending   []Event
	signalled bool
}

// NewTopLevelKey creates an active TopLevelKey. Signaled events are
// announced on queue.
func NewTopLevelKey(wd int, path string, requested Kind, queue *Queue) *TopLevelKey {
	return &TopLevelKey{
		wd:        wd,
		path:      path,
		requested: requested,
		queue:     queue,
		subKeys:   make(map[int]*SubKey),
	}
}

func (k *TopLevelKey) sealed() {}

// WatchDescriptor implements Key.WatchDescriptor.
func (k *TopLevelKey) WatchDescriptor() int { return k.wd }

// Watchable implements Key.Watchable.
func (k *TopLevelKey) Watchable() string { return k.path }

// State implements Key.State.
func (k *TopLevelKey) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// IsWatching reports whether the user requested the given event kind.
func (k *TopLevelKey) IsWatching(kind Kind) bool {
	return k.requested.Has(kind)
}

// RequestedKinds returns the kind set requested at registration.
func (k *TopLevelKey) RequestedKinds() Kind { return k.requested }

// AddSubKey records a SubKey as owned by this key.
func (k *TopLevelKey) AddSubKey(sub *SubKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.subKeys[sub.wd] = sub
}

// RemoveSubKey removes the SubKey with the given watch descriptor.
func (k *TopLevelKey) RemoveSubKey(wd int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.subKeys, wd)
}

// SubKeys returns a snapshot of the currently owned SubKeys.
func (k *TopLevelKey) SubKeys() []*SubKey {
	k.mu.Lock()
	defer k.mu.Unlock()

	subs := make([]*SubKey, 0, len(k.subKeys))
	for _, sub := range k.subKeys {
		subs = append(subs, sub)
	}
	return subs
}

// SubKeyFor returns the SubKey monitoring the given file path.
func (k *TopLevelKey) SubKeyFor(path string) (*SubKey, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, sub := range k.subKeys {
		if sub.path == path {
			return sub, true
		}
	}
	return nil, false
}

// Signal appends an event to the pending queue and announces the key on
// the ready queue if it is not already signaled. Events arriving after
// cancellation are dropped.
func (k *TopLevelKey) Signal(kind Kind, name string) {
	k.mu.Lock()

	if k.state != Active {
		k.mu.Unlock()
		return
	}

	if len(k.pending) >= maxPendingEvents {
		if k.pending[len(k.pending)-1].Kind != Overflow {
			k.pending = append(k.pending, Event{Kind: Overflow})
		}
	} else {
		k.pending = append(k.pending, Event{Kind: kind, Name: name})
	}

	enqueue := !k.signalled
	if enqueue {
		k.signalled = true
	}
	k.mu.Unlock()

	if enqueue {
		k.queue.enqueue(k)
	}
}

// Events drains and returns the pending events in arrival order.
func (k *TopLevelKey) Events() []Event {
	k.mu.Lock()
	defer k.mu.Unlock()

	events := k.pending
	k.pending = nil
	return events
}

// Reset re-arms the key after its events have been retrieved. If events
// arrived while the key was being drained it is re-announced on the ready
// queue. Returns false if the key has been cancelled.
func (k *TopLevelKey) Reset() bool {
	k.mu.Lock()

	if k.state != Active {
		k.mu.Unlock()
		return false
	}

	requeue := len(k.pending) > 0
	if !requeue {
		k.signalled = false
	}
	k.mu.Unlock()

	if requeue {
		k.queue.enqueue(k)
	}
	return true
}

// MarkCancelled transitions the key to the Cancelled state. Intended for
// the poller; it does not release native resources.
func (k *TopLevelKey) MarkCancelled() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = Cancelled
}

// SubKey monitors one regular file inside a watched directory. It carries
// the watch descriptor of its owning TopLevelKey rather than a pointer, so
// ownership is resolved through the registry and cancellation ordering
// cannot leave a dangling reference.
type SubKey struct {
	wd       int
	path     string
	parentWD int

	mu    sync.Mutex
	state State
}

// NewSubKey creates an active SubKey owned by the TopLevelKey with the
// given watch descriptor.
func NewSubKey(wd int, path string, parentWD int) *SubKey {
	return &SubKey{wd: wd, path: path, parentWD: parentWD}
}

func (s *SubKey) sealed() {}

// WatchDescriptor implements Key.WatchDescriptor.
func (s *SubKey) WatchDescriptor() int { return s.wd }

// Watchable implements Key.Watchable.
func (s *SubKey) Watchable() string { return s.path }

// State implements Key.State.
func (s *SubKey) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ParentDescriptor returns the watch descriptor of the owning TopLevelKey.
func (s *SubKey) ParentDescriptor() int { return s.parentWD }

// MarkCancelled transitions the key to the Cancelled state.
func (s *SubKey) MarkCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Cancelled
}
