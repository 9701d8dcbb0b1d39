package watchkey

// Registry maps watch descriptors to keys. One entry exists per successful
// native registration: one for every TopLevelKey and one for every SubKey.
//
// The registry is owned by the poller goroutine; all mutation and lookup
// happens there, so it carries no locking of its own.
type Registry struct {
	keys map[int]Key
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[int]Key)}
}

// Add inserts a key under its watch descriptor.
func (r *Registry) Add(k Key) {
	r.keys[k.WatchDescriptor()] = k
}

// Remove deletes the entry for the given watch descriptor.
func (r *Registry) Remove(wd int) {
	delete(r.keys, wd)
}

// Get returns the key registered under wd.
func (r *Registry) Get(wd int) (Key, bool) {
	k, ok := r.keys[wd]
	return k, ok
}

// Contains reports whether wd is registered.
func (r *Registry) Contains(wd int) bool {
	_, ok := r.keys[wd]
	return ok
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	return len(r.keys)
}

// Keys returns a snapshot of all registered keys.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.keys))
	for _, k := range r.keys {
		keys = append(keys, k)
	}
	return keys
}

// TopLevelKeys returns a snapshot of the registered TopLevelKeys.
func (r *Registry) TopLevelKeys() []*TopLevelKey {
	tops := make([]*TopLevelKey, 0, len(r.keys))
	for _, k := range r.keys {
		if top, ok := k.(*TopLevelKey); ok {
			tops = append(tops, top)
		}
	}
	return tops
}

// Resolve returns the TopLevelKey owning k: k itself for a TopLevelKey,
// or the registered parent for a SubKey. Resolution fails when a SubKey's
// parent has already been removed from the registry.
func (r *Registry) Resolve(k Key) (*TopLevelKey, bool) {
	switch key := k.(type) {
	case *TopLevelKey:
		return key, true
	case *SubKey:
		parent, ok := r.keys[key.ParentDescriptor()]
		if !ok {
			return nil, false
		}
		top, ok := parent.(*TopLevelKey)
		return top, ok
	default:
		return nil, false
	}
}
