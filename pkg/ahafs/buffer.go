package ahafs

import "sync"

// eventBufPool recycles event-sized buffers between poll cycles.
var eventBufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, EventBufferSize)
	},
}

// Buffer is an explicitly owned byte region. The owner must call Release
// exactly once when done; event-sized buffers are recycled through a pool.
type Buffer struct {
	data     []byte
	released bool
}

// NewBuffer acquires a buffer of the given size.
func NewBuffer(size int) *Buffer {
	if size == EventBufferSize {
		return &Buffer{data: eventBufPool.Get().([]byte)}
	}
	return &Buffer{data: make([]byte, size)}
}

// Bytes returns the underlying region, or nil after Release.
func (b *Buffer) Bytes() []byte {
	if b.released {
		return nil
	}
	return b.data
}

// Len returns the buffer capacity, or zero after Release.
func (b *Buffer) Len() int {
	if b.released {
		return 0
	}
	return len(b.data)
}

// Release returns the region to the pool. Idempotent.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	if len(b.data) == EventBufferSize {
		eventBufPool.Put(b.data) // nolint:staticcheck
	}
	b.data = nil
}

// WithBuffer runs fn with a freshly acquired buffer of the given size and
// releases it on every exit path.
func WithBuffer(size int, fn func([]byte) error) error {
	buf := NewBuffer(size)
	defer buf.Release()
	return fn(buf.Bytes())
}
