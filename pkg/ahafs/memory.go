package ahafs

import (
	"bytes"
	"sync"
	"time"
)

// MemorySource is an in-memory EventSource. Tests (and hosts without the
// event-producer filesystem) register paths against it and inject records
// that the next Poll call delivers in wire form.
type MemorySource struct {
	mu      sync.Mutex
	nextWD  int
	watches map[int]string
	pending []Record
	closed  bool

	registerErr      error
	registerErrAfter int
	pollErr          error

	wake chan struct{}
}

// NewMemorySource creates an empty in-memory event source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		watches: make(map[int]string),
		nextWD:  1,
		wake:    make(chan struct{}, 1),
	}
}

// RegisterPath implements EventSource.RegisterPath.
func (s *MemorySource) RegisterPath(nextSlot int, monitorPath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1, ErrSourceClosed
	}
	if s.registerErr != nil {
		if s.registerErrAfter == 0 {
			err := s.registerErr
			s.registerErr = nil
			return -1, err
		}
		s.registerErrAfter--
	}
	if nextSlot >= MaxSlots {
		return -1, ErrSlotTableFull
	}

	wd := s.nextWD
	s.nextWD++
	s.watches[wd] = monitorPath
	return wd, nil
}

// CancelWatch implements EventSource.CancelWatch. Unknown descriptors are
// ignored so cancellation stays idempotent.
func (s *MemorySource) CancelWatch(slots, wd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watches, wd)
	return nil
}

// Poll implements EventSource.Poll. It blocks until records are pending,
// Wakeup is called, or the timeout expires, then renders as many pending
// records as fit into buf.
func (s *MemorySource) Poll(slots int, timeout time.Duration, buf []byte) (int, error) {
	deadline := time.Now().Add(timeout)

	for {
		s.mu.Lock()
		if err := s.pollErr; err != nil {
			s.pollErr = nil
			s.mu.Unlock()
			return 0, err
		}
		if s.closed {
			s.mu.Unlock()
			return 0, ErrSourceClosed
		}
		if len(s.pending) > 0 {
			n := s.renderLocked(buf)
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if len(buf) > 0 {
				buf[0] = 0
			}
			return 0, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// renderLocked writes whole pending records into buf until one no longer
// fits, leaving the remainder for the next poll. Caller holds s.mu.
func (s *MemorySource) renderLocked(buf []byte) int {
	var w bytes.Buffer
	count := 0

	for len(s.pending) > 0 {
		rec := s.pending[0]
		if w.Len()+rec.wireSize()+1 > len(buf) {
			break
		}
		rec.render(&w)
		s.pending = s.pending[1:]
		count++
	}

	n := copy(buf, w.Bytes())
	if n < len(buf) {
		buf[n] = 0
	}
	return count
}

// Wakeup implements EventSource.Wakeup.
func (s *MemorySource) Wakeup() error {
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close implements EventSource.Close.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.watches = make(map[int]string)
	s.pending = nil

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Inject queues a raw record for delivery on the next poll and wakes a
// blocked Poll call.
func (s *MemorySource) Inject(rec Record) {
	s.mu.Lock()
	s.pending = append(s.pending, rec)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// InjectCreate queues a directory-monitor creation record for wd.
func (s *MemorySource) InjectCreate(wd int, fileName string) {
	s.Inject(Record{WD: wd, Code: CodeDirCreate, FileName: fileName})
}

// InjectDelete queues a directory-monitor deletion record for wd.
func (s *MemorySource) InjectDelete(wd int, fileName string) {
	s.Inject(Record{WD: wd, Code: CodeDirDelete, FileName: fileName})
}

// InjectModify queues a file-monitor change record for wd.
func (s *MemorySource) InjectModify(wd int) {
	s.Inject(Record{WD: wd, Code: CodeFileModify})
}

// InjectOverflow queues a producer overflow record for wd.
func (s *MemorySource) InjectOverflow(wd int) {
	s.Inject(Record{WD: wd, Code: CodeOverflow})
}

// WatchCount returns the number of currently registered monitors.
func (s *MemorySource) WatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// Watched returns the monitor path registered under wd.
func (s *MemorySource) Watched(wd int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.watches[wd]
	return path, ok
}

// FailNextRegister makes the next RegisterPath call return err.
func (s *MemorySource) FailNextRegister(err error) {
	s.FailRegisterAfter(0, err)
}

// FailRegisterAfter lets n RegisterPath calls succeed and fails the one
// after them with err.
func (s *MemorySource) FailRegisterAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerErr = err
	s.registerErrAfter = n
}

// FailNextPoll makes the next Poll call return err.
func (s *MemorySource) FailNextPoll(err error) {
	s.mu.Lock()
	s.pollErr = err
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}
