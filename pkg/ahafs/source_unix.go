//go:build aix || linux || darwin

package ahafs

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/0xmhha/fswatch/pkg/logger"
)

// monitorSpec is written to a monitor file to arm it: report content
// changes and unblock waiters sitting in select/poll.
const monitorSpec = "CHANGED=YES;WAIT_TYPE=WAIT_IN_SELECT;INFO_LVL=1\n"

// unixSource implements EventSource against the event-producer
// filesystem using poll(2). Slot 0 of the descriptor table is the listen
// end of a socketpair used purely for wakeup signaling; monitor
// descriptors double as watch descriptors.
type unixSource struct {
	log logger.Logger

	listenFd int
	notifyFd int
	fds      []unix.PollFd
	closed   bool
}

// NewPlatformSource returns the event source for this host: the
// event-producer filesystem backed one.
func NewPlatformSource(log logger.Logger) (EventSource, error) {
	return NewUnixSource(log)
}

// NewUnixSource creates an event source backed by the host's
// event-producer filesystem.
func NewUnixSource(log logger.Logger) (EventSource, error) {
	sp, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &NativeError{Op: "socketpair", Err: err}
	}

	s := &unixSource{
		log:      log,
		listenFd: sp[0],
		notifyFd: sp[1],
	}
	s.fds = make([]unix.PollFd, 1, 64)
	s.fds[0] = unix.PollFd{Fd: int32(sp[0]), Events: unix.POLLIN}

	log.Debug("event source initialized",
		"listen_fd", sp[0],
		"notify_fd", sp[1])

	return s, nil
}

// RegisterPath implements EventSource.RegisterPath. Creating the monitor
// file (and its parents) under the event-producer mount registers
// interest; the returned file descriptor is the watch descriptor.
func (s *unixSource) RegisterPath(nextSlot int, monitorPath string) (int, error) {
	if s.closed {
		return -1, ErrSourceClosed
	}
	if nextSlot >= MaxSlots || len(s.fds) >= MaxSlots {
		return -1, ErrSlotTableFull
	}

	if err := os.MkdirAll(filepath.Dir(monitorPath), 0750); err != nil {
		return -1, &NativeError{Op: "register", Path: monitorPath, Err: err}
	}

	fd, err := unix.Open(monitorPath, unix.O_CREAT|unix.O_RDWR, 0640)
	if err != nil {
		return -1, &NativeError{Op: "register", Path: monitorPath, Err: err}
	}

	if _, err := unix.Write(fd, []byte(monitorSpec)); err != nil {
		_ = unix.Close(fd)
		return -1, &NativeError{Op: "register", Path: monitorPath, Err: err}
	}

	s.fds = append(s.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	s.log.Debug("monitor registered", "path", monitorPath, "wd", fd)
	return fd, nil
}

// CancelWatch implements EventSource.CancelWatch. A descriptor no longer
// in the slot table is treated as already cancelled.
func (s *unixSource) CancelWatch(slots, wd int) error {
	for i := 1; i < len(s.fds); i++ {
		if int(s.fds[i].Fd) != wd {
			continue
		}
		if err := unix.Close(wd); err != nil {
			s.log.Warn("failed to close monitor descriptor", "wd", wd, "error", err)
		}
		s.fds = append(s.fds[:i], s.fds[i+1:]...)
		return nil
	}
	return nil
}

// Poll implements EventSource.Poll.
func (s *unixSource) Poll(slots int, timeout time.Duration, buf []byte) (int, error) {
	if s.closed {
		return 0, ErrSourceClosed
	}

	n, err := unix.Poll(s.fds, int(timeout/time.Millisecond))
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, &NativeError{Op: "poll", Err: err}
	}
	if n == 0 {
		if len(buf) > 0 {
			buf[0] = 0
		}
		return 0, nil
	}

	// Drain wakeup bytes so the next poll blocks again.
	if s.fds[0].Revents&unix.POLLIN != 0 {
		var drain [64]byte
		_, _ = unix.Read(s.listenFd, drain[:])
		s.fds[0].Revents = 0
	}

	var w bytes.Buffer
	count := 0
	chunk := make([]byte, 512)

	for i := 1; i < len(s.fds); i++ {
		if s.fds[i].Revents&unix.POLLIN == 0 {
			s.fds[i].Revents = 0
			continue
		}
		s.fds[i].Revents = 0

		rn, rerr := unix.Read(int(s.fds[i].Fd), chunk)
		if rerr != nil || rn <= 0 {
			continue
		}

		framed := frameRecord(int(s.fds[i].Fd), chunk[:rn])
		if w.Len()+len(framed)+1 > len(buf) {
			// Out of room; remaining descriptors stay readable and are
			// picked up by the next poll cycle.
			break
		}
		w.Write(framed)
		count++
	}

	written := copy(buf, w.Bytes())
	if written < len(buf) {
		buf[written] = 0
	}
	return count, nil
}

// frameRecord wraps raw producer output in BEGIN_WD/END_WD markers so the
// event-log parser can attribute it to a watch descriptor.
func frameRecord(wd int, raw []byte) []byte {
	var w bytes.Buffer
	w.WriteString("BEGIN_WD=")
	w.WriteString(strconv.Itoa(wd))
	w.WriteByte('\n')
	w.Write(bytes.TrimRight(raw, "\x00"))
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		w.WriteByte('\n')
	}
	w.WriteString("END_WD\n")
	return w.Bytes()
}

// Wakeup implements EventSource.Wakeup.
func (s *unixSource) Wakeup() error {
	if s.closed {
		return nil
	}
	if _, err := unix.Write(s.notifyFd, []byte{0}); err != nil {
		return &NativeError{Op: "wakeup", Err: err}
	}
	return nil
}

// Close implements EventSource.Close.
func (s *unixSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	for i := 1; i < len(s.fds); i++ {
		if err := unix.Close(int(s.fds[i].Fd)); err != nil {
			s.log.Warn("failed to close monitor descriptor",
				"wd", s.fds[i].Fd,
				"error", err)
		}
	}
	s.fds = nil

	_ = unix.Close(s.listenFd)
	_ = unix.Close(s.notifyFd)

	s.log.Debug("event source closed")
	return nil
}
