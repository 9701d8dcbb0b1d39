package poller

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/0xmhha/fswatch/pkg/ahafs"
	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// newTestPoller wires a poller to an in-memory event source without
// starting the run loop, so tests can drive it synchronously.
func newTestPoller() (*Poller, *ahafs.MemorySource, *watchkey.Queue) {
	src := ahafs.NewMemorySource()
	queue := watchkey.NewQueue()
	p := New(Config{PollTimeout: 50 * time.Millisecond}, src, queue, logger.Noop())
	return p, src, queue
}

// dirWithFiles creates a temp directory holding the named regular files.
func dirWithFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
	return dir
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRegisterCreatesSubKeys(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t, "a.txt", "b.txt", "c.txt")

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}

	subs := key.SubKeys()
	if len(subs) != 3 {
		t.Fatalf("sub-key count = %d, want 3", len(subs))
	}

	// Each sub-key has a distinct descriptor and a registry entry.
	seen := make(map[int]bool)
	for _, sub := range subs {
		if seen[sub.WatchDescriptor()] {
			t.Errorf("duplicate watch descriptor %d", sub.WatchDescriptor())
		}
		seen[sub.WatchDescriptor()] = true
		if !p.registry.Contains(sub.WatchDescriptor()) {
			t.Errorf("sub-key wd=%d missing from registry", sub.WatchDescriptor())
		}
	}

	// One directory monitor plus three file monitors.
	if src.WatchCount() != 4 {
		t.Errorf("WatchCount() = %d, want 4", src.WatchCount())
	}
}

func TestRegisterSkipsSubdirectories(t *testing.T) {
	p, _, _ := newTestPoller()
	dir := dirWithFiles(t, "a.txt")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0700); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}
	if len(key.SubKeys()) != 1 {
		t.Errorf("sub-key count = %d, want 1 (directories are not monitored)", len(key.SubKeys()))
	}
}

func TestRegisterWithoutModifyCreatesNoSubKeys(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t, "a.txt", "b.txt")

	key, err := p.registerPath(dir, watchkey.Create|watchkey.Delete)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}
	if len(key.SubKeys()) != 0 {
		t.Errorf("sub-key count = %d, want 0", len(key.SubKeys()))
	}
	if src.WatchCount() != 1 {
		t.Errorf("WatchCount() = %d, want 1", src.WatchCount())
	}
}

func TestRegisterNativeFailure(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t)

	src.FailNextRegister(errors.New("evprod exhausted"))

	key, err := p.registerPath(dir, watchkey.Create)
	if err == nil {
		t.Fatal("registerPath() error = nil, want native failure")
	}
	if key != nil {
		t.Errorf("registerPath() key = %v, want nil", key)
	}
	if p.registry.Len() != 0 {
		t.Errorf("registry len = %d after failed registration, want 0", p.registry.Len())
	}
}

func TestRegisterPartialSubKeyFailure(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t, "a.txt", "b.txt", "c.txt")

	// Directory monitor and first sub-key succeed, second sub-key fails.
	src.FailRegisterAfter(2, errors.New("evprod exhausted"))

	key, err := p.registerPath(dir, watchkey.Modify)
	if err == nil {
		t.Fatal("registerPath() error = nil, want sub-key failure")
	}
	if key == nil {
		t.Fatal("registerPath() key = nil, want partially registered key")
	}

	// Best effort: the sub-key created before the failure stays.
	if len(key.SubKeys()) != 1 {
		t.Errorf("sub-key count = %d, want 1", len(key.SubKeys()))
	}
}

// parseAndDispatch feeds a raw buffer through the parser and dispatcher
// exactly like one poll cycle does.
func parseAndDispatch(t *testing.T, p *Poller, text string, expected int) {
	t.Helper()
	buf := make([]byte, ahafs.EventBufferSize)
	copy(buf, text)
	for _, ev := range p.parser.Parse(buf, expected, p.registry.Get) {
		if err := p.processPollEvent(ev); err != nil {
			t.Fatalf("processPollEvent() error = %v", err)
		}
	}
}

func TestCreateEventAddsSubKey(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t)

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}
	before := src.WatchCount()

	rec := recordText(key.WatchDescriptor(), "RC_FROM_EVPROD=1000", "fresh.txt")
	parseAndDispatch(t, p, rec, 1)

	subs := key.SubKeys()
	if len(subs) != 1 {
		t.Fatalf("sub-key count = %d, want 1", len(subs))
	}
	if got := subs[0].Watchable(); got != filepath.Join(dir, "fresh.txt") {
		t.Errorf("sub-key path = %q, want %q", got, filepath.Join(dir, "fresh.txt"))
	}
	if src.WatchCount() != before+1 {
		t.Errorf("WatchCount() = %d, want %d", src.WatchCount(), before+1)
	}

	// CREATE was not requested, so nothing is signaled.
	if events := key.Events(); len(events) != 0 {
		t.Errorf("Events() len = %d, want 0", len(events))
	}
}

func TestDeleteEventCancelsSubKey(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t, "doomed.txt")

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}
	sub := key.SubKeys()[0]

	rec := recordText(key.WatchDescriptor(), "RC_FROM_EVPROD=1002", "doomed.txt")
	parseAndDispatch(t, p, rec, 1)

	if len(key.SubKeys()) != 0 {
		t.Errorf("sub-key count = %d, want 0", len(key.SubKeys()))
	}
	if p.registry.Contains(sub.WatchDescriptor()) {
		t.Error("cancelled sub-key still in registry")
	}
	if sub.State() != watchkey.Cancelled {
		t.Errorf("sub-key state = %v, want CANCELLED", sub.State())
	}
	if _, ok := src.Watched(sub.WatchDescriptor()); ok {
		t.Error("cancelled sub-key still registered with the event source")
	}
}

func TestStructuralUpdateBeforeNextRecord(t *testing.T) {
	p, _, _ := newTestPoller()
	dir := dirWithFiles(t)

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}

	// One buffer: create then delete of the same file. The delete can
	// only find its sub-key if the create's structural update completed
	// first.
	text := recordText(key.WatchDescriptor(), "RC_FROM_EVPROD=1000", "blip.txt") +
		recordText(key.WatchDescriptor(), "RC_FROM_EVPROD=1002", "blip.txt")
	parseAndDispatch(t, p, text, 2)

	if n := len(key.SubKeys()); n != 0 {
		t.Errorf("sub-key count = %d, want 0 after create+delete", n)
	}
	if p.registry.Len() != 1 {
		t.Errorf("registry len = %d, want 1 (only the top-level key)", p.registry.Len())
	}
}

func TestSubKeyEventSignalsParentModify(t *testing.T) {
	p, _, queue := newTestPoller()
	dir := dirWithFiles(t, "live.txt")

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}
	sub := key.SubKeys()[0]

	parseAndDispatch(t, p, recordText(sub.WatchDescriptor(), "RC_FROM_EVPROD=7", ""), 1)

	got := queue.Poll()
	if got != key {
		t.Fatalf("Poll() = %v, want parent key", got)
	}
	events := key.Events()
	if len(events) != 1 {
		t.Fatalf("Events() len = %d, want 1", len(events))
	}
	if events[0].Kind != watchkey.Modify {
		t.Errorf("event kind = %v, want MODIFY", events[0].Kind)
	}
	if events[0].Name != "live.txt" {
		t.Errorf("event name = %q, want live.txt", events[0].Name)
	}
}

func TestUnwatchedKindNotSignaled(t *testing.T) {
	p, _, queue := newTestPoller()
	dir := dirWithFiles(t)

	key, err := p.registerPath(dir, watchkey.Delete)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}

	parseAndDispatch(t, p, recordText(key.WatchDescriptor(), "RC_FROM_EVPROD=1000", "a.txt"), 1)

	if got := queue.Poll(); got != nil {
		t.Errorf("Poll() = %v, want nil for unwatched CREATE", got)
	}
}

func TestOverflowAlwaysSignaled(t *testing.T) {
	p, _, queue := newTestPoller()
	dir := dirWithFiles(t)

	// OVERFLOW was not requested, but record loss is delivered anyway.
	key, err := p.registerPath(dir, watchkey.Create)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}

	parseAndDispatch(t, p, recordText(key.WatchDescriptor(), "BUF_WRAP", ""), 1)

	if got := queue.Poll(); got != key {
		t.Fatalf("Poll() = %v, want registered key", got)
	}
	events := key.Events()
	if len(events) != 1 || events[0].Kind != watchkey.Overflow {
		t.Errorf("events = %+v, want one OVERFLOW", events)
	}
}

func TestCancelCascades(t *testing.T) {
	p, src, _ := newTestPoller()
	dir := dirWithFiles(t, "a.txt", "b.txt")

	key, err := p.registerPath(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("registerPath() error = %v", err)
	}
	subs := key.SubKeys()

	p.cancelKey(key)

	for _, sub := range subs {
		if p.registry.Contains(sub.WatchDescriptor()) {
			t.Errorf("sub-key wd=%d still in registry after cascade", sub.WatchDescriptor())
		}
		if sub.State() != watchkey.Cancelled {
			t.Errorf("sub-key state = %v, want CANCELLED", sub.State())
		}
	}
	if p.registry.Len() != 0 {
		t.Errorf("registry len = %d, want 0", p.registry.Len())
	}
	if key.State() != watchkey.Cancelled {
		t.Errorf("key state = %v, want CANCELLED", key.State())
	}
	if src.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d, want 0", src.WatchCount())
	}
}

func TestRunningPollerEndToEnd(t *testing.T) {
	p, src, queue := newTestPoller()
	p.Start()
	defer func() {
		if err := p.Close(); err != nil {
			t.Logf("Close() error = %v", err)
		}
	}()

	dir := dirWithFiles(t, "live.txt")
	key, err := p.Register(dir, watchkey.Create|watchkey.Modify)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// The file monitor reports a change; the parent key must surface it
	// as MODIFY.
	sub := key.SubKeys()[0]
	src.InjectModify(sub.WatchDescriptor())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	signaled, err := queue.Take(ctx)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if signaled != key {
		t.Fatalf("Take() = %v, want registered key", signaled)
	}

	events := signaled.Events()
	if len(events) != 1 || events[0].Kind != watchkey.Modify {
		t.Fatalf("events = %+v, want one MODIFY", events)
	}
	if !signaled.Reset() {
		t.Error("Reset() = false, want true")
	}

	// A created file grows a new sub-key and signals CREATE.
	src.InjectCreate(key.WatchDescriptor(), "born.txt")

	signaled, err = queue.Take(ctx)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	events = signaled.Events()
	if len(events) != 1 || events[0].Kind != watchkey.Create || events[0].Name != "born.txt" {
		t.Fatalf("events = %+v, want one CREATE born.txt", events)
	}

	waitFor(t, func() bool { return src.WatchCount() == 3 },
		"new sub-key monitor never registered")
}

func TestCloseIdempotent(t *testing.T) {
	p, src, _ := newTestPoller()
	p.Start()

	dir := dirWithFiles(t, "a.txt")
	if _, err := p.Register(dir, watchkey.Modify); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() second call error = %v", err)
	}

	<-p.Done()
	if src.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d after close, want 0", src.WatchCount())
	}
}

func TestRegisterAfterClose(t *testing.T) {
	p, _, _ := newTestPoller()
	p.Start()

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	<-p.Done()

	if _, err := p.Register(t.TempDir(), watchkey.Create); err != ErrPollerClosed {
		t.Errorf("Register() error = %v, want ErrPollerClosed", err)
	}
}

func TestPollFailureShutsDown(t *testing.T) {
	p, src, _ := newTestPoller()
	p.Start()

	dir := dirWithFiles(t, "a.txt")
	if _, err := p.Register(dir, watchkey.Modify); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	src.FailNextPoll(errors.New("evprod poll failure"))

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not shut down after poll failure")
	}

	if _, err := p.Register(dir, watchkey.Create); err != ErrPollerClosed {
		t.Errorf("Register() error = %v, want ErrPollerClosed", err)
	}
}

func TestCancelViaRequestQueue(t *testing.T) {
	p, src, _ := newTestPoller()
	p.Start()
	defer func() {
		if err := p.Close(); err != nil {
			t.Logf("Close() error = %v", err)
		}
	}()

	dir := dirWithFiles(t, "a.txt")
	key, err := p.Register(dir, watchkey.Modify)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := p.Cancel(key); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	// Native resources are gone once Cancel returns.
	if src.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d after cancel, want 0", src.WatchCount())
	}
	if key.State() != watchkey.Cancelled {
		t.Errorf("key state = %v, want CANCELLED", key.State())
	}
}

// recordText renders one wire record for hand-built buffers.
func recordText(wd int, code, fileName string) string {
	var w bytes.Buffer
	w.WriteString("BEGIN_WD=")
	w.WriteString(strconv.Itoa(wd))
	w.WriteByte('\n')
	w.WriteString(code)
	w.WriteByte('\n')
	if fileName != "" {
		w.WriteString("BEGIN_EVPROD_INFO\n")
		w.WriteString(fileName)
		w.WriteString("\nEND_EVPROD_INFO\n")
	}
	w.WriteString("END_WD\n")
	return w.String()
}
