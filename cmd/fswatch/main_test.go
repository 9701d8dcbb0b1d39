package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/0xmhha/fswatch/pkg/ahafs"
	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/store"
	"github.com/0xmhha/fswatch/pkg/stream"
	"github.com/0xmhha/fswatch/pkg/watcher"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// TestWatchCommandFlags tests watch command flag parsing.
func TestWatchCommandFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCmd   watchCommand
		wantError bool
	}{
		{
			name: "single directory",
			args: []string{"/var/spool"},
			wantCmd: watchCommand{
				paths:      []string{"/var/spool"},
				configPath: "/test/config.yaml",
			},
		},
		{
			name: "kinds flag",
			args: []string{"-kinds", "create,delete", "/var/spool"},
			wantCmd: watchCommand{
				paths:      []string{"/var/spool"},
				kinds:      "create,delete",
				configPath: "/test/config.yaml",
			},
		},
		{
			name: "journal flag",
			args: []string{"-journal", "/var/spool", "/var/log"},
			wantCmd: watchCommand{
				paths:      []string{"/var/spool", "/var/log"},
				journal:    true,
				configPath: "/test/config.yaml",
			},
		},
		{
			name:      "no directories",
			args:      []string{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("watch", flag.ContinueOnError)
			kinds := fs.String("kinds", "", "")
			journal := fs.Bool("journal", false, "")

			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			if fs.NArg() == 0 {
				if !tt.wantError {
					t.Error("expected directories but got none")
				}
				return
			}
			if tt.wantError {
				t.Fatal("expected an error")
			}

			got := watchCommand{
				paths:      fs.Args(),
				kinds:      *kinds,
				journal:    *journal,
				configPath: "/test/config.yaml",
			}
			if !reflect.DeepEqual(got, tt.wantCmd) {
				t.Errorf("watchCommand = %+v, want %+v", got, tt.wantCmd)
			}
		})
	}
}

func newTestServer(t *testing.T) (*server, *ahafs.MemorySource) {
	t.Helper()

	src := ahafs.NewMemorySource()
	svc, err := watcher.New(watcher.Config{
		Source:      src,
		PollTimeout: 50 * time.Millisecond,
	}, logger.Noop())
	if err != nil {
		t.Fatalf("watcher.New() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	hub := stream.NewHub(stream.Config{}, logger.Noop())
	t.Cleanup(hub.Close)

	return &server{
		log:          logger.Noop(),
		svc:          svc,
		journal:      store.NewMemoryStore(),
		hub:          hub,
		defaultKinds: watchkey.Create | watchkey.Delete,
	}, src
}

func TestServerAddWatch(t *testing.T) {
	srv, src := newTestServer(t)
	dir := t.TempDir()

	body, _ := json.Marshal(watchRequest{Path: dir, Kinds: "create"})
	req := httptest.NewRequest(http.MethodPost, "/watches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if src.WatchCount() != 1 {
		t.Errorf("WatchCount() = %d, want 1", src.WatchCount())
	}

	regs, err := srv.journal.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(regs) != 1 || regs[0].Kinds != watchkey.Create {
		t.Errorf("journal = %+v, want one CREATE registration", regs)
	}
}

func TestServerAddWatchDefaults(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()

	body, _ := json.Marshal(watchRequest{Path: dir})
	req := httptest.NewRequest(http.MethodPost, "/watches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	regs, _ := srv.journal.All()
	if len(regs) != 1 || regs[0].Kinds != watchkey.Create|watchkey.Delete {
		t.Errorf("journal = %+v, want default kinds", regs)
	}
}

func TestServerAddWatchRejectsFile(t *testing.T) {
	srv, _ := newTestServer(t)

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	body, _ := json.Marshal(watchRequest{Path: file})
	req := httptest.NewRequest(http.MethodPost, "/watches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServerAddWatchBadKinds(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(watchRequest{Path: t.TempDir(), Kinds: "explode"})
	req := httptest.NewRequest(http.MethodPost, "/watches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServerRemoveWatch(t *testing.T) {
	srv, src := newTestServer(t)
	dir := t.TempDir()

	key, err := srv.svc.Register(dir, watchkey.Create)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := srv.journal.Save(key.Watchable(), watchkey.Create); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/watches?path="+dir, nil)
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if src.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d, want 0", src.WatchCount())
	}

	regs, _ := srv.journal.All()
	if len(regs) != 0 {
		t.Errorf("journal = %+v, want empty", regs)
	}
}

func TestServerRemoveUnknownWatch(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/watches?path=/never/watched", nil)
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServerListWatches(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()

	if err := srv.journal.Save(dir, watchkey.Create); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/watches", nil)
	rec := httptest.NewRecorder()
	srv.handleWatches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []watchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(resp) != 1 || resp[0].Path != dir || resp[0].Kinds != "CREATE" {
		t.Errorf("response = %+v, want one CREATE watch on %s", resp, dir)
	}
}

func TestServerRestoreRegistrations(t *testing.T) {
	srv, src := newTestServer(t)
	dir := t.TempDir()

	if err := srv.journal.Save(dir, watchkey.Create); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// A journaled path that no longer exists must be pruned, not fatal.
	if err := srv.journal.Save(filepath.Join(dir, "vanished"), watchkey.Create); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := srv.restoreRegistrations(); err != nil {
		t.Fatalf("restoreRegistrations() error = %v", err)
	}

	if src.WatchCount() != 1 {
		t.Errorf("WatchCount() = %d, want 1", src.WatchCount())
	}

	regs, _ := srv.journal.All()
	if len(regs) != 1 || regs[0].Path != dir {
		t.Errorf("journal = %+v, want only %s", regs, dir)
	}
}
