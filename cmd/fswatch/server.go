package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/0xmhha/fswatch/pkg/config"
	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/store"
	"github.com/0xmhha/fswatch/pkg/stream"
	"github.com/0xmhha/fswatch/pkg/watcher"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// serveCommand runs the event streaming daemon.
type serveCommand struct {
	addr       string
	configPath string
}

// Execute runs the serve command.
func (c *serveCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	log := newLogger(cfg)

	defaultKinds, err := cfg.DefaultKinds()
	if err != nil {
		return err
	}

	svc, err := watcher.New(watcher.Config{
		MountPoint:      cfg.MountPoint,
		PollTimeout:     cfg.Watch.PollTimeout,
		EventBufferSize: cfg.Watch.EventBufferSize,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create watch service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("failed to close watch service", "error", err)
		}
	}()

	db, journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close journal", "error", err)
		}
	}()

	hub := stream.NewHub(stream.Config{
		SendBufferSize: cfg.Server.SendBufferSize,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, log)
	defer hub.Close()

	srv := &server{
		log:          log,
		svc:          svc,
		journal:      journal,
		hub:          hub,
		defaultKinds: defaultKinds,
	}

	if err := srv.restoreRegistrations(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Hot-reload the default kind set for new registrations.
	if c.configPath != "" {
		stop, err := config.WatchFile(c.configPath, log, func(next *config.Config) {
			kinds, err := next.DefaultKinds()
			if err != nil {
				log.Warn("reloaded config has invalid kinds, keeping current", "error", err)
				return
			}
			srv.setDefaultKinds(kinds)
		})
		if err != nil {
			log.Warn("config hot-reload unavailable", "error", err)
		} else {
			defer stop()
		}
	}

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- stream.NewPump(svc, hub, log).Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/watches", srv.handleWatches)
	mux.Handle("/events", hub)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming responses manage their own deadlines
	}

	httpDone := make(chan error, 1)
	go func() {
		log.Info("streaming server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpDone <- err
			return
		}
		httpDone <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-httpDone:
		if err != nil {
			return fmt.Errorf("streaming server failed: %w", err)
		}
	case <-svc.Done():
		log.Error("watch service terminated")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}

	<-pumpDone
	return nil
}

// server holds the daemon's shared state and HTTP handlers.
type server struct {
	log     logger.Logger
	svc     *watcher.WatchService
	journal store.RegistrationStore
	hub     *stream.Hub

	mu           sync.Mutex
	defaultKinds watchkey.Kind
}

func (s *server) setDefaultKinds(kinds watchkey.Kind) {
	s.mu.Lock()
	s.defaultKinds = kinds
	s.mu.Unlock()
	s.log.Info("default kinds updated", "kinds", kinds.String())
}

func (s *server) getDefaultKinds() watchkey.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultKinds
}

// restoreRegistrations re-registers every journaled path. Paths that no
// longer exist are removed from the journal.
func (s *server) restoreRegistrations() error {
	regs, err := s.journal.All()
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	for _, reg := range regs {
		if _, err := s.svc.Register(reg.Path, reg.Kinds); err != nil {
			s.log.Warn("dropping stale registration", "path", reg.Path, "error", err)
			if delErr := s.journal.Delete(reg.Path); delErr != nil {
				return fmt.Errorf("failed to prune journal: %w", delErr)
			}
			continue
		}
		s.log.Info("restored registration", "path", reg.Path, "kinds", reg.Kinds.String())
	}

	return nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// watchRequest is the POST /watches payload.
type watchRequest struct {
	Path  string `json:"path"`
	Kinds string `json:"kinds,omitempty"`
}

// watchResponse describes one active registration.
type watchResponse struct {
	Path  string `json:"path"`
	Kinds string `json:"kinds"`
}

func (s *server) handleWatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listWatches(w, r)
	case http.MethodPost:
		s.addWatch(w, r)
	case http.MethodDelete:
		s.removeWatch(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) listWatches(w http.ResponseWriter, _ *http.Request) {
	regs, err := s.journal.All()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]watchResponse, 0, len(regs))
	for _, reg := range regs {
		resp = append(resp, watchResponse{Path: reg.Path, Kinds: reg.Kinds.String()})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("failed to encode watch list", "error", err)
	}
}

func (s *server) addWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	kinds := s.getDefaultKinds()
	if req.Kinds != "" {
		parsed, err := watchkey.ParseKinds(req.Kinds)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid kinds %q", req.Kinds), http.StatusBadRequest)
			return
		}
		kinds = parsed
	}

	key, err := s.svc.Register(req.Path, kinds)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, watcher.ErrNotDirectory) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	if err := s.journal.Save(key.Watchable(), kinds); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("watch added", "path", key.Watchable(), "kinds", kinds.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(watchResponse{
		Path:  key.Watchable(),
		Kinds: kinds.String(),
	}); err != nil {
		s.log.Warn("failed to encode watch response", "error", err)
	}
}

func (s *server) removeWatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	key, ok := s.svc.Registered(path)
	if !ok {
		http.Error(w, "path is not watched", http.StatusNotFound)
		return
	}

	if err := s.svc.Cancel(key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.journal.Delete(key.Watchable()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("watch removed", "path", key.Watchable())
	w.WriteHeader(http.StatusNoContent)
}
