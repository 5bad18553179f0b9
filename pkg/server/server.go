// Package server exposes a reactive sheet over HTTP and WebSocket.
//
// The sheet and its runtime are owned by a single goroutine started by
// Start. Handlers never touch the sheet directly; they hand work to the
// runtime with Runtime.Call and wait for the resulting propagation to
// settle. Every settled change is pushed to WebSocket clients and, when a
// store is configured, saved as a snapshot.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/sheet"
	"github.com/vango-dev/reactive/pkg/store"
)

// ErrNotStarted is returned by operations that need the runtime loop.
var ErrNotStarted = errors.New("server: not started")

// Server serves one sheet.
type Server struct {
	config *Config
	rt     *reactive.Runtime
	sheet  *sheet.Sheet
	store  store.Store
	hub    *Hub
	logger *slog.Logger

	router   chi.Router
	upgrader websocket.Upgrader

	httpServer *http.Server

	// Runtime loop.
	mu        sync.Mutex
	started   bool
	stopLoop  context.CancelFunc
	loopDone  chan struct{}
	stopWatch func()

	// mutations is only touched on the runtime goroutine.
	mutations uint64

	saveMu   sync.Mutex
	savedSeq uint64
}

// New creates a server for sh, which must belong to rt. st may be nil, in
// which case nothing is persisted.
func New(config *Config, rt *reactive.Runtime, sh *sheet.Sheet, st store.Store) *Server {
	config = config.withDefaults()
	logger := rt.Logger().With("component", "server")

	s := &Server{
		config: config,
		rt:     rt,
		sheet:  sh,
		store:  st,
		hub:    NewHub(config.SendQueue, logger),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the runtime loop, restores the saved snapshot if there is
// one, and begins publishing changes. It must be called once, before the
// handler serves requests.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.stopLoop = cancel
	s.loopDone = make(chan struct{})
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.loopDone)
		s.rt.Run(loopCtx)
	}()

	if err := s.restore(ctx); err != nil {
		s.Close()
		return err
	}

	err := s.rt.Call(ctx, func() error {
		s.stopWatch = s.sheet.Watch(s.publish)
		return nil
	})
	if err != nil {
		s.Close()
		return fmt.Errorf("server: start watch: %w", err)
	}
	return nil
}

// restore loads the snapshot from the store into the sheet.
func (s *Server) restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load(ctx, s.config.SnapshotKey)
	if err != nil {
		return fmt.Errorf("server: load snapshot: %w", err)
	}
	if data == nil {
		s.logger.Info("no snapshot found, starting empty", "key", s.config.SnapshotKey)
		return nil
	}
	snap, err := store.DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("server: load snapshot: %w", err)
	}

	err = s.rt.Call(ctx, func() error {
		return s.sheet.Restore(snap.Entries)
	})
	if rejected(err) {
		return fmt.Errorf("server: restore snapshot: %w", err)
	}
	if err != nil {
		s.logger.Warn("snapshot restored with errors", "error", err)
	}
	s.logger.Info("snapshot restored",
		"key", s.config.SnapshotKey,
		"entries", len(snap.Entries),
		"saved_at", snap.SavedAt)
	return nil
}

// publish runs on the runtime goroutine for every change to an entry.
func (s *Server) publish(name string, v sheet.Value) {
	_, err := s.sheet.Raw(name)
	s.hub.Broadcast(UpdateMessage{
		Type:    msgUpdate,
		Name:    name,
		Value:   encodeValue(v),
		Removed: errors.Is(err, sheet.ErrNotFound),
	})
}

// rejected reports whether err means a mutation was refused outright, as
// opposed to applied with a propagation error.
func rejected(err error) bool {
	return errors.Is(err, sheet.ErrInvalidName) ||
		errors.Is(err, sheet.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// mutate runs op on the runtime goroutine and saves the result. Errors from
// propagation are returned but the change is kept and saved.
func (s *Server) mutate(ctx context.Context, op func() error) error {
	if !s.running() {
		return ErrNotStarted
	}
	err := s.rt.Call(ctx, op)
	if rejected(err) {
		return err
	}
	// The change is applied; save it even if the caller stops waiting.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CallTimeout)
	defer cancel()
	if perr := s.persist(saveCtx); perr != nil {
		s.logger.Error("snapshot save failed", "error", perr)
	}
	return err
}

// persist saves the current sheet. Saves that lose a race to a newer
// snapshot are skipped.
func (s *Server) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	var (
		snap map[string]string
		seq  uint64
	)
	err := s.rt.Call(ctx, func() error {
		s.mutations++
		seq = s.mutations
		snap = s.sheet.Snapshot()
		return nil
	})
	if err != nil {
		return fmt.Errorf("server: snapshot: %w", err)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if seq <= s.savedSeq {
		return nil
	}
	data, err := store.EncodeSnapshot(snap, time.Now())
	if err != nil {
		return fmt.Errorf("server: encode snapshot: %w", err)
	}
	if err := s.store.Save(ctx, s.config.SnapshotKey, data); err != nil {
		return fmt.Errorf("server: save snapshot: %w", err)
	}
	s.savedSeq = seq
	return nil
}

func (s *Server) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Close stops publishing, disconnects clients and stops the runtime loop.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.CallTimeout)
	defer cancel()
	err := s.rt.Call(ctx, func() error {
		if s.stopWatch != nil {
			s.stopWatch()
			s.stopWatch = nil
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("stop watch failed", "error", err)
	}

	s.stopLoop()
	<-s.loopDone
}

// Run starts the server and serves HTTP until ctx is done or the process
// receives SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests, saves a final snapshot and stops the
// runtime loop.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.hub.Close()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if s.running() {
		if err := s.persist(ctx); err != nil {
			s.logger.Error("final snapshot save failed", "error", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	s.Close()

	if shutdownErr == nil {
		s.logger.Info("server shutdown complete")
	}
	return shutdownErr
}
