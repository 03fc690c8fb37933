// Package monitor serves the progress of a running import over HTTP.
//
// GET /status returns the current snapshot as JSON. GET /ws upgrades to a
// websocket and pushes a snapshot every interval until the run ends, the
// server shuts down, or the client goes away. Shutdown pushes one last
// snapshot to every open websocket before closing it.
package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dotaloader/internal/engine"
	"dotaloader/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// DefaultInterval is how often /ws pushes a snapshot
const DefaultInterval = time.Second

// SnapshotSource reports run progress. *engine.Engine implements it.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// Server is the status HTTP server
type Server struct {
	source   SnapshotSource
	interval time.Duration
	logger   *slog.Logger
	router   *chi.Mux
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	closing bool
	done    chan struct{}
	streams sync.WaitGroup
}

// NewServer creates a Server. interval <= 0 uses DefaultInterval.
func NewServer(source SnapshotSource, interval time.Duration, logger *slog.Logger) *Server {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		source:   source,
		interval: interval,
		logger:   logger.With("component", "monitor"),
		router:   chi.NewRouter(),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/status", s.handleStatus)
	s.router.Get("/ws", s.handleWS)
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("Status server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown sends a final snapshot to open websockets, waits for them to
// close, then stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closing {
		s.closing = true
		close(s.done)
	}
	srv := s.server
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("Websocket streams still open at shutdown", "error", ctx.Err())
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// track registers a websocket stream unless the server is shutting down
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.streams.Add(1)
	return true
}

// Router returns the underlying chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.NewContext(r.Context(), s.logger)
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.FromContext(ctx).Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(s.source.Snapshot())
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to encode snapshot", "error", err)
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := false
	for {
		snap := s.source.Snapshot()
		data, err := json.Marshal(snap)
		if err != nil {
			logger.Error("Failed to encode snapshot", "error", err)
			return
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("Websocket client gone", "error", err)
			return
		}
		if last || finished(snap.State) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, snap.State))
			return
		}

		select {
		case <-ticker.C:
		case <-s.done:
			last = true
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func finished(state string) bool {
	switch state {
	case engine.StateCompleted, engine.StateAborted, engine.StateCanceled:
		return true
	}
	return false
}
