// Package api exposes the edge node's HTTP surface: the WebSocket message
// channel at /, a liveness probe at /health, and a small stats endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/fireline/fireline/internal/edge/dispatch"
	"github.com/fireline/fireline/internal/edge/state"
	"github.com/fireline/fireline/internal/edge/transport"
)

// Server is the HTTP listener for the edge node.
type Server struct {
	addr       string
	httpServer *http.Server
	dispatcher *dispatch.Dispatcher
	store      *state.Store
	startTime  time.Time
}

// Stats summarizes live coordinator state.
type Stats struct {
	Incidents   int   `json:"incidents"`
	Connections int   `json:"connections"`
	ActiveSOS   int   `json:"active_sos"`
	UptimeSec   int64 `json:"uptime_sec"`
}

// NewServer creates the HTTP server for the message channel and probes.
func NewServer(addr string, dispatcher *dispatch.Dispatcher, store *state.Store) *Server {
	s := &Server{
		addr:       addr,
		dispatcher: dispatcher,
		store:      store,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/", s.handleChannel)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests and blocks until shutdown.
func (s *Server) Start() error {
	slog.Info("edge listening", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Debug("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := transport.NewWSConn(ws)
	// Serve blocks for the lifetime of the connection; the request context
	// ends it when the listener shuts down.
	s.dispatcher.Serve(r.Context(), conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := Stats{
		Incidents:   s.store.IncidentCount(),
		Connections: s.store.ConnectionCount(),
		ActiveSOS:   s.store.SOSCount(),
		UptimeSec:   int64(time.Since(s.startTime).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
