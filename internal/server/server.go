// Package server provides the HTTP listener of the typing tracker: the
// signaling websocket, metrics, and a small JSON API for inspecting frames,
// history and the transport session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/observe"
	"github.com/alexhamidi/typing-tracker/internal/store"
	"github.com/alexhamidi/typing-tracker/internal/transport"
)

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// SessionReporter exposes the state of the remote frame session.
type SessionReporter interface {
	State() transport.State
}

// ModeSwitch reads and changes the engine mode.
type ModeSwitch interface {
	Mode() classifier.Mode
	SetMode(ctx context.Context, m classifier.Mode) error
}

// Config holds the server configuration. Routes whose collaborator is nil
// are not registered.
type Config struct {
	Frames  *capture.Store
	History *store.Store
	Session SessionReporter
	Mode    ModeSwitch
	// Signal serves the /signal websocket.
	Signal http.Handler
	// MetricsHandler serves /metrics.
	MetricsHandler http.Handler
	Metrics        *observe.Metrics
	Version        string
	Logger         *slog.Logger
}

// Server is the HTTP server of the typing tracker.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	log     *slog.Logger
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    log,
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = observe.Middleware(config.Metrics)(s.mux)
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Frames != nil {
		s.mux.HandleFunc("/api/frame", s.handleFrame)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames, 0))
	}
	if s.config.History != nil {
		h := &historyHandler{store: s.config.History}
		s.mux.HandleFunc("/api/stats", h.stats)
		s.mux.HandleFunc("/api/outcomes", h.outcomes)
	}
	if s.config.Session != nil {
		s.mux.HandleFunc("/api/session", s.handleSession)
	}
	if s.config.Mode != nil {
		s.mux.HandleFunc("/api/mode", s.handleMode)
	}
	if s.config.Signal != nil {
		s.mux.Handle("/signal", s.config.Signal)
	}
	if s.config.MetricsHandler != nil {
		s.mux.Handle("/metrics", s.config.MetricsHandler)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Version != "" {
		response["version"] = s.config.Version
	}
	writeJSON(w, http.StatusOK, response)
}

// handleFrame returns the latest stored frame as a JPEG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	f, ok := s.config.Frames.Read()
	if !ok {
		writeError(w, http.StatusNotFound, "no frame stored")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Age", f.Age().Round(time.Millisecond).String())
	w.Write(f.Data)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.config.Session.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     st.String(),
		"connected": st == transport.Connected,
	})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// handleMode reports the engine mode on GET and switches it on PUT.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req modeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		m, err := classifier.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.config.Mode.SetMode(r.Context(), m); err != nil {
			s.log.Warn("failed to switch mode", "mode", req.Mode, "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to switch mode")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, modeRequest{Mode: s.config.Mode.Mode().String()})
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
