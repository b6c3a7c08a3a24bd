package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/observe"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the phone client is not a browser origin
	},
}

// HandlerConfig wires a SignalingHandler. Every connection gets a Session
// built from these fields.
type HandlerConfig struct {
	NewTransport TransportFactory
	// NewDecoder builds a decoder per session; decoders keep state.
	NewDecoder         func() Decoder
	Store              *capture.Store
	NegotiationTimeout time.Duration
	// InitiateOffer makes this side send the offer as soon as a peer connects.
	InitiateOffer bool
	Metrics       *observe.Metrics
	Logger        *slog.Logger
}

// SignalingHandler serves the /signal websocket. At most one session is
// current; a new connection closes the previous session.
type SignalingHandler struct {
	cfg HandlerConfig
	log *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewSignalingHandler creates a handler.
func NewSignalingHandler(cfg HandlerConfig) *SignalingHandler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &SignalingHandler{cfg: cfg, log: log}
}

// ServeHTTP upgrades the connection and runs its read loop.
func (h *SignalingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(m Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(m)
	}

	log := h.log.With("remote", r.RemoteAddr)
	sess, err := NewSession(SessionConfig{
		NewTransport:       h.cfg.NewTransport,
		Decoder:            h.cfg.NewDecoder(),
		Store:              h.cfg.Store,
		Send:               send,
		NegotiationTimeout: h.cfg.NegotiationTimeout,
		Metrics:            h.cfg.Metrics,
		Logger:             log,
	})
	if err != nil {
		log.Error("failed to create session", "err", err)
		return
	}
	h.replace(sess)
	defer h.release(sess)
	defer sess.Close()

	// A session closed from the media side ends the read loop too.
	go func() {
		<-sess.Done()
		_ = conn.Close()
	}()

	ctx := r.Context()
	if h.cfg.InitiateOffer {
		if err := sess.Offer(ctx); err != nil {
			log.Warn("failed to send offer", "err", err)
			return
		}
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", "err", err)
			}
			return
		}
		if err := sess.Handle(ctx, msg); err != nil {
			log.Warn("signaling message rejected", "type", msg.Type, "err", err)
		}
		if sess.State() == Closed {
			return
		}
	}
}

// Active reports whether the current session is Connected.
func (h *SignalingHandler) Active() bool {
	return h.State() == Connected
}

// State returns the current session's state, or Idle when there is none.
func (h *SignalingHandler) State() State {
	h.mu.Lock()
	s := h.current
	h.mu.Unlock()
	if s == nil {
		return Idle
	}
	return s.State()
}

// Close closes the current session, if any.
func (h *SignalingHandler) Close(context.Context) error {
	h.mu.Lock()
	s := h.current
	h.current = nil
	h.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}

func (h *SignalingHandler) replace(s *Session) {
	h.mu.Lock()
	prev := h.current
	h.current = s
	h.mu.Unlock()
	if prev != nil {
		h.log.Info("replacing previous session")
		_ = prev.Close()
	}
}

func (h *SignalingHandler) release(s *Session) {
	h.mu.Lock()
	if h.current == s {
		h.current = nil
	}
	h.mu.Unlock()
}
