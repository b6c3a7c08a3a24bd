package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/observe"
)

// DefaultNegotiationTimeout bounds the time from the first offer to the
// first decoded frame.
const DefaultNegotiationTimeout = 15 * time.Second

// SessionConfig wires a Session.
type SessionConfig struct {
	NewTransport TransportFactory
	Decoder      Decoder
	Store        *capture.Store
	// Send writes a signaling message to the remote peer. Must be safe for
	// concurrent use.
	Send func(Message) error

	NegotiationTimeout time.Duration
	Metrics            *observe.Metrics
	Logger             *slog.Logger
}

// Session is one signaling conversation and its peer connection.
type Session struct {
	cfg  SessionConfig
	log  *slog.Logger
	peer PeerTransport

	mu        sync.Mutex
	state     State
	remoteSet bool
	pending   []Candidate
	timer     *time.Timer

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates an Idle session and its peer transport.
func NewSession(cfg SessionConfig) (*Session, error) {
	var errs []error
	if cfg.NewTransport == nil {
		errs = append(errs, errors.New("transport: transport factory is required"))
	}
	if cfg.Decoder == nil {
		errs = append(errs, errors.New("transport: decoder is required"))
	}
	if cfg.Store == nil {
		errs = append(errs, errors.New("transport: frame store is required"))
	}
	if cfg.Send == nil {
		errs = append(errs, errors.New("transport: send function is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = DefaultNegotiationTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{cfg: cfg, log: log, done: make(chan struct{})}
	peer, err := cfg.NewTransport(Events{
		Candidate: s.onLocalCandidate,
		Frame:     s.onFrame,
		Failed:    func(err error) { s.fail(err) },
	})
	if err != nil {
		return nil, fmt.Errorf("transport: create peer: %w", err)
	}
	s.peer = peer
	cfg.Metrics.SessionOpened(context.Background())
	cfg.Metrics.RecordSessionState(context.Background(), Idle.String())
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Handle applies one signaling message from the remote peer.
//
// A malformed or out-of-order message is returned as an error and leaves the
// session as it was. A failure inside the peer connection while negotiating
// closes the session.
func (s *Session) Handle(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	switch msg.Type {
	case TypeOffer:
		return s.handleOffer(ctx, msg.SDP)
	case TypeAnswer:
		return s.handleAnswer(msg.SDP)
	default:
		return s.handleCandidate(*msg.Candidate)
	}
}

// Offer starts a negotiation from this side: the local offer is sent and
// the remote answer is expected through Handle.
func (s *Session) Offer(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return s.stateError(st, "offer")
	}
	s.beginNegotiation(ctx)
	s.mu.Unlock()

	sdp, err := s.peer.Offer()
	if err != nil {
		err = fmt.Errorf("transport: create offer: %w", err)
		s.fail(err)
		return err
	}
	if err := s.cfg.Send(Message{Type: TypeOffer, SDP: sdp}); err != nil {
		err = fmt.Errorf("transport: send offer: %w", err)
		s.fail(err)
		return err
	}
	return nil
}

// Close ends the session. The frame store keeps its last frame.
func (s *Session) Close() error {
	s.fail(nil)
	return nil
}

func (s *Session) handleOffer(ctx context.Context, sdp string) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return s.stateError(st, TypeOffer)
	}
	s.beginNegotiation(ctx)
	s.mu.Unlock()

	if err := s.peer.SetRemoteDescription(SDPOffer, sdp); err != nil {
		err = fmt.Errorf("transport: apply offer: %w", err)
		s.fail(err)
		return err
	}
	s.remoteApplied()

	answer, err := s.peer.Answer()
	if err != nil {
		err = fmt.Errorf("transport: create answer: %w", err)
		s.fail(err)
		return err
	}
	if err := s.cfg.Send(Message{Type: TypeAnswer, SDP: answer}); err != nil {
		err = fmt.Errorf("transport: send answer: %w", err)
		s.fail(err)
		return err
	}
	return nil
}

func (s *Session) handleAnswer(sdp string) error {
	s.mu.Lock()
	if s.state != Negotiating || s.remoteSet {
		st := s.state
		s.mu.Unlock()
		return s.stateError(st, TypeAnswer)
	}
	s.mu.Unlock()

	if err := s.peer.SetRemoteDescription(SDPAnswer, sdp); err != nil {
		err = fmt.Errorf("transport: apply answer: %w", err)
		s.fail(err)
		return err
	}
	s.remoteApplied()
	return nil
}

func (s *Session) handleCandidate(c Candidate) error {
	s.mu.Lock()
	switch {
	case s.state == Closed:
		s.mu.Unlock()
		return ErrClosed
	case !s.remoteSet:
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.peer.AddCandidate(c); err != nil {
		// One bad candidate does not doom the connection.
		s.log.Warn("failed to add ICE candidate", "err", err)
	}
	return nil
}

// beginNegotiation moves Idle to Negotiating and arms the timeout. s.mu must be held.
func (s *Session) beginNegotiation(ctx context.Context) {
	s.state = Negotiating
	s.timer = time.AfterFunc(s.cfg.NegotiationTimeout, func() {
		if s.State() == Negotiating {
			s.fail(ErrNegotiationTimeout)
		}
	})
	s.cfg.Metrics.RecordSessionState(ctx, Negotiating.String())
	s.log.Info("session negotiating")
}

// remoteApplied marks the remote description as set and flushes queued candidates.
func (s *Session) remoteApplied() {
	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.peer.AddCandidate(c); err != nil {
			s.log.Warn("failed to add queued ICE candidate", "err", err)
		}
	}
}

func (s *Session) onLocalCandidate(c Candidate) {
	if s.State() == Closed {
		return
	}
	if err := s.cfg.Send(Message{Type: TypeCandidate, Candidate: &c}); err != nil {
		s.log.Debug("failed to send ICE candidate", "err", err)
	}
}

func (s *Session) onFrame(data []byte) {
	if s.State() == Closed {
		return
	}

	jpg, err := s.cfg.Decoder.Decode(data)
	if errors.Is(err, ErrSkip) {
		return
	}
	if err != nil {
		s.fail(fmt.Errorf("transport: decode: %w", err))
		return
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.cfg.Store.Write(capture.Frame{Data: jpg, CapturedAt: time.Now()})
	connected := false
	if s.state == Negotiating && s.remoteSet {
		s.state = Connected
		if s.timer != nil {
			s.timer.Stop()
		}
		connected = true
	}
	s.mu.Unlock()

	ctx := context.Background()
	s.cfg.Metrics.RecordFrameStored(ctx, "webrtc")
	if connected {
		s.cfg.Metrics.RecordSessionState(ctx, Connected.String())
		s.log.Info("session connected")
	}
}

// fail moves the session to Closed. A nil reason is a normal close.
func (s *Session) fail(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = Closed
		s.pending = nil
		if s.timer != nil {
			s.timer.Stop()
		}
		s.mu.Unlock()

		if err := s.peer.Close(); err != nil {
			s.log.Debug("peer close", "err", err)
		}
		close(s.done)

		ctx := context.Background()
		s.cfg.Metrics.RecordSessionState(ctx, Closed.String())
		s.cfg.Metrics.SessionClosed(ctx)
		if reason != nil {
			s.log.Warn("session closed", "err", reason)
		} else {
			s.log.Info("session closed")
		}
	})
}

func (s *Session) stateError(st State, what string) error {
	if st == Closed {
		return ErrClosed
	}
	return fmt.Errorf("%w: %s in state %s", ErrUnexpected, what, st)
}
