package transport

import (
	"errors"
	"sync"
)

// MockTransport is an in-memory PeerTransport. Tests drive the media side
// with EmitFrame, EmitCandidate and EmitFailure.
type MockTransport struct {
	mu         sync.Mutex
	ev         Events
	remote     []SDPType
	candidates []Candidate
	closed     bool

	// Errors returned by the corresponding calls, when set.
	RemoteErr error
	AnswerErr error
	OfferErr  error
}

// NewMockFactory returns a factory and a channel receiving every transport it builds.
func NewMockFactory() (TransportFactory, <-chan *MockTransport) {
	created := make(chan *MockTransport, 16)
	return func(ev Events) (PeerTransport, error) {
		m := &MockTransport{ev: ev}
		created <- m
		return m, nil
	}, created
}

func (m *MockTransport) SetRemoteDescription(typ SDPType, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("mock transport closed")
	}
	if m.RemoteErr != nil {
		return m.RemoteErr
	}
	m.remote = append(m.remote, typ)
	return nil
}

func (m *MockTransport) Answer() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AnswerErr != nil {
		return "", m.AnswerErr
	}
	return "v=0 mock-answer", nil
}

func (m *MockTransport) Offer() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OfferErr != nil {
		return "", m.OfferErr
	}
	return "v=0 mock-offer", nil
}

func (m *MockTransport) AddCandidate(c Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, c)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Candidates returns the remote candidates applied so far.
func (m *MockTransport) Candidates() []Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Candidate(nil), m.candidates...)
}

// RemoteDescriptions returns the types of remote descriptions applied.
func (m *MockTransport) RemoteDescriptions() []SDPType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SDPType(nil), m.remote...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// EmitFrame delivers an encoded frame as if it arrived from the peer.
func (m *MockTransport) EmitFrame(data []byte) {
	if m.ev.Frame != nil {
		m.ev.Frame(data)
	}
}

// EmitCandidate delivers a local ICE candidate.
func (m *MockTransport) EmitCandidate(c Candidate) {
	if m.ev.Candidate != nil {
		m.ev.Candidate(c)
	}
}

// EmitFailure reports a peer connection failure.
func (m *MockTransport) EmitFailure(err error) {
	if m.ev.Failed != nil {
		m.ev.Failed(err)
	}
}

// PassthroughDecoder returns frames unchanged. Frames starting with 0x01
// are skipped and frames starting with 0xff fail, mirroring a VP8 decoder's
// inter-frame and corrupt-frame behaviour.
type PassthroughDecoder struct{}

func (PassthroughDecoder) Decode(frame []byte) ([]byte, error) {
	switch {
	case len(frame) == 0:
		return nil, errors.New("empty frame")
	case frame[0] == 0x01:
		return nil, ErrSkip
	case frame[0] == 0xff:
		return nil, errors.New("corrupt frame")
	}
	return frame, nil
}
