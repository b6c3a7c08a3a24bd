package transport

import "errors"

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Negotiating
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("transport: session closed")
	// ErrNegotiationTimeout closes a session that did not connect in time.
	ErrNegotiationTimeout = errors.New("transport: negotiation timed out")
	// ErrUnexpected is returned for a message the current state cannot accept.
	ErrUnexpected = errors.New("transport: unexpected signaling message")
)
