package transport

// SDPType distinguishes the two session descriptions of a negotiation.
type SDPType int

const (
	SDPOffer SDPType = iota
	SDPAnswer
)

// Events are the callbacks a PeerTransport raises. They may be called from
// any goroutine, but Frame is never called concurrently with itself.
type Events struct {
	// Candidate delivers a local ICE candidate for the remote peer.
	Candidate func(Candidate)
	// Frame delivers one complete encoded video frame.
	Frame func(data []byte)
	// Failed reports that the peer connection failed, disconnected or closed.
	Failed func(err error)
}

// PeerTransport is the media side of a session.
type PeerTransport interface {
	// SetRemoteDescription applies the remote offer or answer.
	SetRemoteDescription(typ SDPType, sdp string) error
	// Answer creates and applies the local answer to a remote offer.
	Answer() (string, error)
	// Offer creates and applies a local offer.
	Offer() (string, error)
	// AddCandidate applies a remote ICE candidate.
	AddCandidate(c Candidate) error
	Close() error
}

// TransportFactory builds a PeerTransport that reports to ev.
type TransportFactory func(ev Events) (PeerTransport, error)
