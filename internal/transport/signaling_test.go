package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alexhamidi/typing-tracker/internal/capture"
)

func newSignalingServer(t *testing.T, initiate bool) (*SignalingHandler, *httptest.Server, <-chan *MockTransport, *capture.Store) {
	t.Helper()
	factory, created := NewMockFactory()
	store := capture.NewStore()
	h := NewSignalingHandler(HandlerConfig{
		NewTransport:       factory,
		NewDecoder:         func() Decoder { return PassthroughDecoder{} },
		Store:              store,
		NegotiationTimeout: time.Minute,
		InitiateOffer:      initiate,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv, created, store
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignalingHandlerAnswersOffer(t *testing.T) {
	h, srv, created, store := newSignalingServer(t, false)
	conn := dial(t, srv)

	if err := conn.WriteJSON(Message{Type: TypeOffer, SDP: "v=0 phone"}); err != nil {
		t.Fatal(err)
	}
	if m := readMessage(t, conn); m.Type != TypeAnswer || m.SDP == "" {
		t.Fatalf("reply = %+v, want answer", m)
	}

	peer := <-created
	if h.Active() {
		t.Error("Active before any media")
	}

	peer.EmitFrame([]byte{0x10, 0x11})
	waitFor(t, "connected", h.Active)
	if _, ok := store.Read(); !ok {
		t.Error("store empty after media")
	}

	peer.EmitCandidate(Candidate{Candidate: "candidate:1"})
	if m := readMessage(t, conn); m.Type != TypeCandidate || m.Candidate.Candidate != "candidate:1" {
		t.Errorf("candidate message = %+v", m)
	}
}

func TestSignalingHandlerInitiatesOffer(t *testing.T) {
	_, srv, _, _ := newSignalingServer(t, true)
	conn := dial(t, srv)

	if m := readMessage(t, conn); m.Type != TypeOffer {
		t.Fatalf("first message = %+v, want offer", m)
	}
}

func TestSignalingHandlerReplacesSession(t *testing.T) {
	h, srv, created, _ := newSignalingServer(t, false)

	first := dial(t, srv)
	if err := first.WriteJSON(Message{Type: TypeOffer, SDP: "v=0"}); err != nil {
		t.Fatal(err)
	}
	readMessage(t, first)
	firstPeer := <-created
	firstPeer.EmitFrame([]byte{0x10})
	waitFor(t, "first connected", h.Active)

	second := dial(t, srv)
	secondPeer := <-created
	_ = second

	waitFor(t, "first peer closed", firstPeer.Closed)
	if secondPeer.Closed() {
		t.Error("new session closed")
	}
	waitFor(t, "idle state", func() bool { return h.State() == Idle })
}

func TestSignalingHandlerDisconnectClosesSession(t *testing.T) {
	h, srv, created, store := newSignalingServer(t, false)
	conn := dial(t, srv)
	if err := conn.WriteJSON(Message{Type: TypeOffer, SDP: "v=0"}); err != nil {
		t.Fatal(err)
	}
	readMessage(t, conn)
	peer := <-created
	peer.EmitFrame([]byte{0x10})
	waitFor(t, "connected", h.Active)

	conn.Close()
	waitFor(t, "peer closed", peer.Closed)
	waitFor(t, "inactive", func() bool { return !h.Active() })
	if _, ok := store.Read(); !ok {
		t.Error("store cleared on disconnect")
	}
}
