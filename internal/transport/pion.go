package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

// DefaultKeyframeInterval is how often a keyframe is requested from the sender.
const DefaultKeyframeInterval = time.Second

// maxLatePackets is the samplebuilder reorder window.
const maxLatePackets = 128

// PionConfig configures PionTransport.
type PionConfig struct {
	// ICEServers are STUN/TURN URLs, e.g. "stun:stun.l.google.com:19302".
	ICEServers       []string
	KeyframeInterval time.Duration
	Logger           *slog.Logger
}

// PionTransport receives a single VP8 video track with pion/webrtc.
type PionTransport struct {
	cfg PionConfig
	pc  *webrtc.PeerConnection
	ev  Events
	log *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPionFactory returns a TransportFactory producing PionTransports.
func NewPionFactory(cfg PionConfig) TransportFactory {
	return func(ev Events) (PeerTransport, error) {
		return NewPionTransport(cfg, ev)
	}
}

// NewPionTransport creates a receive-only peer connection that accepts VP8.
func NewPionTransport(cfg PionConfig, ev Events) (*PionTransport, error) {
	if cfg.KeyframeInterval <= 0 {
		cfg.KeyframeInterval = DefaultKeyframeInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		PayloadType:        96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register vp8: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(registry))

	var servers []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}

	t := &PionTransport{cfg: cfg, pc: pc, ev: ev, log: log, stop: make(chan struct{})}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || ev.Candidate == nil {
			return
		}
		ci := c.ToJSON()
		ev.Candidate(Candidate{
			Candidate:     ci.Candidate,
			SDPMLineIndex: ci.SDPMLineIndex,
			SDPMid:        ci.SDPMid,
		})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug("peer connection state", "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			if ev.Failed != nil {
				ev.Failed(fmt.Errorf("peer connection %s", s))
			}
		}
	})

	pc.OnTrack(t.onTrack)
	return t, nil
}

// SetRemoteDescription implements PeerTransport.
func (t *PionTransport) SetRemoteDescription(typ SDPType, sdp string) error {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if typ == SDPAnswer {
		desc.Type = webrtc.SDPTypeAnswer
	}
	return t.pc.SetRemoteDescription(desc)
}

// Answer implements PeerTransport.
func (t *PionTransport) Answer() (string, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// Offer implements PeerTransport.
func (t *PionTransport) Offer() (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return offer.SDP, nil
}

// AddCandidate implements PeerTransport.
func (t *PionTransport) AddCandidate(c Candidate) error {
	return t.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMLineIndex: c.SDPMLineIndex,
		SDPMid:        c.SDPMid,
	})
}

// Close implements PeerTransport.
func (t *PionTransport) Close() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return t.pc.Close()
}

func (t *PionTransport) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	codec := track.Codec()
	if !strings.EqualFold(codec.MimeType, webrtc.MimeTypeVP8) {
		t.log.Warn("ignoring non-VP8 track", "mime", codec.MimeType)
		return
	}
	t.log.Info("video track received", "ssrc", uint32(track.SSRC()), "clock_rate", codec.ClockRate)

	go t.requestKeyframes(uint32(track.SSRC()))

	sb := samplebuilder.New(maxLatePackets, &codecs.VP8Packet{}, codec.ClockRate)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.Debug("track read ended", "err", err)
			}
			return
		}
		sb.Push(pkt)
		for sample := sb.Pop(); sample != nil; sample = sb.Pop() {
			if t.ev.Frame != nil {
				t.ev.Frame(sample.Data)
			}
		}
	}
}

// requestKeyframes sends a PLI on every tick until the transport closes.
func (t *PionTransport) requestKeyframes(ssrc uint32) {
	ticker := time.NewTicker(t.cfg.KeyframeInterval)
	defer ticker.Stop()

	for {
		if err := t.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
			t.log.Debug("keyframe request failed", "err", err)
		}
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}
