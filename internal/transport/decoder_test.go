package transport

import (
	"errors"
	"strings"
	"testing"
)

func TestIsKeyframe(t *testing.T) {
	key := []byte{0x50, 0x42, 0x00, 0x9d, 0x01, 0x2a, 0x80, 0x02, 0xe0, 0x01}
	inter := []byte{0x31, 0x42, 0x00, 0x9d, 0x01, 0x2a, 0x80, 0x02, 0xe0, 0x01}

	if !IsKeyframe(key) {
		t.Error("IsKeyframe(key) = false")
	}
	if IsKeyframe(inter) {
		t.Error("IsKeyframe(inter) = true")
	}
	if IsKeyframe(key[:5]) {
		t.Error("IsKeyframe(truncated) = true")
	}
}

func TestVP8DecoderSkipsInterFrames(t *testing.T) {
	d := NewVP8Decoder(0)
	_, err := d.Decode([]byte{0x31, 0x00, 0x00, 0x12, 0x34})
	if !errors.Is(err, ErrSkip) {
		t.Errorf("Decode(inter) = %v, want ErrSkip", err)
	}
}

func TestVP8DecoderRejectsCorruptFrames(t *testing.T) {
	d := NewVP8Decoder(90)
	tests := map[string][]byte{
		"too short":          {0x00},
		"missing start code": {0x50, 0x42, 0x00, 0x00, 0x00, 0x00, 0x80, 0x02, 0xe0, 0x01},
		"truncated keyframe": {0x50, 0x42, 0x00, 0x9d, 0x01, 0x2a, 0x80, 0x02, 0xe0, 0x01},
	}
	for name, frame := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(frame)
			if err == nil {
				t.Fatal("Decode succeeded, want error")
			}
			if errors.Is(err, ErrSkip) {
				t.Error("corrupt keyframe reported as skip")
			}
		})
	}
}

func TestNewVP8DecoderQuality(t *testing.T) {
	if q := NewVP8Decoder(500).Quality; q <= 0 || q > 100 {
		t.Errorf("Quality = %d, want clamped default", q)
	}
	if q := NewVP8Decoder(60).Quality; q != 60 {
		t.Errorf("Quality = %d, want 60", q)
	}
}

func TestVP8DecoderReinitialisesPerFrame(t *testing.T) {
	d := NewVP8Decoder(90)
	truncated := []byte{0x50, 0x42, 0x00, 0x9d, 0x01, 0x2a, 0x80, 0x02, 0xe0, 0x01}

	// Each keyframe starts from a fresh reader, so a bad frame does not
	// poison the next call.
	for i := 0; i < 3; i++ {
		_, err := d.Decode(truncated)
		if err == nil || !strings.HasPrefix(err.Error(), "vp8: ") {
			t.Fatalf("Decode #%d = %v, want a vp8 decode error", i, err)
		}
		if _, err := d.Decode([]byte{0x31, 0x00, 0x00}); !errors.Is(err, ErrSkip) {
			t.Fatalf("Decode(inter) #%d = %v, want ErrSkip", i, err)
		}
	}
}
