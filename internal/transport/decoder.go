package transport

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"golang.org/x/image/vp8"

	"github.com/alexhamidi/typing-tracker/internal/capture"
)

// ErrSkip is returned by a Decoder for frames it deliberately ignores.
var ErrSkip = errors.New("transport: frame skipped")

// Decoder turns one encoded video frame into a JPEG image.
type Decoder interface {
	Decode(frame []byte) ([]byte, error)
}

// VP8Decoder decodes VP8 keyframes. Inter frames return ErrSkip; the peer
// transport requests keyframes periodically so the store stays fresh.
type VP8Decoder struct {
	Quality int
	dec     *vp8.Decoder
}

// NewVP8Decoder creates a decoder that encodes JPEGs at quality (1-100;
// out of range uses capture.DefaultJPEGQuality).
func NewVP8Decoder(quality int) *VP8Decoder {
	if quality <= 0 || quality > 100 {
		quality = capture.DefaultJPEGQuality
	}
	return &VP8Decoder{Quality: quality, dec: vp8.NewDecoder()}
}

// IsKeyframe reports whether an encoded VP8 frame is a keyframe. The low bit
// of the frame tag is 0 for keyframes, which also carry the 0x9d012a start code.
func IsKeyframe(frame []byte) bool {
	return len(frame) >= 10 &&
		frame[0]&0x01 == 0 &&
		frame[3] == 0x9d && frame[4] == 0x01 && frame[5] == 0x2a
}

// Decode implements Decoder.
func (d *VP8Decoder) Decode(frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, fmt.Errorf("vp8: frame too short (%d bytes)", len(frame))
	}
	if frame[0]&0x01 != 0 {
		return nil, ErrSkip
	}
	if !IsKeyframe(frame) {
		return nil, errors.New("vp8: keyframe without start code")
	}

	d.dec.Init(bytes.NewReader(frame), len(frame))
	if _, err := d.dec.DecodeFrameHeader(); err != nil {
		return nil, fmt.Errorf("vp8: header: %w", err)
	}
	img, err := d.dec.DecodeFrame()
	if err != nil {
		return nil, fmt.Errorf("vp8: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.Quality}); err != nil {
		return nil, fmt.Errorf("vp8: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
