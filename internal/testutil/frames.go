// Package testutil builds synthetic hand images for tests so no binary
// fixtures need to be checked in.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// JPEG returns a w×h JPEG filled with grey level shade and a darker square in
// the middle, roughly where a hand would be.
func JPEG(t testing.TB, w, h int, shade uint8) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: shade, G: shade, B: shade, A: 255}
	fg := color.RGBA{R: shade / 2, G: shade / 3, B: shade / 4, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x > w/3 && x < 2*w/3 && y > h/3 && y < 2*h/3 {
				img.Set(x, y, fg)
				continue
			}
			img.Set(x, y, bg)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// SmallJPEG is a 32×24 JPEG, enough for anything that only checks headers.
func SmallJPEG(t testing.TB) []byte {
	return JPEG(t, 32, 24, 200)
}
