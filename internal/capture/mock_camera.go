package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoMoreImages is returned by MockCamera once a non-looping sequence ends.
var ErrNoMoreImages = errors.New("mock camera: sequence exhausted")

// MockCamera replays a fixed sequence of images. It is used by feed tests and
// by the e2e harness in place of a physical device.
type MockCamera struct {
	mu      sync.Mutex
	images  []*gocv.Mat
	next    int
	loop    bool
	open    bool
	openErr error
	reads   int
}

// NewMockCamera creates a MockCamera over images. With loop set the sequence
// restarts after the last image.
func NewMockCamera(images []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{images: images, loop: loop}
}

// FailOpen makes subsequent Open calls return err.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.next = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// Read returns a clone of the next image in the sequence.
func (c *MockCamera) Read() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraClosed
	}
	if c.next >= len(c.images) {
		if !c.loop || len(c.images) == 0 {
			return nil, ErrNoMoreImages
		}
		c.next = 0
	}

	img := c.images[c.next].Clone()
	c.next++
	c.reads++
	return &img, nil
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Reads returns how many images have been handed out.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
