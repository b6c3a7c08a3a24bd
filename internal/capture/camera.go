// Package capture keeps the most recent image of the typist's hands and
// provides the sources that fill it: a pull endpoint on the phone and a local
// camera feed.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Local camera defaults. Hands on a keyboard need less than video rates.
const (
	DefaultDevice      = 0
	DefaultFPS         = 10
	DefaultWidth       = 640
	DefaultHeight      = 480
	DefaultJPEGQuality = 80
)

// ErrCameraClosed is returned when reading from a camera that is not open.
var ErrCameraClosed = errors.New("camera is not open")

// Camera is a source of raw BGR images. The caller closes every returned Mat.
type Camera interface {
	Open() error
	Close() error
	Read() (*gocv.Mat, error)
	IsOpen() bool
}

// CameraConfig describes the local capture device.
type CameraConfig struct {
	Device int
	Width  int
	Height int
	FPS    int
}

func (c CameraConfig) withDefaults() CameraConfig {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	return c
}

// deviceCamera reads from an OpenCV video device.
type deviceCamera struct {
	cfg CameraConfig

	mu  sync.Mutex
	dev *gocv.VideoCapture
}

// NewCamera returns a Camera backed by the video device in cfg. The device
// is not opened until Open is called.
func NewCamera(cfg CameraConfig) Camera {
	return &deviceCamera{cfg: cfg.withDefaults()}
}

func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		return nil
	}

	dev, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.cfg.Device, err)
	}
	dev.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	dev.Set(gocv.VideoCaptureFPS, float64(c.cfg.FPS))

	c.dev = dev
	return nil
}

func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	return err
}

func (c *deviceCamera) Read() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil, ErrCameraClosed
	}

	mat := gocv.NewMat()
	if ok := c.dev.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d returned no image", c.cfg.Device)
	}
	return &mat, nil
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev != nil
}

// EncodeJPEG encodes mat as a JPEG. A quality outside 1..100 uses DefaultJPEGQuality.
func EncodeJPEG(mat *gocv.Mat, quality int) ([]byte, error) {
	if mat == nil || mat.Empty() {
		return nil, errors.New("encode jpeg: empty image")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	return append([]byte(nil), buf.GetBytes()...), nil
}
