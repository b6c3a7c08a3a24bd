package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector finds hands in an image.
type Detector interface {
	// Detect returns the hands found in img, or an empty slice.
	Detect(img *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config configures the MediaPipe detector.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence (0.0-1.0).
	MinConfidence float64

	// ScriptPath points at mediapipe_service.py. Empty searches the usual
	// locations next to the binary and under the data directory.
	ScriptPath string

	// Python is the interpreter. Empty prefers a venv, then python3.
	Python string

	// IdleTimeout stops the subprocess after this long without requests.
	IdleTimeout time.Duration
}

// DefaultConfig returns the settings used for typing: both hands, static images.
func DefaultConfig() Config {
	return Config{
		MaxHands:      2,
		MinConfidence: 0.5,
		IdleTimeout:   30 * time.Second,
	}
}
