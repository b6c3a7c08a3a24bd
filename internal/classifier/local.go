package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/detector"
	"github.com/alexhamidi/typing-tracker/internal/finger"
	"github.com/alexhamidi/typing-tracker/internal/store"
)

// Positions persists the calibrated pixel position of each key.
type Positions interface {
	Set(ctx context.Context, key string, x, y int) error
	Get(ctx context.Context, key string) (*store.KeyPosition, error)
}

// Local classifies frames in-process: calibration records where the
// calibrating fingertip sits for a key, and inference picks the fingertip
// closest to that spot.
//
// Calibration uses the index fingertip of the hand the model labels "Left".
type Local struct {
	det       detector.Detector
	positions Positions

	// MediaPipe runs one request at a time.
	mu sync.Mutex
}

// NewLocal creates a Local classifier.
func NewLocal(det detector.Detector, positions Positions) *Local {
	return &Local{det: det, positions: positions}
}

// Classify implements Classifier.
func (l *Local) Classify(ctx context.Context, frame capture.Frame, mode Mode, key string) (Result, error) {
	key = finger.NormalizeKey(key)

	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return Result{}, fmt.Errorf("classify %s: decode frame: %w", key, err)
	}
	defer img.Close()
	if img.Empty() {
		return Result{}, fmt.Errorf("classify %s: frame is not an image", key)
	}

	l.mu.Lock()
	hands, err := l.det.Detect(&img)
	l.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("classify %s: %w", key, err)
	}

	w, h := img.Cols(), img.Rows()
	switch mode {
	case Calibrate:
		return l.calibrate(ctx, hands, w, h, key)
	default:
		return l.infer(ctx, hands, w, h, key)
	}
}

func (l *Local) calibrate(ctx context.Context, hands []detector.HandLandmarks, w, h int, key string) (Result, error) {
	for i := range hands {
		if hands[i].Handedness != detector.HandLeft {
			continue
		}
		at := hands[i].PixelAt(detector.IndexTip, w, h)
		if err := l.positions.Set(ctx, key, at.X, at.Y); err != nil {
			return Result{}, fmt.Errorf("calibrate %s: %w", key, err)
		}
		return resultFromLabel(string(hands[i].HandPrefix())+"i", nil,
			fmt.Sprintf("recorded %s at (%d, %d)", key, at.X, at.Y)), nil
	}
	return Result{Message: "Left hand index finger not detected"}, nil
}

func (l *Local) infer(ctx context.Context, hands []detector.HandLandmarks, w, h int, key string) (Result, error) {
	pos, err := l.positions.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Message: fmt.Sprintf("Key %s not calibrated", key)}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("classify %s: %w", key, err)
	}

	tip, dist, ok := detector.Closest(hands, w, h, detector.Pixel{X: pos.X, Y: pos.Y})
	if !ok {
		return Result{Message: "no fingers detected"}, nil
	}
	return resultFromLabel(tip.Finger, &dist, ""), nil
}
