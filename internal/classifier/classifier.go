// Package classifier asks a finger-classification service which finger is
// closest to the struck key in a frame.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/finger"
)

// Mode selects what the service does with a frame.
type Mode int

const (
	// Infer asks which finger struck the key.
	Infer Mode = iota
	// Calibrate records ground truth for the key and never leads to correction.
	Calibrate
)

func (m Mode) String() string {
	switch m {
	case Infer:
		return "infer"
	case Calibrate:
		return "calibrate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts "infer" or "calibrate" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "infer", "":
		return Infer, nil
	case "calibrate", "calibration":
		return Calibrate, nil
	default:
		return Infer, fmt.Errorf("unknown mode %q", s)
	}
}

// Result is the service's verdict for one frame. Detected is false when the
// service returned no usable finger label; Message then carries its reason.
type Result struct {
	Finger   finger.ID
	Detected bool
	// Distance in pixels between the chosen fingertip and the key, when known.
	Distance *float64
	Message  string
}

// Classifier classifies a frame for the given key.
type Classifier interface {
	Classify(ctx context.Context, frame capture.Frame, mode Mode, key string) (Result, error)
}

// resultFromLabel builds a Result from a raw label. Labels outside the ten
// known fingers are "none detected".
func resultFromLabel(label string, distance *float64, message string) Result {
	if label == "" {
		return Result{Message: message}
	}
	id, err := finger.Parse(label)
	if err != nil {
		return Result{Message: fmt.Sprintf("unrecognised finger label %q", label)}
	}
	return Result{Finger: id, Detected: true, Distance: distance, Message: message}
}
