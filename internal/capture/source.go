package capture

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoFrame means no image of the hands is available for a keystroke.
var ErrNoFrame = errors.New("no frame available")

// Puller fetches a single frame on demand.
type Puller interface {
	Fetch(ctx context.Context) (Frame, error)
}

// Selector picks the frame to classify for a keystroke.
//
// While a push source is active the store is authoritative. Otherwise the
// pull source is asked; if there is none or it fails, the last stored frame
// is used, however old.
type Selector struct {
	Store *Store
	Pull  Puller
	// Active reports whether a push source (remote session or local camera)
	// is currently feeding the store. Nil means never.
	Active func() bool
	Logger *slog.Logger
}

// Acquire returns the frame for the current keystroke, or ErrNoFrame.
func (s *Selector) Acquire(ctx context.Context) (Frame, error) {
	if s.Active != nil && s.Active() {
		if f, ok := s.stored(); ok {
			return f, nil
		}
	}

	if s.Pull != nil {
		f, err := s.Pull.Fetch(ctx)
		if err == nil {
			return f, nil
		}
		s.logger().Debug("pull source failed, falling back to stored frame", "err", err)
	}

	if f, ok := s.stored(); ok {
		return f, nil
	}
	return Frame{}, ErrNoFrame
}

func (s *Selector) stored() (Frame, bool) {
	if s.Store == nil {
		return Frame{}, false
	}
	return s.Store.Read()
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
