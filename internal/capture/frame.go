package capture

import (
	"sync/atomic"
	"time"
)

// Frame is one encoded still image of the hands together with the time it was
// captured. Data is opaque to the capture path; producers in this module emit JPEG.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Age returns how long ago the frame was captured.
func (f Frame) Age() time.Duration {
	return time.Since(f.CapturedAt)
}

// Store holds the single most recent frame. Writers replace it unconditionally
// and readers never wait for a write.
//
// Store is safe for concurrent use.
type Store struct {
	latest atomic.Pointer[Frame]
	writes atomic.Uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Write replaces the stored frame. Empty frames are ignored so a failed decode
// never hides the last good image.
func (s *Store) Write(f Frame) {
	if f.Empty() {
		return
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now()
	}
	s.latest.Store(&f)
	s.writes.Add(1)
}

// Read returns the most recently written frame, or false if none has arrived.
func (s *Store) Read() (Frame, bool) {
	f := s.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Writes returns the number of frames written since creation.
func (s *Store) Writes() uint64 {
	return s.writes.Load()
}
