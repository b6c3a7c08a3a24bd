package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
)

// DefaultStreamInterval is how often StreamHandler polls the frame store.
const DefaultStreamInterval = 66 * time.Millisecond

// StreamHandler serves the frame store as an MJPEG stream. A frame is sent
// only when the store has been written since the last one.
type StreamHandler struct {
	frames   *capture.Store
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler polling frames every interval.
// Zero uses DefaultStreamInterval.
func NewStreamHandler(frames *capture.Store, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHandler{frames: frames, interval: interval}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var sent uint64
	for {
		if n := h.frames.Writes(); n != sent {
			if f, ok := h.frames.Read(); ok {
				if err := writePart(w, f.Data); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
			sent = n
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpg)); err != nil {
		return err
	}
	if _, err := w.Write(jpg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
