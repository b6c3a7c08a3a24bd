package capture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/testutil"
)

func TestPullSource_Fetch(t *testing.T) {
	jpg := testutil.SmallJPEG(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{
			name: "jpeg body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				w.Write(jpg)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "camera busy", http.StatusServiceUnavailable)
			},
			wantErr: true,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			wantErr: true,
		},
		{
			name: "not an image",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>hello</html>"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			src := NewPullSource(srv.URL+"/frame", time.Second)
			f, err := src.Fetch(context.Background())

			if tt.wantErr {
				if !errors.Is(err, ErrFetch) {
					t.Fatalf("Fetch() error = %v, want ErrFetch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if len(f.Data) != len(jpg) {
				t.Errorf("Fetch() returned %d bytes, want %d", len(f.Data), len(jpg))
			}
			if f.CapturedAt.IsZero() {
				t.Error("Fetch() should stamp the frame")
			}
		})
	}
}

func TestPullSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewPullSource(url, 200*time.Millisecond).Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Fetch() error = %v, want ErrFetch", err)
	}
}

func TestPullSource_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewPullSource(srv.URL, 50*time.Millisecond).Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Fetch() error = %v, want ErrFetch", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Fetch() did not honour its timeout")
	}
}

func TestPullSource_OversizedFrame(t *testing.T) {
	jpg := testutil.SmallJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(jpg)
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{"exactly at the limit", int64(len(jpg)), false},
		// The header still decodes, so truncation must not pass as a frame.
		{"one byte over", int64(len(jpg)) - 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewPullSource(srv.URL, time.Second)
			src.maxBytes = tt.limit

			f, err := src.Fetch(context.Background())
			if tt.wantErr {
				if !errors.Is(err, ErrFetch) {
					t.Fatalf("Fetch() = %d bytes, %v, want ErrFetch", len(f.Data), err)
				}
				return
			}
			if err != nil || len(f.Data) != len(jpg) {
				t.Fatalf("Fetch() = %d bytes, %v, want %d bytes", len(f.Data), err, len(jpg))
			}
		})
	}
}
