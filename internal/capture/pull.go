package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// ErrFetch wraps every failure of a pull fetch: unreachable endpoint,
// non-success status, or a payload that is not an image.
var ErrFetch = errors.New("frame fetch failed")

// maxFrameBytes bounds a single pulled frame.
const maxFrameBytes = 16 << 20

// PullSource fetches one frame on demand from a remote capture endpoint,
// typically a phone serving GET /frame.
type PullSource struct {
	url      string
	client   *http.Client
	maxBytes int64
}

// NewPullSource creates a PullSource for url. A zero timeout means 2 seconds.
func NewPullSource(url string, timeout time.Duration) *PullSource {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PullSource{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxFrameBytes,
	}
}

// URL returns the endpoint the source pulls from.
func (p *PullSource) URL() string {
	return p.url
}

// Fetch performs one round trip and returns the frame. All failures wrap ErrFetch.
func (p *PullSource) Fetch(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Frame{}, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(data)) > p.maxBytes {
		return Frame{}, fmt.Errorf("%w: frame larger than %d bytes", ErrFetch, p.maxBytes)
	}
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("%w: empty body", ErrFetch)
	}

	// Only the header is decoded; the classifier does the real work.
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return Frame{}, fmt.Errorf("%w: malformed image: %v", ErrFetch, err)
	}

	return Frame{Data: data, CapturedAt: time.Now()}, nil
}
