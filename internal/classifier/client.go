package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
)

// DefaultTimeout bounds one classification round trip.
const DefaultTimeout = 3 * time.Second

// Client talks to a remote classification service over HTTP:
// POST {base}/infer/{key} or {base}/calibrate/{key} with a multipart
// "file" field holding the JPEG.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// serviceReply covers both the inference and calibration replies.
type serviceReply struct {
	ClosestFinger *string  `json:"closest_finger"`
	Distance      *float64 `json:"distance"`
	Status        string   `json:"status"`
	Error         string   `json:"error"`
}

// Classify uploads frame and interprets the reply. Transport failures,
// non-2xx statuses and undecodable bodies are errors; a well-formed reply
// without a label is a Result with Detected false.
func (c *Client) Classify(ctx context.Context, frame capture.Frame, mode Mode, key string) (Result, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.base, mode, url.PathEscape(key))

	body, contentType, err := multipartFrame(frame)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("classify %s: %w", key, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("classify %s: %w", key, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("classify %s: read reply: %w", key, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("classify %s: service returned %d: %s", key, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var reply serviceReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return Result{}, fmt.Errorf("classify %s: decode reply: %w", key, err)
	}

	label := ""
	if reply.ClosestFinger != nil {
		label = *reply.ClosestFinger
	}
	msg := reply.Error
	if msg == "" {
		msg = reply.Status
	}
	return resultFromLabel(label, reply.Distance, msg), nil
}

func multipartFrame(frame capture.Frame) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
