// Package keyhook delivers global key transitions to the engine.
//
// The hook itself is an external helper process (a platform key listener)
// that prints one transition per line:
//
//	DOWN	LEFT SHIFT
//	UP	LEFT SHIFT
//
// The direction and the key name are separated by a tab or spaces; key
// names may contain spaces. An optional leading Unix-millisecond timestamp
// is accepted ("1718000000000 DOWN A").
package keyhook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/engine"
	"github.com/alexhamidi/typing-tracker/internal/finger"
)

// ErrMalformed is returned by ParseLine for lines that are not transitions.
var ErrMalformed = errors.New("malformed key event")

// Source produces key events until ctx is done or the hook ends.
type Source interface {
	Run(ctx context.Context, out chan<- engine.KeyEvent) error
}

// ParseLine converts one hook line into a KeyEvent. now stamps events that
// carry no timestamp.
func ParseLine(line string, now time.Time) (engine.KeyEvent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return engine.KeyEvent{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	at := now
	if ms, err := strconv.ParseInt(fields[0], 10, 64); err == nil && len(fields) >= 3 {
		at = time.UnixMilli(ms)
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return engine.KeyEvent{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	var tr engine.Transition
	switch strings.ToUpper(fields[0]) {
	case "DOWN":
		tr = engine.Down
	case "UP":
		tr = engine.Up
	default:
		return engine.KeyEvent{}, fmt.Errorf("%w: unknown direction %q", ErrMalformed, fields[0])
	}

	return engine.KeyEvent{
		Key:        finger.NormalizeKey(strings.Join(fields[1:], " ")),
		Transition: tr,
		At:         at,
	}, nil
}

// ReaderSource reads hook lines from an io.Reader, e.g. stdin or a pipe.
type ReaderSource struct {
	R      io.Reader
	Logger *slog.Logger
	// Now stamps events; nil uses time.Now.
	Now func() time.Time
}

// Run scans lines until EOF or ctx is done. Malformed lines are logged and
// skipped. EOF returns nil.
func (s *ReaderSource) Run(ctx context.Context, out chan<- engine.KeyEvent) error {
	return scan(ctx, s.R, out, s.logger(), s.now)
}

func (s *ReaderSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ReaderSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func scan(ctx context.Context, r io.Reader, out chan<- engine.KeyEvent, log *slog.Logger, now func() time.Time) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := ParseLine(line, now())
		if err != nil {
			log.Debug("skipping hook line", "line", line, "err", err)
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("keyhook: read: %w", err)
	}
	return nil
}
