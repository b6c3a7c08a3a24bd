package keyhook

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/engine"
)

func TestParseLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		line    string
		want    engine.KeyEvent
		wantErr bool
	}{
		{"tab separated", "DOWN\tA", engine.KeyEvent{Key: "A", Transition: engine.Down, At: now}, false},
		{"space separated", "up a", engine.KeyEvent{Key: "A", Transition: engine.Up, At: now}, false},
		{"multi word key", "DOWN\tLEFT SHIFT", engine.KeyEvent{Key: "LEFT SHIFT", Transition: engine.Down, At: now}, false},
		{"digit key", "DOWN 1", engine.KeyEvent{Key: "1", Transition: engine.Down, At: now}, false},
		{"timestamped", "1772355600000 DOWN SPACE", engine.KeyEvent{Key: "SPACE", Transition: engine.Down, At: time.UnixMilli(1772355600000)}, false},
		{"empty", "", engine.KeyEvent{}, true},
		{"direction only", "DOWN", engine.KeyEvent{}, true},
		{"bad direction", "HOLD A", engine.KeyEvent{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line, now)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("err = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			if got.Key != tt.want.Key || got.Transition != tt.want.Transition || !got.At.Equal(tt.want.At) {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func collect(t *testing.T, src Source) []engine.KeyEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan engine.KeyEvent, 16)
	if err := src.Run(ctx, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var events []engine.KeyEvent
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestReaderSource(t *testing.T) {
	input := strings.Join([]string{
		"# hook v1",
		"DOWN\tA",
		"garbage",
		"",
		"UP\tA",
		"DOWN\tBACKSPACE",
	}, "\n")

	events := collect(t, &ReaderSource{R: strings.NewReader(input)})

	want := []string{"DOWN A", "UP A", "DOWN BACKSPACE"}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, ev := range events {
		if got := ev.Transition.String() + " " + ev.Key; got != want[i] {
			t.Errorf("event %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestReaderSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and never drained: only cancellation can end Run.
	out := make(chan engine.KeyEvent)
	src := &ReaderSource{R: strings.NewReader("DOWN A\nDOWN B\n")}
	if err := src.Run(ctx, out); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}

func TestProcessSource(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	src := NewProcessSource([]string{"sh", "-c", `printf 'DOWN\tJ\nUP\tJ\n'`}, nil)
	events := collect(t, src)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Key != "J" || events[0].Transition != engine.Down {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestProcessSourceFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	src := NewProcessSource([]string{"sh", "-c", "exit 3"}, nil)
	err := src.Run(context.Background(), make(chan engine.KeyEvent, 1))
	if err == nil {
		t.Fatal("Run succeeded, want exit error")
	}
}

func TestProcessSourceNoCommand(t *testing.T) {
	err := NewProcessSource(nil, nil).Run(context.Background(), make(chan engine.KeyEvent))
	if !errors.Is(err, ErrNoCommand) {
		t.Errorf("err = %v, want ErrNoCommand", err)
	}
}
