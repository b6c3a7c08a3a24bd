package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/finger"
)

type classifyCall struct {
	mode classifier.Mode
	key  string
}

type fakeClassifier struct {
	mu     sync.Mutex
	result classifier.Result
	err    error
	calls  []classifyCall
}

func (f *fakeClassifier) Classify(_ context.Context, _ capture.Frame, mode classifier.Mode, key string) (classifier.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, classifyCall{mode: mode, key: key})
	return f.result, f.err
}

func (f *fakeClassifier) returns(id finger.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = classifier.Result{Finger: id, Detected: true}
	f.err = nil
}

func (f *fakeClassifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCorrector struct {
	mu       sync.Mutex
	undos    int
	alerts   int
	undoKeys []string
	undoErr  error
	alertErr error
}

func (f *fakeCorrector) Undo(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undos++
	f.undoKeys = append(f.undoKeys, key)
	return f.undoErr
}

func (f *fakeCorrector) Alert(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
	return f.alertErr
}

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingRecorder) Record(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

type failingPuller struct{}

func (failingPuller) Fetch(context.Context) (capture.Frame, error) {
	return capture.Frame{}, capture.ErrFetch
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine     *Engine
	classifier *fakeClassifier
	corrector  *fakeCorrector
	recorder   *recordingRecorder
	store      *capture.Store
	clock      *clock
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		classifier: &fakeClassifier{},
		corrector:  &fakeCorrector{},
		recorder:   &recordingRecorder{},
		store:      capture.NewStore(),
		clock:      &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	h.store.Write(capture.Frame{Data: []byte{0xff, 0xd8, 0xff}, CapturedAt: h.clock.Now()})

	cfg := Config{
		Mapping:    finger.DefaultMapping(),
		Frames:     &capture.Selector{Store: h.store, Active: func() bool { return true }},
		Classifier: h.classifier,
		Corrector:  h.corrector,
		Recorder:   h.recorder,
		Now:        h.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = e
	return h
}

func (h *harness) down(t *testing.T, key string, mode classifier.Mode) Outcome {
	t.Helper()
	out, ok := h.engine.Handle(context.Background(), KeyEvent{Key: key, Transition: Down}, mode)
	if !ok {
		t.Fatalf("Handle(%s DOWN) produced no outcome", key)
	}
	return out
}

// downAt delivers a key-down stamped by the hook at the given time.
func (h *harness) downAt(t *testing.T, key string, at time.Time) Outcome {
	t.Helper()
	out, ok := h.engine.Handle(context.Background(), KeyEvent{Key: key, Transition: Down, At: at}, classifier.Infer)
	if !ok {
		t.Fatalf("Handle(%s DOWN) produced no outcome", key)
	}
	return out
}

func (h *harness) up(t *testing.T, key string) {
	t.Helper()
	if _, ok := h.engine.Handle(context.Background(), KeyEvent{Key: key, Transition: Up}, classifier.Infer); ok {
		t.Fatalf("Handle(%s UP) produced an outcome", key)
	}
}

func (h *harness) press(t *testing.T, key string, mode classifier.Mode) Outcome {
	t.Helper()
	out := h.down(t, key, mode)
	h.up(t, key)
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New(Config{}) succeeded, want error")
	}
	for _, want := range []string{"mapping", "frame source", "classifier"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		detected finger.ID
		want     Kind
		expected finger.ID
		undos    int
	}{
		{"correct home row", "A", finger.LeftPinky, Correct, finger.LeftPinky, 0},
		{"lower case key", "a", finger.LeftPinky, Correct, finger.LeftPinky, 0},
		{"wrong finger", "A", finger.RightIndex, Incorrect, finger.LeftPinky, 1},
		{"space right thumb", "SPACE", finger.RightThumb, Correct, finger.LeftThumb, 0},
		{"space left thumb", "SPACE", finger.LeftThumb, Correct, finger.LeftThumb, 0},
		{"space with index", "SPACE", finger.LeftIndex, Incorrect, finger.LeftThumb, 1},
		{"right hand key", "K", finger.RightMiddle, Correct, finger.RightMiddle, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.classifier.returns(tt.detected)

			out := h.press(t, tt.key, classifier.Infer)

			if out.Kind != tt.want {
				t.Errorf("Kind = %v, want %v (%s)", out.Kind, tt.want, out.Message)
			}
			if out.Expected != tt.expected {
				t.Errorf("Expected = %q, want %q", out.Expected, tt.expected)
			}
			if out.Detected != tt.detected {
				t.Errorf("Detected = %q, want %q", out.Detected, tt.detected)
			}
			if h.corrector.undos != tt.undos || h.corrector.alerts != tt.undos {
				t.Errorf("undos=%d alerts=%d, want %d each", h.corrector.undos, h.corrector.alerts, tt.undos)
			}
		})
	}
}

func TestWrongFingerIsCorrectedAndEchoSuppressed(t *testing.T) {
	h := newHarness(t, nil)
	h.classifier.returns(finger.RightIndex)

	out := h.press(t, "A", classifier.Infer)
	if out.Kind != Incorrect {
		t.Fatalf("Kind = %v, want incorrect", out.Kind)
	}
	if !strings.Contains(out.Message, "Right Index") || !strings.Contains(out.Message, "Left Pinky") {
		t.Errorf("Message = %q, want both finger names", out.Message)
	}
	if h.corrector.undos != 1 || h.corrector.alerts != 1 {
		t.Fatalf("undos=%d alerts=%d, want 1 each", h.corrector.undos, h.corrector.alerts)
	}
	if len(h.corrector.undoKeys) != 1 || h.corrector.undoKeys[0] != "A" {
		t.Errorf("undo keys = %v, want [A]", h.corrector.undoKeys)
	}

	// The synthetic backspace arrives next and must be ignored entirely.
	echo := h.press(t, "BACKSPACE", classifier.Infer)
	if echo.Kind != EchoSuppressed {
		t.Fatalf("echo Kind = %v, want echo_suppressed", echo.Kind)
	}
	if n := h.classifier.count(); n != 1 {
		t.Errorf("classifier calls = %d, want 1", n)
	}
	if h.corrector.undos != 1 {
		t.Errorf("undos = %d after echo, want 1", h.corrector.undos)
	}

	// A later, real backspace is processed normally.
	h.classifier.returns(finger.RightPinky)
	manual := h.press(t, "BACKSPACE", classifier.Infer)
	if manual.Kind != Correct {
		t.Errorf("real backspace Kind = %v, want correct", manual.Kind)
	}
	if n := h.classifier.count(); n != 2 {
		t.Errorf("classifier calls = %d, want 2", n)
	}
}

func TestSuppressionOnlyConsumedByUndoKey(t *testing.T) {
	h := newHarness(t, nil)
	h.classifier.returns(finger.RightIndex)
	h.press(t, "A", classifier.Infer)

	h.classifier.returns(finger.LeftRing)
	if out := h.press(t, "S", classifier.Infer); out.Kind != Correct {
		t.Errorf("S Kind = %v, want correct", out.Kind)
	}
	if out := h.press(t, "BACKSPACE", classifier.Infer); out.Kind != EchoSuppressed {
		t.Errorf("BACKSPACE Kind = %v, want echo_suppressed", out.Kind)
	}
}

func TestEchoWindowExpiry(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.EchoWindow = time.Second })
	h.classifier.returns(finger.RightIndex)
	h.press(t, "A", classifier.Infer)

	h.clock.Advance(2 * time.Second)
	h.classifier.returns(finger.RightPinky)

	out := h.press(t, "BACKSPACE", classifier.Infer)
	if out.Kind != Correct {
		t.Errorf("Kind = %v, want correct after the echo window passed", out.Kind)
	}
}

func TestEchoQueuedBehindSlowWork(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.EchoWindow = time.Second })
	t0 := h.clock.Now()

	h.classifier.returns(finger.RightIndex)
	if out := h.downAt(t, "A", t0); out.Kind != Incorrect {
		t.Fatalf("A Kind = %v, want incorrect", out.Kind)
	}
	h.up(t, "A")

	// A slow classification of the next key delays the engine past the
	// window, but the echo itself was typed right after the undo.
	h.classifier.returns(finger.LeftRing)
	h.downAt(t, "S", t0.Add(50*time.Millisecond))
	h.up(t, "S")
	h.clock.Advance(1500 * time.Millisecond)

	out := h.downAt(t, "BACKSPACE", t0.Add(100*time.Millisecond))
	if out.Kind != EchoSuppressed {
		t.Fatalf("echo Kind = %v, want echo_suppressed", out.Kind)
	}
	if n := h.classifier.count(); n != 2 {
		t.Errorf("classifier calls = %d, want 2", n)
	}
	if h.corrector.undos != 1 {
		t.Errorf("undos = %d, want 1", h.corrector.undos)
	}
}

func TestUndoFailureAndSuppression(t *testing.T) {
	tests := []struct {
		name     string
		undoErr  error
		wantEcho Kind
	}{
		{"nothing attempted", fmt.Errorf("keyboard: %w", ErrNotAttempted), Correct},
		{"helper timed out", errors.New("keyboard: plugin execution timeout"), EchoSuppressed},
		{"helper failed", errors.New("keyboard/undo: xdotool exited 1"), EchoSuppressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.corrector.undoErr = tt.undoErr
			h.classifier.returns(finger.RightIndex)

			if out := h.press(t, "A", classifier.Infer); out.Kind != Incorrect {
				t.Fatalf("Kind = %v, want incorrect", out.Kind)
			}
			if h.corrector.alerts != 1 {
				t.Errorf("alerts = %d, want 1 even when undo fails", h.corrector.alerts)
			}

			h.classifier.returns(finger.RightPinky)
			if out := h.press(t, "BACKSPACE", classifier.Infer); out.Kind != tt.wantEcho {
				t.Errorf("BACKSPACE Kind = %v, want %v", out.Kind, tt.wantEcho)
			}
		})
	}
}

func TestNoVisualData(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Frames = &capture.Selector{Store: capture.NewStore(), Pull: failingPuller{}}
	})
	h.classifier.returns(finger.LeftPinky)

	out := h.press(t, "Q", classifier.Infer)
	if out.Kind != NoVisualData {
		t.Fatalf("Kind = %v, want no_visual_data", out.Kind)
	}
	if !strings.Contains(out.Message, "no visual data") {
		t.Errorf("Message = %q", out.Message)
	}
	if n := h.classifier.count(); n != 0 {
		t.Errorf("classifier calls = %d, want 0", n)
	}
}

func TestNoReferenceAndNoFinger(t *testing.T) {
	t.Run("unmapped key", func(t *testing.T) {
		h := newHarness(t, nil)
		h.classifier.returns(finger.RightPinky)

		out := h.press(t, "F13", classifier.Infer)
		if out.Kind != NoReference {
			t.Errorf("Kind = %v, want no_reference", out.Kind)
		}
		if h.classifier.count() != 1 {
			t.Errorf("classifier calls = %d, want 1", h.classifier.count())
		}
		if h.corrector.undos != 0 {
			t.Errorf("undos = %d, want 0", h.corrector.undos)
		}
	})

	t.Run("no label", func(t *testing.T) {
		h := newHarness(t, nil)
		h.classifier.result = classifier.Result{Message: "No hands detected"}

		out := h.press(t, "A", classifier.Infer)
		if out.Kind != NoFinger {
			t.Errorf("Kind = %v, want no_finger", out.Kind)
		}
	})

	t.Run("classifier error", func(t *testing.T) {
		h := newHarness(t, nil)
		h.classifier.err = errors.New("connection refused")

		out := h.press(t, "A", classifier.Infer)
		if out.Kind != NoFinger {
			t.Errorf("Kind = %v, want no_finger", out.Kind)
		}
		if h.corrector.undos != 0 {
			t.Errorf("undos = %d, want 0", h.corrector.undos)
		}
	})
}

func TestCalibrationNeverCorrects(t *testing.T) {
	h := newHarness(t, nil)
	h.classifier.returns(finger.RightIndex)

	for _, key := range []string{"A", "J", "SPACE", "F13"} {
		out := h.press(t, key, classifier.Calibrate)
		if out.Kind != Calibrated {
			t.Errorf("%s Kind = %v, want calibrated", key, out.Kind)
		}
	}
	if h.corrector.undos != 0 || h.corrector.alerts != 0 {
		t.Errorf("undos=%d alerts=%d, want none", h.corrector.undos, h.corrector.alerts)
	}
	for _, c := range h.classifier.calls {
		if c.mode != classifier.Calibrate {
			t.Errorf("classify(%s) mode = %v, want calibrate", c.key, c.mode)
		}
	}
}

func TestAutoRepeat(t *testing.T) {
	t.Run("classified by default", func(t *testing.T) {
		h := newHarness(t, nil)
		h.classifier.returns(finger.LeftPinky)

		h.down(t, "A", classifier.Infer)
		out := h.down(t, "A", classifier.Infer)
		h.up(t, "A")

		if out.Kind != Correct {
			t.Errorf("repeat Kind = %v, want correct", out.Kind)
		}
		if h.classifier.count() != 2 {
			t.Errorf("classifier calls = %d, want 2", h.classifier.count())
		}
	})

	t.Run("debounced", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.DebounceRepeats = true })
		h.classifier.returns(finger.LeftPinky)

		h.down(t, "A", classifier.Infer)
		out := h.down(t, "A", classifier.Infer)
		if out.Kind != RepeatIgnored {
			t.Errorf("repeat Kind = %v, want repeat_ignored", out.Kind)
		}
		h.up(t, "A")

		if again := h.down(t, "A", classifier.Infer); again.Kind != Correct {
			t.Errorf("after release Kind = %v, want correct", again.Kind)
		}
		if h.classifier.count() != 2 {
			t.Errorf("classifier calls = %d, want 2", h.classifier.count())
		}
	})
}

func TestRecorderAndObserver(t *testing.T) {
	var observed []Kind
	h := newHarness(t, func(c *Config) {
		c.Observer = func(o Outcome) { observed = append(observed, o.Kind) }
	})
	h.classifier.returns(finger.RightIndex)

	h.press(t, "A", classifier.Infer)
	h.press(t, "BACKSPACE", classifier.Infer)

	want := []Kind{Incorrect, EchoSuppressed}
	if len(observed) != len(want) {
		t.Fatalf("observed = %v, want %v", observed, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("observed[%d] = %v, want %v", i, observed[i], want[i])
		}
	}

	if len(h.recorder.outcomes) != 1 {
		t.Fatalf("recorded %d outcomes, want 1", len(h.recorder.outcomes))
	}
	rec := h.recorder.outcomes[0]
	if rec.Key != "A" || rec.Kind != Incorrect || rec.Detected != finger.RightIndex {
		t.Errorf("recorded %+v", rec)
	}
	if !rec.At.Equal(h.clock.Now()) {
		t.Errorf("At = %v, want %v", rec.At, h.clock.Now())
	}
}

func TestRun(t *testing.T) {
	var mu sync.Mutex
	var kinds []Kind
	h := newHarness(t, func(c *Config) {
		c.Observer = func(o Outcome) {
			mu.Lock()
			kinds = append(kinds, o.Kind)
			mu.Unlock()
		}
	})
	h.classifier.returns(finger.LeftPinky)

	events := make(chan KeyEvent, 4)
	events <- KeyEvent{Key: "A", Transition: Down}
	events <- KeyEvent{Key: "A", Transition: Up}
	events <- KeyEvent{Key: "J", Transition: Down}
	events <- KeyEvent{Key: "J", Transition: Up}
	close(events)

	if err := h.engine.Run(context.Background(), events, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != Correct || kinds[1] != Incorrect {
		t.Errorf("kinds = %v, want [correct incorrect]", kinds)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx, make(chan KeyEvent), nil) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		EchoSuppressed: "echo_suppressed",
		NoVisualData:   "no_visual_data",
		Correct:        "correct",
		Incorrect:      "incorrect",
		Kind(42):       "kind(42)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
