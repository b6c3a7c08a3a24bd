// Package engine correlates key-down events with the latest image of the
// hands, asks the classifier which finger struck the key and, when it was the
// wrong one, undoes the keystroke and raises an alert.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/finger"
	"github.com/alexhamidi/typing-tracker/internal/observe"
)

// DefaultUndoKey is the key the corrective undo synthesises.
const DefaultUndoKey = "BACKSPACE"

// Transition is the direction of a key event.
type Transition int

const (
	Down Transition = iota
	Up
)

func (t Transition) String() string {
	if t == Up {
		return "UP"
	}
	return "DOWN"
}

// KeyEvent is one key transition from the keyboard hook.
type KeyEvent struct {
	Key        string
	Transition Transition
	At         time.Time
}

// FrameSource yields the frame to classify for a keystroke.
type FrameSource interface {
	Acquire(ctx context.Context) (capture.Frame, error)
}

// ErrNotAttempted marks a corrective action that failed before anything was
// injected, for example because no plugin provides it.
var ErrNotAttempted = errors.New("engine: corrective action not attempted")

// Corrector performs the corrective primitives. Both are best effort; key is
// the keystroke being corrected.
type Corrector interface {
	// Undo removes the character key typed, typically by synthesising the undo key.
	Undo(ctx context.Context, key string) error
	// Alert signals the mistake to the typist.
	Alert(ctx context.Context, key string) error
}

// Config wires an Engine.
type Config struct {
	Mapping    *finger.Mapping
	Frames     FrameSource
	Classifier classifier.Classifier

	// Optional collaborators.
	Corrector Corrector
	Recorder  Recorder
	Observer  func(Outcome)
	Metrics   *observe.Metrics
	Logger    *slog.Logger

	// UndoKey is the key whose next press after a correction is our own echo.
	UndoKey string
	// EchoWindow bounds how long suppression stays armed. Zero or negative
	// keeps it armed until the undo key is seen.
	EchoWindow time.Duration
	// DebounceRepeats discards auto-repeat key-downs instead of classifying them.
	DebounceRepeats bool

	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// suppression is the "ignore next undo echo" flag.
type suppression struct {
	armed     bool
	key       string
	corrected string
	deadline  time.Time
}

// Engine processes key events one at a time.
type Engine struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	held     map[string]bool
	suppress suppression
}

// New validates cfg and creates an Engine.
func New(cfg Config) (*Engine, error) {
	var errs []error
	if cfg.Mapping == nil {
		errs = append(errs, errors.New("engine: mapping is required"))
	}
	if cfg.Frames == nil {
		errs = append(errs, errors.New("engine: frame source is required"))
	}
	if cfg.Classifier == nil {
		errs = append(errs, errors.New("engine: classifier is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.UndoKey == "" {
		cfg.UndoKey = DefaultUndoKey
	}
	cfg.UndoKey = finger.NormalizeKey(cfg.UndoKey)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Engine{cfg: cfg, log: log, held: make(map[string]bool)}, nil
}

// Run consumes events until the channel closes or ctx is done. mode is read
// once per event so the caller can switch between inference and calibration
// at any time.
func (e *Engine) Run(ctx context.Context, events <-chan KeyEvent, mode func() classifier.Mode) error {
	if mode == nil {
		mode = func() classifier.Mode { return classifier.Infer }
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.Handle(ctx, ev, mode())
		}
	}
}

// Handle processes one event. Key-up events only update held-key state and
// return false. Every key-down yields exactly one Outcome.
func (e *Engine) Handle(ctx context.Context, ev KeyEvent, mode classifier.Mode) (Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := finger.NormalizeKey(ev.Key)
	at := ev.At
	if at.IsZero() {
		at = e.cfg.Now()
	}

	if ev.Transition == Up {
		delete(e.held, key)
		return Outcome{}, false
	}

	repeat := e.held[key]
	e.held[key] = true

	out := e.decide(ctx, key, mode, repeat, at)
	e.publish(ctx, out)
	return out, true
}

func (e *Engine) decide(ctx context.Context, key string, mode classifier.Mode, repeat bool, at time.Time) Outcome {
	out := Outcome{Key: key, Mode: mode, At: at}

	if corrected, ok := e.consumeEcho(key, at); ok {
		out.Kind = EchoSuppressed
		out.Message = fmt.Sprintf("%s: ignored echo of correction to %s", key, corrected)
		return out
	}

	if repeat && e.cfg.DebounceRepeats {
		out.Kind = RepeatIgnored
		out.Message = fmt.Sprintf("%s: auto-repeat ignored", key)
		return out
	}

	frame, err := e.cfg.Frames.Acquire(ctx)
	if err != nil {
		out.Kind = NoVisualData
		out.Message = fmt.Sprintf("no visual data for %s", key)
		return out
	}
	e.cfg.Metrics.RecordFrameAge(ctx, frame.Age())

	start := time.Now()
	res, err := e.cfg.Classifier.Classify(ctx, frame, mode, key)
	out.Latency = time.Since(start)
	e.cfg.Metrics.RecordClassify(ctx, mode.String(), out.Latency, err)
	if err != nil {
		e.log.Warn("classification failed", "key", key, "mode", mode.String(), "err", err)
		res = classifier.Result{}
	}
	if res.Detected {
		out.Detected = res.Finger
		out.Distance = res.Distance
	}

	if mode == classifier.Calibrate {
		out.Kind = Calibrated
		switch {
		case err != nil:
			out.Message = fmt.Sprintf("%s: calibration failed: %v", key, err)
		case res.Message != "":
			out.Message = fmt.Sprintf("%s: calibrated (%s)", key, res.Message)
		default:
			out.Message = fmt.Sprintf("%s: calibrated", key)
		}
		return out
	}

	expected, ok := e.cfg.Mapping.Expected(key)
	if !ok {
		out.Kind = NoReference
		out.Message = fmt.Sprintf("no reference for %s", key)
		return out
	}
	out.Expected = expected

	if !res.Detected {
		out.Kind = NoFinger
		out.Message = fmt.Sprintf("no finger detected for %s", key)
		return out
	}

	if e.cfg.Mapping.Accepts(key, res.Finger) {
		out.Kind = Correct
		out.Message = fmt.Sprintf("✓ %s: Correct finger (%s)", key, res.Finger.Name())
		return out
	}

	out.Kind = Incorrect
	out.Message = fmt.Sprintf("YOU USED YOUR %s to click the %s key, use your %s instead",
		res.Finger.Name(), key, expected.Name())
	e.correct(ctx, key)
	return out
}

// consumeEcho disarms suppression and reports true, with the corrected key,
// when key is the pending echo. Expiry is judged by the event's own time, so
// an echo that queued behind slow work is still recognised. An expired flag
// is dropped without suppressing.
func (e *Engine) consumeEcho(key string, at time.Time) (string, bool) {
	s := e.suppress
	if !s.armed || key != s.key {
		return "", false
	}
	e.suppress = suppression{}
	if !s.deadline.IsZero() && at.After(s.deadline) {
		return "", false
	}
	return s.corrected, true
}

// correct arms suppression and then issues undo and alert.
func (e *Engine) correct(ctx context.Context, key string) {
	if e.cfg.Corrector == nil {
		return
	}

	e.suppress = suppression{armed: true, key: e.cfg.UndoKey, corrected: key}
	if e.cfg.EchoWindow > 0 {
		e.suppress.deadline = e.cfg.Now().Add(e.cfg.EchoWindow)
	}

	if err := e.cfg.Corrector.Undo(ctx, key); err != nil {
		// A failed or timed-out helper may still have typed the undo key, so
		// the flag stays armed unless nothing was attempted.
		if errors.Is(err, ErrNotAttempted) {
			e.suppress = suppression{}
		}
		e.log.Warn("undo failed", "err", err)
		e.cfg.Metrics.RecordCorrection(ctx, "undo", err)
	} else {
		e.cfg.Metrics.RecordCorrection(ctx, "undo", nil)
	}

	err := e.cfg.Corrector.Alert(ctx, key)
	if err != nil {
		e.log.Warn("alert failed", "err", err)
	}
	e.cfg.Metrics.RecordCorrection(ctx, "alert", err)
}

func (e *Engine) publish(ctx context.Context, out Outcome) {
	attrs := []any{"key", out.Key, "outcome", out.Kind.String(), "mode", out.Mode.String()}
	if out.Detected != "" {
		attrs = append(attrs, "detected", string(out.Detected))
	}
	if out.Expected != "" {
		attrs = append(attrs, "expected", string(out.Expected))
	}
	if out.Latency > 0 {
		attrs = append(attrs, "latency", out.Latency)
	}

	switch out.Kind {
	case Incorrect:
		e.log.Warn("WARNING: WRONG FINGER DETECTED! "+out.Message, attrs...)
	case NoFinger, NoVisualData:
		e.log.Warn(out.Message, attrs...)
	case EchoSuppressed, RepeatIgnored:
		e.log.Debug(out.Message, attrs...)
	default:
		e.log.Info(out.Message, attrs...)
	}

	e.cfg.Metrics.RecordKeystroke(ctx, out.Kind.String())

	if e.cfg.Recorder != nil && out.Kind != EchoSuppressed && out.Kind != RepeatIgnored {
		if err := e.cfg.Recorder.Record(ctx, out); err != nil {
			e.log.Warn("failed to record outcome", "key", out.Key, "err", err)
		}
	}
	if e.cfg.Observer != nil {
		e.cfg.Observer(out)
	}
}
