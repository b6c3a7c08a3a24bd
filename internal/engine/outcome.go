package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/finger"
	"github.com/alexhamidi/typing-tracker/internal/store"
)

// Kind is what happened to one key-down.
type Kind int

const (
	// EchoSuppressed: the undo key press produced by our own correction.
	EchoSuppressed Kind = iota
	// RepeatIgnored: an auto-repeat discarded because DebounceRepeats is set.
	RepeatIgnored
	// NoVisualData: no frame could be obtained.
	NoVisualData
	// Calibrated: the frame was submitted in calibration mode.
	Calibrated
	// NoReference: the key has no expected finger.
	NoReference
	// NoFinger: the classifier failed or returned no label.
	NoFinger
	// Correct: the expected finger struck the key.
	Correct
	// Incorrect: another finger struck the key; a correction was issued.
	Incorrect
)

var kindNames = [...]string{
	EchoSuppressed: "echo_suppressed",
	RepeatIgnored:  "repeat_ignored",
	NoVisualData:   "no_visual_data",
	Calibrated:     "calibrated",
	NoReference:    "no_reference",
	NoFinger:       "no_finger",
	Correct:        store.KindCorrect,
	Incorrect:      store.KindIncorrect,
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// WrongFingerBanner frames the warning printed for an incorrect keystroke.
const WrongFingerBanner = "⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️⛔️⚠️"

// Outcome is the result of processing one key-down.
type Outcome struct {
	Key      string
	Mode     classifier.Mode
	Kind     Kind
	Expected finger.ID
	Detected finger.ID
	Distance *float64
	// Message is the human-readable feedback line.
	Message string
	// Latency of the classifier call; zero when none was made.
	Latency time.Duration
	At      time.Time
}

// Judged reports whether the outcome is a correctness verdict.
func (o Outcome) Judged() bool {
	return o.Kind == Correct || o.Kind == Incorrect
}

// Recorder persists outcomes.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// StoreRecorder writes outcomes to the SQLite history.
type StoreRecorder struct {
	Outcomes *store.OutcomeRepository
}

// Record implements Recorder.
func (r StoreRecorder) Record(ctx context.Context, o Outcome) error {
	return r.Outcomes.Create(ctx, &store.Outcome{
		Key:       o.Key,
		Mode:      o.Mode.String(),
		Kind:      o.Kind.String(),
		Expected:  string(o.Expected),
		Detected:  string(o.Detected),
		Distance:  o.Distance,
		Latency:   o.Latency,
		CreatedAt: o.At,
	})
}
