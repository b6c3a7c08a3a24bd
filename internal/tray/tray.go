// Package tray shows the typing tracker in the system tray: the current mode
// with a toggle between inference and calibration, the session state, the
// last verdict and a running accuracy score.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/engine"
)

// Tray represents the system tray application.
type Tray struct {
	onMode func(mode classifier.Mode)
	onQuit func()

	mu        sync.RWMutex
	mode      classifier.Mode
	session   string
	last      string
	correct   int
	incorrect int

	// Menu items stored for later updates; nil until the tray is ready.
	menuMode    *systray.MenuItem
	menuSession *systray.MenuItem
	menuLast    *systray.MenuItem
	menuScore   *systray.MenuItem
}

// New creates a Tray showing the given mode.
func New(mode classifier.Mode) *Tray {
	return &Tray{mode: mode, session: "idle"}
}

// OnModeChange sets the callback run when the user toggles the mode.
func (t *Tray) OnModeChange(fn func(mode classifier.Mode)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMode = fn
}

// OnQuit sets the callback run when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit is called and must run on
// the main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("⌨")
	systray.SetTooltip("Typing Tracker")

	t.mu.Lock()
	t.menuMode = systray.AddMenuItem(modeTitle(t.mode), "Switch between inference and calibration")
	systray.AddSeparator()
	t.menuSession = systray.AddMenuItem(sessionTitle(t.session), "Remote camera session")
	t.menuSession.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last keystroke verdict")
	t.menuLast.Disable()
	t.menuScore = systray.AddMenuItem(scoreTitle(t.correct, t.incorrect), "Accuracy since start")
	t.menuScore.Disable()
	t.mu.Unlock()
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Typing Tracker")

	go func() {
		for {
			select {
			case <-t.menuMode.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	next := classifier.Calibrate
	if t.mode == classifier.Calibrate {
		next = classifier.Infer
	}
	callback := t.onMode
	t.mu.Unlock()

	// The callback decides; SetMode reflects what it applied.
	if callback != nil {
		callback(next)
		return
	}
	t.SetMode(next)
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetMode updates the displayed mode.
func (t *Tray) SetMode(mode classifier.Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	if t.menuMode != nil {
		t.menuMode.SetTitle(modeTitle(mode))
	}
}

// Mode returns the displayed mode.
func (t *Tray) Mode() classifier.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// SetSession updates the displayed session state.
func (t *Tray) SetSession(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = state
	if t.menuSession != nil {
		t.menuSession.SetTitle(sessionTitle(state))
	}
}

// Observe records an engine outcome. It is meant to be the engine's observer.
func (t *Tray) Observe(o engine.Outcome) {
	switch o.Kind {
	case engine.EchoSuppressed, engine.RepeatIgnored:
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch o.Kind {
	case engine.Correct:
		t.correct++
	case engine.Incorrect:
		t.incorrect++
	}
	t.last = fmt.Sprintf("%s %s", o.Key, o.Kind)
	if o.Kind == engine.Incorrect {
		t.last = fmt.Sprintf("%s: %s instead of %s", o.Key, o.Detected.Name(), o.Expected.Name())
	}

	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(t.last))
		t.menuScore.SetTitle(scoreTitle(t.correct, t.incorrect))
	}
}

// Score returns the correct and incorrect counts observed so far.
func (t *Tray) Score() (correct, incorrect int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.correct, t.incorrect
}

// Last returns the text of the last observed verdict.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func modeTitle(m classifier.Mode) string {
	if m == classifier.Calibrate {
		return "○ Calibrating"
	}
	return "● Tracking"
}

func sessionTitle(state string) string {
	return "Camera: " + state
}

func lastTitle(last string) string {
	if last == "" {
		return "Last: none"
	}
	return "Last: " + last
}

func scoreTitle(correct, incorrect int) string {
	judged := correct + incorrect
	if judged == 0 {
		return "Accuracy: n/a"
	}
	return fmt.Sprintf("Accuracy: %.0f%% (%d/%d)", 100*float64(correct)/float64(judged), correct, judged)
}
