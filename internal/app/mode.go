package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/store"
)

// initMode picks the start-up mode: forced, then persisted, then configured.
func (a *App) initMode(ctx context.Context, forced string) error {
	source := "config"
	raw := a.cfg.Engine.Mode
	if forced != "" {
		source, raw = "flag", forced
	} else if v, err := a.store.Settings().Get(ctx, ModeSetting); err == nil {
		source, raw = "saved", v
	} else if !errors.Is(err, store.ErrNotFound) {
		a.log.Warn("failed to read saved mode", "err", err)
	}

	m, err := classifier.ParseMode(raw)
	if err != nil {
		return fmt.Errorf("%s mode: %w", source, err)
	}
	a.mode.Store(int32(m))
	a.log.Info("engine mode", "mode", m.String(), "source", source)
	return nil
}

// Mode returns the mode applied to the next keystroke.
func (a *App) Mode() classifier.Mode {
	return classifier.Mode(a.mode.Load())
}

// SetMode switches mode, persists it and notifies OnModeChange listeners.
func (a *App) SetMode(ctx context.Context, m classifier.Mode) error {
	if err := a.store.Settings().Set(ctx, ModeSetting, m.String()); err != nil {
		return fmt.Errorf("save mode: %w", err)
	}
	if prev := classifier.Mode(a.mode.Swap(int32(m))); prev == m {
		return nil
	}
	a.log.Info("engine mode changed", "mode", m.String())

	a.mu.Lock()
	listeners := append([]func(classifier.Mode){}, a.onMode...)
	a.mu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}
	return nil
}

// OnModeChange registers fn to run after every mode switch.
func (a *App) OnModeChange(fn func(classifier.Mode)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMode = append(a.onMode, fn)
}
