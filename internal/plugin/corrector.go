package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexhamidi/typing-tracker/internal/engine"
)

// Plugin and action names of the corrective primitives.
const (
	UndoPlugin  = "keyboard"
	UndoAction  = "undo"
	AlertPlugin = "alert"
	AlertAction = "alert"
)

// ErrUnsupportedAction is returned when a plugin's manifest lacks the action.
var ErrUnsupportedAction = errors.New("action not supported by plugin")

// UndoParams are the params of the undo action.
type UndoParams struct {
	// Key is the key the plugin taps, named as the key hook reports it.
	Key string `json:"key"`
}

// Corrector performs undo and alert through plugins.
type Corrector struct {
	Manager  *Manager
	Executor *Executor
	// UndoKey is the key the undo plugin taps. Empty uses engine.DefaultUndoKey.
	UndoKey string
	Logger  *slog.Logger
}

// NewCorrector creates a Corrector.
func NewCorrector(m *Manager, e *Executor, undoKey string, logger *slog.Logger) *Corrector {
	if logger == nil {
		logger = slog.Default()
	}
	if undoKey == "" {
		undoKey = engine.DefaultUndoKey
	}
	return &Corrector{Manager: m, Executor: e, UndoKey: undoKey, Logger: logger}
}

// Undo taps the undo key to remove the character key typed.
func (c *Corrector) Undo(ctx context.Context, key string) error {
	params, err := json.Marshal(UndoParams{Key: c.UndoKey})
	if err != nil {
		return fmt.Errorf("%s/%s: %w: %w", UndoPlugin, UndoAction, err, engine.ErrNotAttempted)
	}
	return c.run(ctx, UndoPlugin, &Request{Action: UndoAction, Key: key, Params: params})
}

// Alert plays the mistake sound.
func (c *Corrector) Alert(ctx context.Context, key string) error {
	return c.run(ctx, AlertPlugin, &Request{Action: AlertAction, Key: key})
}

// run executes req. Errors raised before the plugin starts also match
// engine.ErrNotAttempted.
func (c *Corrector) run(ctx context.Context, name string, req *Request) error {
	p, err := c.Manager.Get(name)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", name, err, engine.ErrNotAttempted)
	}
	if !p.Supports(req.Action) {
		return fmt.Errorf("%s/%s: %w: %w", name, req.Action, ErrUnsupportedAction, engine.ErrNotAttempted)
	}

	resp, err := c.Executor.Execute(ctx, p, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s/%s: %s", name, req.Action, resp.Error)
	}
	c.Logger.Debug("corrective action done", "plugin", name, "action", req.Action, "key", req.Key)
	return nil
}
