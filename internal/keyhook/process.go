package keyhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/engine"
)

// ErrNoCommand is returned when a ProcessSource has nothing to run.
var ErrNoCommand = errors.New("keyhook: no hook command configured")

// ProcessSource runs an external key listener and reads its stdout.
type ProcessSource struct {
	Command []string
	Logger  *slog.Logger
}

// NewProcessSource creates a source for the given command line.
func NewProcessSource(command []string, logger *slog.Logger) *ProcessSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessSource{Command: command, Logger: logger}
}

// Run starts the hook and forwards its events until the process exits or
// ctx is done. Cancelling ctx kills the process and returns nil.
func (p *ProcessSource) Run(ctx context.Context, out chan<- engine.KeyEvent) error {
	if len(p.Command) == 0 {
		return ErrNoCommand
	}

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = 2 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("keyhook: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("keyhook: start %s: %w", p.Command[0], err)
	}
	p.Logger.Info("key hook started", "command", p.Command[0], "pid", cmd.Process.Pid)

	scanErr := scan(ctx, stdout, out, p.Logger, time.Now)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if scanErr != nil {
		return scanErr
	}
	if waitErr != nil {
		return fmt.Errorf("keyhook: %s exited: %w", p.Command[0], waitErr)
	}
	return nil
}
