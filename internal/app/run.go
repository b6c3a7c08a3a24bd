package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alexhamidi/typing-tracker/internal/engine"
)

// keyBuffer absorbs bursts while a classification is in flight.
const keyBuffer = 64

// Run serves until ctx is cancelled or the key stream ends. The engine
// handles keystrokes one at a time; the frame producers and the HTTP
// listener run alongside it.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	events := make(chan engine.KeyEvent, keyBuffer)

	g.Go(func() error {
		if err := a.server.Serve(ctx, a.listener); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer close(events)
		if err := a.keys.Run(ctx, events); err != nil {
			return fmt.Errorf("key hook: %w", err)
		}
		a.log.Info("key stream ended")
		return nil
	})

	g.Go(func() error {
		// Once the engine is done there is nothing left to serve.
		defer cancel()
		return a.engine.Run(ctx, events, a.Mode)
	})

	if a.feed != nil {
		g.Go(func() error {
			if err := a.feed.Run(ctx); err != nil {
				// The remote session and the pull source still work.
				a.log.Warn("local camera stopped", "err", err)
			}
			return nil
		})
	}

	if a.signal != nil {
		g.Go(func() error {
			<-ctx.Done()
			return a.signal.Close(context.Background())
		})
	}

	return g.Wait()
}
