package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// FeedConfig tunes the local camera feed.
type FeedConfig struct {
	// Interval between camera reads. Zero derives it from DefaultFPS.
	Interval time.Duration
	// RefreshInterval forces a publish when the stored frame is older than
	// this, even without motion. Zero means 2 seconds.
	RefreshInterval time.Duration
	// Quality is the JPEG quality, 1..100.
	Quality int
	Logger  *slog.Logger
}

// Feed copies images from a local Camera into a Store. An image is published
// when it differs from the last published one or when the stored frame has
// gone stale.
type Feed struct {
	cam    Camera
	motion *MotionDetector
	store  *Store
	cfg    FeedConfig
	log    *slog.Logger

	running    atomic.Bool
	published  atomic.Uint64
	lastPublic atomic.Int64
}

// NewFeed wires a camera to a store. motion may be nil, in which case every
// image is published.
func NewFeed(cam Camera, motion *MotionDetector, store *Store, cfg FeedConfig) *Feed {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second / DefaultFPS
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 2 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Feed{cam: cam, motion: motion, store: store, cfg: cfg, log: log}
}

// Running reports whether the feed is currently producing frames. The
// selector treats a running feed as an active push source.
func (f *Feed) Running() bool {
	return f.running.Load()
}

// Published returns the number of frames written to the store.
func (f *Feed) Published() uint64 {
	return f.published.Load()
}

// Run opens the camera and publishes frames until ctx is cancelled. It
// returns nil on cancellation and an error only if the camera cannot be opened.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.cam.Open(); err != nil {
		return fmt.Errorf("start camera feed: %w", err)
	}
	defer f.cam.Close()
	if f.motion != nil {
		defer f.motion.Close()
	}

	f.running.Store(true)
	defer f.running.Store(false)
	f.log.Info("camera feed started", "interval", f.cfg.Interval)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			f.log.Info("camera feed stopped", "published", f.Published())
			return nil
		case now := <-ticker.C:
			if err := f.step(now); err != nil {
				failures++
				// Log the first failure of a streak and then every 50th.
				if failures == 1 || failures%50 == 0 {
					f.log.Warn("camera read failed", "err", err, "consecutive", failures)
				}
				continue
			}
			failures = 0
		}
	}
}

// step reads one image and publishes it if needed.
func (f *Feed) step(now time.Time) error {
	img, err := f.cam.Read()
	if err != nil {
		return err
	}
	defer img.Close()

	stale := now.Sub(time.Unix(0, f.lastPublic.Load())) >= f.cfg.RefreshInterval
	changed := true
	if f.motion != nil {
		changed, _ = f.motion.Changed(img)
	}
	if !changed && !stale {
		return nil
	}

	data, err := EncodeJPEG(img, f.cfg.Quality)
	if err != nil {
		return err
	}
	f.store.Write(Frame{Data: data, CapturedAt: now})
	if f.motion != nil {
		f.motion.Accept(img)
	}
	f.lastPublic.Store(now.UnixNano())
	f.published.Add(1)
	return nil
}
