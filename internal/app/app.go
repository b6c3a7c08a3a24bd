// Package app wires the typing tracker together: frame sources, the
// classifier, the correlation engine, corrective plugins, the key hook and
// the HTTP listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexhamidi/typing-tracker/internal/capture"
	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/config"
	"github.com/alexhamidi/typing-tracker/internal/detector"
	"github.com/alexhamidi/typing-tracker/internal/engine"
	"github.com/alexhamidi/typing-tracker/internal/finger"
	"github.com/alexhamidi/typing-tracker/internal/keyhook"
	"github.com/alexhamidi/typing-tracker/internal/observe"
	"github.com/alexhamidi/typing-tracker/internal/plugin"
	"github.com/alexhamidi/typing-tracker/internal/server"
	"github.com/alexhamidi/typing-tracker/internal/store"
	"github.com/alexhamidi/typing-tracker/internal/transport"
)

// ModeSetting is the settings key under which the selected mode is kept.
const ModeSetting = "engine.mode"

// Options configures an App. Only Config is required; the other fields
// replace the collaborator New would otherwise build from Config.
type Options struct {
	Config  *config.Config
	Version string
	Logger  *slog.Logger

	// Mode forces the start-up mode, e.g. from --calibrate. Empty uses the
	// persisted mode, then the configured one.
	Mode string

	Keys         keyhook.Source
	Classifier   classifier.Classifier
	Corrector    engine.Corrector
	Camera       capture.Camera
	NewTransport transport.TransportFactory
	NewDecoder   func() transport.Decoder
	Listener     net.Listener
	Observer     func(engine.Outcome)
}

// App is the running tracker.
type App struct {
	cfg *config.Config
	log *slog.Logger

	store    *store.Store
	frames   *capture.Store
	feed     *capture.Feed
	signal   *transport.SignalingHandler
	engine   *engine.Engine
	server   *server.Server
	keys     keyhook.Source
	listener net.Listener
	provider *observe.Provider
	closers  []io.Closer

	mode atomic.Int32

	mu        sync.Mutex
	onMode    []func(classifier.Mode)
	closeOnce sync.Once
}

// New builds an App. On error every resource opened so far is released.
func New(ctx context.Context, opts Options) (_ *App, err error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	a := &App{cfg: cfg, log: log, frames: capture.NewStore()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.provider, err = observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: opts.Version})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	metrics := a.provider.Metrics

	a.store, err = store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.store)
	a.pruneHistory(ctx)

	if err := a.initMode(ctx, opts.Mode); err != nil {
		return nil, err
	}

	mapping := finger.DefaultMapping()
	if cfg.Engine.MappingFile != "" {
		if mapping, err = finger.LoadMapping(cfg.Engine.MappingFile); err != nil {
			return nil, err
		}
	}

	cls := opts.Classifier
	if cls == nil {
		if cls, err = a.newClassifier(); err != nil {
			return nil, err
		}
	}

	corrector := opts.Corrector
	if corrector == nil {
		corrector = a.newCorrector()
	}

	if cfg.Transport.Enabled {
		a.signal = a.newSignaling(opts, metrics)
	}
	if cfg.Camera.Enabled {
		a.feed = a.newFeed(opts.Camera)
	}

	selector := &capture.Selector{Store: a.frames, Active: a.pushActive, Logger: log}
	if cfg.Frames.PullURL != "" {
		selector.Pull = capture.NewPullSource(cfg.Frames.PullURL, cfg.Frames.Timeout)
	}

	a.engine, err = engine.New(engine.Config{
		Mapping:         mapping,
		Frames:          selector,
		Classifier:      cls,
		Corrector:       corrector,
		Recorder:        engine.StoreRecorder{Outcomes: a.store.Outcomes()},
		Observer:        opts.Observer,
		Metrics:         metrics,
		Logger:          log.With("component", "engine"),
		UndoKey:         cfg.Engine.UndoKey,
		EchoWindow:      cfg.Engine.EchoWindow,
		DebounceRepeats: cfg.Engine.DebounceRepeats,
	})
	if err != nil {
		return nil, err
	}

	a.keys = opts.Keys
	if a.keys == nil {
		a.keys = a.newKeySource()
	}

	srvCfg := server.Config{
		Frames:         a.frames,
		History:        a.store,
		Mode:           a,
		MetricsHandler: a.provider.Handler,
		Metrics:        metrics,
		Version:        opts.Version,
		Logger:         log.With("component", "http"),
	}
	if a.signal != nil {
		srvCfg.Session = a.signal
		srvCfg.Signal = a.signal
	}
	a.server = server.New(srvCfg)

	a.listener = opts.Listener
	if a.listener == nil {
		if a.listener, err = net.Listen("tcp", cfg.Server.ListenAddr); err != nil {
			return nil, fmt.Errorf("listen on %s: %w", cfg.Server.ListenAddr, err)
		}
	}
	a.closers = append(a.closers, a.listener)

	return a, nil
}

func (a *App) newClassifier() (classifier.Classifier, error) {
	cc := a.cfg.Classifier
	if !cc.Local {
		a.log.Info("using classification service", "url", cc.URL)
		return classifier.NewClient(cc.URL, cc.Timeout), nil
	}

	dcfg := detector.DefaultConfig()
	dcfg.ScriptPath = cc.ScriptPath
	dcfg.Python = cc.Python
	if cc.MinConfidence > 0 {
		dcfg.MinConfidence = cc.MinConfidence
	}
	if cc.IdleTimeout > 0 {
		dcfg.IdleTimeout = cc.IdleTimeout
	}
	det, err := detector.NewMediaPipeDetector(dcfg)
	if err != nil {
		return nil, fmt.Errorf("local classifier: %w", err)
	}
	a.closers = append(a.closers, det)
	a.log.Info("using local MediaPipe classifier")
	return classifier.NewLocal(det, a.store.KeyPositions()), nil
}

func (a *App) newCorrector() engine.Corrector {
	log := a.log.With("component", "plugins")
	mgr := plugin.NewManager(a.cfg.Plugins.Dir, log)
	if err := mgr.Discover(); err != nil {
		log.Warn("plugin discovery failed; corrections will only be logged", "dir", a.cfg.Plugins.Dir, "err", err)
	}
	names := make([]string, 0, len(mgr.List()))
	for _, p := range mgr.List() {
		names = append(names, p.Manifest.Name)
	}
	log.Info("plugins discovered", "dir", mgr.PluginDir(), "plugins", names)
	return plugin.NewCorrector(mgr, plugin.NewExecutor(a.cfg.Plugins.Timeout), a.cfg.Engine.UndoKey, log)
}

func (a *App) newSignaling(opts Options, metrics *observe.Metrics) *transport.SignalingHandler {
	tc := a.cfg.Transport
	log := a.log.With("component", "transport")

	factory := opts.NewTransport
	if factory == nil {
		factory = transport.NewPionFactory(transport.PionConfig{
			ICEServers:       tc.ICEServers,
			KeyframeInterval: tc.KeyframeInterval,
			Logger:           log,
		})
	}
	newDecoder := opts.NewDecoder
	if newDecoder == nil {
		newDecoder = func() transport.Decoder { return transport.NewVP8Decoder(tc.JPEGQuality) }
	}

	return transport.NewSignalingHandler(transport.HandlerConfig{
		NewTransport:       factory,
		NewDecoder:         newDecoder,
		Store:              a.frames,
		NegotiationTimeout: tc.NegotiationTimeout,
		InitiateOffer:      tc.InitiateOffer,
		Metrics:            metrics,
		Logger:             log,
	})
}

func (a *App) newFeed(cam capture.Camera) *capture.Feed {
	cc := a.cfg.Camera
	if cam == nil {
		cam = capture.NewCamera(capture.CameraConfig{
			Device: cc.Device,
			Width:  cc.Width,
			Height: cc.Height,
			FPS:    int(cc.FPS),
		})
	}
	var interval time.Duration
	if cc.FPS > 0 {
		interval = time.Duration(float64(time.Second) / cc.FPS)
	}
	return capture.NewFeed(cam, capture.NewMotionDetector(cc.MotionThreshold), a.frames, capture.FeedConfig{
		Interval:        interval,
		RefreshInterval: cc.RefreshInterval,
		Quality:         cc.JPEGQuality,
		Logger:          a.log.With("component", "camera"),
	})
}

func (a *App) newKeySource() keyhook.Source {
	log := a.log.With("component", "keyhook")
	if len(a.cfg.KeyHook.Command) > 0 {
		return keyhook.NewProcessSource(a.cfg.KeyHook.Command, log)
	}
	log.Info("reading key events from stdin")
	return &keyhook.ReaderSource{R: os.Stdin, Logger: log}
}

// pushActive reports whether a push source currently feeds the frame store.
func (a *App) pushActive() bool {
	if a.signal != nil && a.signal.Active() {
		return true
	}
	return a.feed != nil && a.feed.Running()
}

func (a *App) pruneHistory(ctx context.Context) {
	if a.cfg.Store.Retention <= 0 {
		return
	}
	n, err := a.store.Outcomes().Prune(ctx, time.Now().Add(-a.cfg.Store.Retention))
	if err != nil {
		a.log.Warn("failed to prune outcome history", "err", err)
		return
	}
	if n > 0 {
		a.log.Info("pruned outcome history", "removed", n, "retention", a.cfg.Store.Retention)
	}
}

// Addr returns the address the HTTP listener is bound to.
func (a *App) Addr() net.Addr {
	return a.listener.Addr()
}

// Store returns the history store.
func (a *App) Store() *store.Store {
	return a.store
}

// Frames returns the shared frame store.
func (a *App) Frames() *capture.Store {
	return a.frames
}

// Session reports the state of the remote frame session, or Idle when the
// transport is disabled.
func (a *App) Session() transport.State {
	if a.signal == nil {
		return transport.Idle
	}
	return a.signal.State()
}

// Close releases everything New opened. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i].Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.provider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
