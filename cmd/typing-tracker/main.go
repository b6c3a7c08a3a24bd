// Command typing-tracker watches which finger strikes each key and undoes
// keystrokes typed with the wrong one.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexhamidi/typing-tracker/internal/app"
	"github.com/alexhamidi/typing-tracker/internal/classifier"
	"github.com/alexhamidi/typing-tracker/internal/config"
	"github.com/alexhamidi/typing-tracker/internal/engine"
	"github.com/alexhamidi/typing-tracker/internal/tray"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string

	runCalibrate bool
	runLogLevel  string
	runListen    string
	runNoTray    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typing-tracker",
		Short:         "Finger-placement tracker for touch typing",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (default: $XDG_CONFIG_HOME/typing-tracker/config.yaml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newCalibrationCmd())
	rootCmd.AddCommand(newPluginsCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Track keystrokes until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runTrackCmd,
	}
	cmd.Flags().BoolVar(&runCalibrate, "calibrate", false, "start in calibration mode")
	cmd.Flags().StringVar(&runLogLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.Flags().StringVar(&runListen, "listen", "", "HTTP listen address for signaling and the API")
	cmd.Flags().BoolVar(&runNoTray, "no-tray", false, "do not show the system tray icon")
	return cmd
}

// loadConfig reads the config file and applies the run flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Server.LogLevel = config.LogLevel(runLogLevel)
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.ListenAddr = runListen
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTrackCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mode := ""
	if runCalibrate {
		mode = classifier.Calibrate.String()
	}

	var t *tray.Tray
	observers := []func(engine.Outcome){printOutcome}
	if cfg.Tray.Enabled && !runNoTray {
		t = tray.New(classifier.Infer)
		observers = append(observers, t.Observe)
	}

	application, err := app.New(ctx, app.Options{
		Config:   cfg,
		Version:  version,
		Logger:   logger,
		Mode:     mode,
		Observer: fanOut(observers),
	})
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			slog.Warn("shutdown error", "err", cerr)
		}
	}()

	slog.Info("typing-tracker starting",
		"version", version,
		"listen_addr", application.Addr().String(),
		"mode", application.Mode().String(),
		"store", cfg.Store.Path,
	)

	if t == nil {
		return application.Run(ctx)
	}
	return runWithTray(ctx, stop, application, t)
}

// runWithTray keeps the tray on the calling goroutine, which macOS requires,
// and the tracker on another.
func runWithTray(ctx context.Context, stop context.CancelFunc, application *app.App, t *tray.Tray) error {
	t.SetMode(application.Mode())
	t.OnModeChange(func(m classifier.Mode) {
		if err := application.SetMode(ctx, m); err != nil {
			slog.Warn("failed to switch mode", "err", err)
		}
	})
	application.OnModeChange(t.SetMode)
	t.OnQuit(stop)

	errc := make(chan error, 1)
	go func() {
		errc <- application.Run(ctx)
		t.Quit()
	}()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.SetSession(application.Session().String())
			}
		}
	}()

	t.Run()
	stop()
	return <-errc
}

func fanOut(observers []func(engine.Outcome)) func(engine.Outcome) {
	return func(o engine.Outcome) {
		for _, fn := range observers {
			fn(o)
		}
	}
}

// printOutcome writes the human feedback line for a keystroke to stdout.
func printOutcome(o engine.Outcome) {
	switch o.Kind {
	case engine.EchoSuppressed, engine.RepeatIgnored:
		return
	case engine.Incorrect:
		fmt.Println(engine.WrongFingerBanner)
		fmt.Println("WARNING: WRONG FINGER DETECTED!")
		fmt.Println(o.Message)
		fmt.Println(engine.WrongFingerBanner)
	default:
		fmt.Println(o.Message)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
