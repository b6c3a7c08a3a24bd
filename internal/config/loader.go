package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexhamidi/typing-tracker/internal/finger"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8765",
			LogLevel:   LogInfo,
		},
		Classifier: ClassifierConfig{
			URL:           "http://localhost:8000",
			Timeout:       3 * time.Second,
			MinConfidence: 0.5,
			IdleTimeout:   5 * time.Minute,
		},
		Frames: FramesConfig{
			Timeout: 2 * time.Second,
		},
		Camera: CameraConfig{
			Width:           640,
			Height:          480,
			FPS:             10,
			MotionThreshold: 0.5,
			RefreshInterval: 2 * time.Second,
			JPEGQuality:     80,
		},
		Transport: TransportConfig{
			Enabled:            true,
			ICEServers:         []string{"stun:stun.l.google.com:19302"},
			NegotiationTimeout: 15 * time.Second,
			KeyframeInterval:   time.Second,
			JPEGQuality:        80,
		},
		Engine: EngineConfig{
			Mode:       "infer",
			UndoKey:    "BACKSPACE",
			EchoWindow: time.Second,
		},
		Plugins: PluginsConfig{
			Dir:     DefaultPluginDir(),
			Timeout: 2 * time.Second,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path reads DefaultPath if it exists and otherwise
// returns the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, Validate(cfg)
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates it. Unknown fields are errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !cfg.Classifier.Local {
		if err := checkURL(cfg.Classifier.URL); err != nil {
			errs = append(errs, fmt.Errorf("classifier.url: %w", err))
		}
	}
	if cfg.Classifier.Timeout <= 0 {
		errs = append(errs, errors.New("classifier.timeout must be positive"))
	}
	if c := cfg.Classifier.MinConfidence; c < 0 || c > 1 {
		errs = append(errs, fmt.Errorf("classifier.min_confidence %.2f is out of range [0, 1]", c))
	}

	if cfg.Frames.PullURL != "" {
		if err := checkURL(cfg.Frames.PullURL); err != nil {
			errs = append(errs, fmt.Errorf("frames.pull_url: %w", err))
		}
	}

	if cfg.Camera.Enabled {
		if cfg.Camera.FPS <= 0 {
			errs = append(errs, errors.New("camera.fps must be positive"))
		}
		if cfg.Camera.MotionThreshold < 0 || cfg.Camera.MotionThreshold > 100 {
			errs = append(errs, fmt.Errorf("camera.motion_threshold %.2f is out of range [0, 100]", cfg.Camera.MotionThreshold))
		}
	}
	if q := cfg.Camera.JPEGQuality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("camera.jpeg_quality %d is out of range [1, 100]", q))
	}

	if cfg.Transport.Enabled {
		if cfg.Server.ListenAddr == "" {
			errs = append(errs, errors.New("transport.enabled requires server.listen_addr for /signal"))
		}
		if cfg.Transport.NegotiationTimeout <= 0 {
			errs = append(errs, errors.New("transport.negotiation_timeout must be positive"))
		}
		for i, s := range cfg.Transport.ICEServers {
			if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "turn:") && !strings.HasPrefix(s, "turns:") {
				errs = append(errs, fmt.Errorf("transport.ice_servers[%d] %q must start with stun:, turn: or turns:", i, s))
			}
		}
	}

	switch cfg.Engine.Mode {
	case "infer", "calibrate":
	default:
		errs = append(errs, fmt.Errorf("engine.mode %q is invalid; valid values: infer, calibrate", cfg.Engine.Mode))
	}
	if strings.TrimSpace(cfg.Engine.UndoKey) == "" {
		errs = append(errs, errors.New("engine.undo_key is required"))
	}
	if cfg.Engine.MappingFile != "" {
		if _, err := finger.LoadMapping(cfg.Engine.MappingFile); err != nil {
			errs = append(errs, fmt.Errorf("engine.mapping_file: %w", err))
		}
	}

	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if cfg.Store.Retention < 0 {
		errs = append(errs, errors.New("store.retention must not be negative"))
	}

	return errors.Join(errs...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must be an http or https URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
