// Package config provides the configuration schema and loader for the typing
// tracker. Configuration is a YAML file; every field has a default so an
// absent file is valid.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Frames     FramesConfig     `yaml:"frames"`
	Camera     CameraConfig     `yaml:"camera"`
	Transport  TransportConfig  `yaml:"transport"`
	Engine     EngineConfig     `yaml:"engine"`
	KeyHook    KeyHookConfig    `yaml:"keyhook"`
	Plugins    PluginsConfig    `yaml:"plugins"`
	Store      StoreConfig      `yaml:"store"`
	Tray       TrayConfig       `yaml:"tray"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr serves /signal, /metrics and /api. Empty disables the server.
	ListenAddr string   `yaml:"listen_addr"`
	LogLevel   LogLevel `yaml:"log_level"`
}

// ClassifierConfig selects the finger classifier.
type ClassifierConfig struct {
	// URL of the classification service (POST {url}/infer/{key}).
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`

	// Local classifies in-process with the MediaPipe hand detector instead
	// of calling the service.
	Local         bool          `yaml:"local"`
	ScriptPath    string        `yaml:"script_path"`
	Python        string        `yaml:"python"`
	MinConfidence float64       `yaml:"min_confidence"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// FramesConfig configures the pull frame source.
type FramesConfig struct {
	// PullURL is fetched per keystroke when no push source is active, e.g.
	// "http://phone.local:8080/frame". Empty disables pulling.
	PullURL string        `yaml:"pull_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CameraConfig configures the optional local camera feed.
type CameraConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Device          int           `yaml:"device"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	FPS             float64       `yaml:"fps"`
	MotionThreshold float64       `yaml:"motion_threshold"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	JPEGQuality     int           `yaml:"jpeg_quality"`
}

// TransportConfig configures the WebRTC push source.
type TransportConfig struct {
	Enabled            bool          `yaml:"enabled"`
	ICEServers         []string      `yaml:"ice_servers"`
	NegotiationTimeout time.Duration `yaml:"negotiation_timeout"`
	KeyframeInterval   time.Duration `yaml:"keyframe_interval"`
	// InitiateOffer makes the tracker send the offer instead of the phone.
	InitiateOffer bool `yaml:"initiate_offer"`
	JPEGQuality   int  `yaml:"jpeg_quality"`
}

// EngineConfig configures the correction engine.
type EngineConfig struct {
	// Mode is "infer" or "calibrate".
	Mode            string        `yaml:"mode"`
	UndoKey         string        `yaml:"undo_key"`
	EchoWindow      time.Duration `yaml:"echo_window"`
	DebounceRepeats bool          `yaml:"debounce_repeats"`
	// MappingFile overlays the built-in key → finger table.
	MappingFile string `yaml:"mapping_file"`
}

// KeyHookConfig selects where key events come from.
type KeyHookConfig struct {
	// Command runs a global key listener printing "DOWN<TAB>KEY" lines.
	// Empty reads the same format from stdin.
	Command []string `yaml:"command"`
}

// PluginsConfig locates the corrective plugins.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig locates the SQLite history.
type StoreConfig struct {
	Path string `yaml:"path"`
	// Retention prunes outcomes older than this at start-up. Zero keeps all.
	Retention time.Duration `yaml:"retention"`
}

// TrayConfig toggles the system tray.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}
