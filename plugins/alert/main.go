// Package main is the alert plugin. It plays a short error sound when a
// keystroke was struck with the wrong finger.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Key    string          `json:"key,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the optional per-plugin configuration.
type Config struct {
	Sound string `json:"sound"`
}

const (
	macSound   = "/System/Library/Sounds/Basso.aiff"
	linuxSound = "/usr/share/sounds/freedesktop/stereo/dialog-error.oga"
)

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if req.Action != "alert" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	if err := play(cfg.Sound); err != nil {
		writeErrorResponse(fmt.Sprintf("action alert failed: %v", err))
		return
	}
	writeSuccessResponse()
}

// play starts the sound player and returns without waiting for it to finish.
func play(sound string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		if sound == "" {
			sound = macSound
		}
		cmd = exec.Command("afplay", sound)
	case "linux":
		if sound == "" {
			sound = linuxSound
		}
		player, err := linuxPlayer()
		if err != nil {
			return err
		}
		cmd = exec.Command(player, sound)
	default:
		return fmt.Errorf("alert not supported on %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return cmd.Process.Release()
}

func linuxPlayer() (string, error) {
	for _, p := range []string{"paplay", "pw-play", "aplay"} {
		if path, err := exec.LookPath(p); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no sound player found (" + strings.Join([]string{"paplay", "pw-play", "aplay"}, ", ") + ")")
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
