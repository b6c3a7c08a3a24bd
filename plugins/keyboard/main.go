// Package main is the keyboard plugin. It synthesises the corrective undo: a
// single tap of the configured undo key, BACKSPACE unless told otherwise.
// macOS uses AppleScript through osascript; Linux uses xdotool.
package main

import (
	"encoding/json"
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

// UndoParams are the parameters of the undo action.
type UndoParams struct {
	// Key is the key to tap, named as the key hook reports it.
	Key string `json:"key"`
}

// undoKey is how one tappable key is named on each platform.
type undoKey struct {
	macKeyCode int
	xdoKeysym  string
}

// undoKeys lists the keys the undo action can tap.
var undoKeys = map[string]undoKey{
	"BACKSPACE": {macKeyCode: 51, xdoKeysym: "BackSpace"},
	"DELETE":    {macKeyCode: 117, xdoKeysym: "Delete"},
	"LEFT":      {macKeyCode: 123, xdoKeysym: "Left"},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "undo" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}
	name, args, err := undoCommand(runtime.GOOS, req.Params)
	if err == nil {
		err = run(name, args...)
	}
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}
	writeSuccessResponse()
}

// undoCommand builds the command that taps the key named in params once.
// Absent params tap BACKSPACE.
func undoCommand(goos string, params json.RawMessage) (string, []string, error) {
	p := UndoParams{Key: "BACKSPACE"}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", nil, fmt.Errorf("failed to parse params: %w", err)
		}
	}
	k, ok := undoKeys[strings.ToUpper(strings.TrimSpace(p.Key))]
	if !ok {
		return "", nil, fmt.Errorf("cannot tap key %q", p.Key)
	}

	switch goos {
	case "darwin":
		return "osascript", []string{"-e", fmt.Sprintf(`tell application "System Events" to key code %d`, k.macKeyCode)}, nil
	case "linux":
		return "xdotool", []string{"key", "--clearmodifiers", k.xdoKeysym}, nil
	default:
		return "", nil, fmt.Errorf("undo not supported on %s", goos)
	}
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
