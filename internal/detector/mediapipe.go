package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const scriptName = "mediapipe_service.py"

// ErrScriptNotFound is returned when the MediaPipe service script cannot be located.
var ErrScriptNotFound = errors.New(scriptName + " not found")

// MediaPipeDetector runs hand detection in a Python MediaPipe subprocess.
// Images go in as a 4-byte big-endian length followed by JPEG bytes; each
// reply is one JSON line. The process starts on first use and stops after
// IdleTimeout without requests.
type MediaPipeDetector struct {
	cfg    Config
	script string
	python string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	idle    *time.Timer
	started bool
}

// NewMediaPipeDetector locates the service script and interpreter. The
// subprocess itself is started lazily.
func NewMediaPipeDetector(cfg Config) (*MediaPipeDetector, error) {
	script := cfg.ScriptPath
	if script == "" {
		script = findFirst(scriptCandidates())
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptNotFound, err)
	}

	python := cfg.Python
	if python == "" {
		python = findFirst(venvCandidates())
	}
	if python == "" {
		python = "python3"
	}
	if cfg.MaxHands <= 0 {
		cfg.MaxHands = 2
	}

	return &MediaPipeDetector{cfg: cfg, script: script, python: python}, nil
}

// Detect sends img to the service and returns the hands it found.
func (d *MediaPipeDetector) Detect(img *gocv.Mat) ([]HandLandmarks, error) {
	if img == nil || img.Empty() {
		return nil, errors.New("detect: empty image")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return nil, fmt.Errorf("detect: encode image: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.start(); err != nil {
		return nil, err
	}

	hands, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		// A broken pipe leaves the process unusable; restart on next call.
		d.stop()
		return nil, err
	}
	d.touch()
	return hands, nil
}

// Close stops the subprocess.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop()
}

func (d *MediaPipeDetector) roundTrip(data []byte) ([]HandLandmarks, error) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := d.stdin.Write(header[:]); err != nil {
		return nil, fmt.Errorf("detect: write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("detect: write image: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("detect: read reply: %w", err)
	}
	return parseReply(line)
}

// parseReply decodes one service reply line.
func parseReply(line []byte) ([]HandLandmarks, error) {
	var reply struct {
		Hands []wireHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("detect: parse reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("detect: service: %s", reply.Error)
	}

	hands := make([]HandLandmarks, 0, len(reply.Hands))
	for _, h := range reply.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		hands = append(hands, h.landmarks())
	}
	return hands, nil
}

func (d *MediaPipeDetector) start() error {
	if d.started {
		return nil
	}

	cmd := exec.Command(d.python, d.script,
		"--max-hands", strconv.Itoa(d.cfg.MaxHands),
		"--min-confidence", strconv.FormatFloat(d.cfg.MinConfidence, 'f', 2, 64),
		"--static",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("detect: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("detect: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("detect: start %s: %w", scriptName, err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	return nil
}

func (d *MediaPipeDetector) stop() error {
	if !d.started {
		return nil
	}
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()

	d.cmd, d.stdin, d.stdout = nil, nil, nil
	d.started = false
	return err
}

func (d *MediaPipeDetector) touch() {
	if d.cfg.IdleTimeout <= 0 {
		return
	}
	if d.idle != nil {
		d.idle.Stop()
	}
	d.idle = time.AfterFunc(d.cfg.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stop()
	})
}

func scriptCandidates() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "scripts"))
	}
	dirs = append(dirs, "scripts", "../scripts")
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "typing-tracker", "scripts"))
	}

	paths := make([]string, len(dirs))
	for i, dir := range dirs {
		paths[i] = filepath.Join(dir, scriptName)
	}
	return paths
}

func venvCandidates() []string {
	paths := []string{"venv/bin/python", "../venv/bin/python"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "venv", "bin", "python"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "share", "typing-tracker", "venv", "bin", "python"))
	}
	return paths
}

// findFirst returns the absolute form of the first existing path.
func findFirst(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

type wireHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (w wireHand) landmarks() HandLandmarks {
	h := HandLandmarks{Handedness: w.Handedness, Score: w.Score}
	copy(h.Points[:], w.Points)
	return h
}
