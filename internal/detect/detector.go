// Package detect runs the external image-based shot detector and parses its
// observations. The detector is an out-of-process collaborator with a narrow
// contract: given an image path it prints a JSON document with raw
// {x, y, score} observations on stdout. Failures surface as
// ErrDetectionFailed so callers decide what to do; shots are never fabricated
// on a failed detection.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDetectionFailed indicates the external detector could not produce
// observations: the process failed to start, exited non-zero, timed out, or
// reported an error in its output.
var ErrDetectionFailed = errors.New("shot detection failed")

// Observation is one raw detector hit: a normalized target-plane position and
// the score the detector assigned to it.
type Observation struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Detector invokes a detection script as a subprocess.
type Detector struct {
	// Python is the interpreter binary, e.g. "python3".
	Python string
	// Script is the path to the detection script.
	Script string
	// Timeout bounds a single detection run.
	Timeout time.Duration
}

// New constructs a Detector with a default timeout.
func New(python, script string, timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Detector{Python: python, Script: script, Timeout: timeout}
}

// detectorOutput is the wire shape the script prints on stdout.
type detectorOutput struct {
	Shots []Observation `json:"shots"`
	Count int           `json:"count"`
	Error string        `json:"error"`
}

// Detect runs the detector against imagePath and returns its observations.
// An empty result is valid (a clean target); any process or protocol failure
// wraps ErrDetectionFailed.
func (d *Detector) Detect(ctx context.Context, imagePath string) ([]Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Python, d.Script, imagePath)
	// Detector workers inherit the output pipes; without a wait delay, Run
	// blocks past the deadline until every descendant exits.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("image", imagePath).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("shot detector process failed")
		return nil, fmt.Errorf("%w: %v", ErrDetectionFailed, err)
	}

	var out detectorOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		log.Error().Err(err).Str("image", imagePath).Msg("shot detector produced unparseable output")
		return nil, fmt.Errorf("%w: bad detector output: %v", ErrDetectionFailed, err)
	}
	if out.Error != "" {
		log.Error().Str("image", imagePath).Str("detector_error", out.Error).Msg("shot detector reported an error")
		return nil, fmt.Errorf("%w: %s", ErrDetectionFailed, out.Error)
	}

	if out.Shots == nil {
		out.Shots = []Observation{}
	}
	return out.Shots, nil
}

// DebugImagePath returns where the detector writes its annotated debug image
// for a given scan, mirroring the script's convention
// (uploads/debug/<stem>_debug.jpg next to the upload directory).
func DebugImagePath(imagePath string) string {
	dir := filepath.Dir(imagePath)
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return filepath.Join(filepath.Dir(dir), "debug", stem+"_debug.jpg")
}
