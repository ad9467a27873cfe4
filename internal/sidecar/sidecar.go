// Package sidecar writes JSON metadata files next to saved recordings.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desk-utils-lab/internal/fileio"
	"github.com/desk-utils-lab/internal/logging"
)

// Metadata describes one saved recording.
type Metadata struct {
	SessionID     string `json:"session_id"`
	WavPath       string `json:"wav_path"`
	CreatedUTC    string `json:"created_utc"`
	StartedUTC    string `json:"started_utc"`
	StoppedUTC    string `json:"stopped_utc"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	PausedMs      int64  `json:"paused_ms"`
	Chunks        int    `json:"chunks"`
	Samples       int    `json:"samples"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	DroppedChunks int64  `json:"dropped_chunks"`
	SaveAttempts  int    `json:"save_attempts"`
}

// PathFor returns the sidecar path paired with wavPath.
func PathFor(wavPath string) string {
	return strings.TrimSuffix(wavPath, ".wav") + ".json"
}

// Timestamp formats t the way sidecar fields expect.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Write stores m beside m.WavPath atomically and returns the sidecar path.
func Write(m Metadata) (string, error) {
	if m.WavPath == "" {
		return "", fmt.Errorf("sidecar: wav path required")
	}
	if m.CreatedUTC == "" {
		m.CreatedUTC = Timestamp(time.Now())
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("sidecar: marshal: %w", err)
	}
	path := PathFor(m.WavPath)
	if err := fileio.SaveFileAtomic(path, b, 0o644); err != nil {
		logging.Warnw("sidecar: failed to write", "path", path, "err", err, "session.id", m.SessionID)
		return "", fmt.Errorf("sidecar: write %s: %w", path, err)
	}
	logging.Infow("sidecar: saved", "path", path, "session.id", m.SessionID)
	return path, nil
}

// Read loads the sidecar at path.
func Read(path string) (Metadata, error) {
	var m Metadata
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("sidecar: invalid JSON %s: %w", path, err)
	}
	return m, nil
}
