package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/desk-utils-lab/internal/logging"
	"github.com/desk-utils-lab/internal/sidecar"
	"github.com/desk-utils-lab/internal/wav"
)

// Take is the concatenated audio of a stopped session handed to a Sink.
type Take struct {
	SessionID string
	Format    wav.Format
	Samples   []int16
	Chunks    int
	StartedAt time.Time
	StoppedAt time.Time
	Elapsed   time.Duration
	Paused    time.Duration
	Dropped   int64
	Attempt   int
}

// Sink persists a recording and returns where it was written.
type Sink interface {
	Save(ctx context.Context, take Take) (string, error)
}

// FileSink writes each recording to the same fixed WAV path, optionally with
// a JSON sidecar beside it.
type FileSink struct {
	Path     string
	Sidecars bool
}

func (f *FileSink) Save(ctx context.Context, take Take) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := wav.WriteFile(f.Path, take.Format, take.Samples); err != nil {
		return "", fmt.Errorf("write %s: %w", f.Path, err)
	}
	logging.Infow("recorder: saved wav", append([]interface{}{"path", f.Path, "session.id", take.SessionID},
		logging.ChunkFields(take.Chunks, len(take.Samples), take.Format.SampleRate, take.Format.Channels)...)...)
	if !f.Sidecars {
		return f.Path, nil
	}
	// The wav is already on disk; a missing sidecar is not worth failing the save.
	_, _ = sidecar.Write(sidecar.Metadata{
		SessionID:     take.SessionID,
		WavPath:       f.Path,
		StartedUTC:    sidecar.Timestamp(take.StartedAt),
		StoppedUTC:    sidecar.Timestamp(take.StoppedAt),
		ElapsedMs:     take.Elapsed.Milliseconds(),
		PausedMs:      take.Paused.Milliseconds(),
		Chunks:        take.Chunks,
		Samples:       len(take.Samples),
		SampleRate:    take.Format.SampleRate,
		Channels:      take.Format.Channels,
		DroppedChunks: take.Dropped,
		SaveAttempts:  take.Attempt,
	})
	return f.Path, nil
}
