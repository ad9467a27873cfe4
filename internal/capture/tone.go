// Package capture provides recorder.Capture implementations: a synthetic
// tone generator, an external capture command, and a host-driven source.
package capture

import (
	"context"
	"math"
	"time"

	"github.com/desk-utils-lab/internal/recorder"
	"github.com/desk-utils-lab/internal/wav"
)

// DefaultChunkFrames is the number of frames per delivered chunk.
const DefaultChunkFrames = 1024

// Tone generates a sine wave in real time. A zero Frequency produces silence.
type Tone struct {
	Format      wav.Format
	Frequency   float64
	Amplitude   float64
	ChunkFrames int
}

func (t *Tone) frames() int {
	if t.ChunkFrames > 0 {
		return t.ChunkFrames
	}
	return DefaultChunkFrames
}

func (t *Tone) Open(onChunk func(recorder.Chunk)) (recorder.Stream, error) {
	if err := t.Format.Validate(); err != nil {
		return nil, err
	}
	frames := t.frames()
	period := time.Duration(frames) * time.Second / time.Duration(t.Format.SampleRate)
	ctx, cancel := context.WithCancel(context.Background())
	st := &loopStream{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(st.done)
		tk := time.NewTicker(period)
		defer tk.Stop()
		var phase float64
		step := 2 * math.Pi * t.Frequency / float64(t.Format.SampleRate)
		amp := math.Max(0, math.Min(1, t.Amplitude)) * math.MaxInt16
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
			}
			c := make(recorder.Chunk, frames*t.Format.Channels)
			for i := 0; i < frames; i++ {
				v := int16(amp * math.Sin(phase))
				for ch := 0; ch < t.Format.Channels; ch++ {
					c[i*t.Format.Channels+ch] = v
				}
				phase += step
			}
			phase = math.Mod(phase, 2*math.Pi)
			if ctx.Err() != nil {
				return
			}
			onChunk(c)
		}
	}()
	return st, nil
}

// loopStream stops a delivery goroutine and waits for it to exit.
type loopStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *loopStream) Stop() error {
	l.cancel()
	<-l.done
	return nil
}
