package recorder

import "time"

// Chunk is one batch of interleaved 16-bit samples delivered by a capture
// stream.
type Chunk []int16

// Capture opens audio input streams. onChunk may be invoked from any
// goroutine until the returned Stream's Stop returns.
type Capture interface {
	Open(onChunk func(Chunk)) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	// Stop halts delivery. No onChunk call may begin after Stop returns.
	Stop() error
}

// Clock supplies the current time. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
