package capture

import (
	"errors"
	"sync"

	"github.com/desk-utils-lab/internal/recorder"
)

// ErrNotOpen is returned by Push when no stream is open.
var ErrNotOpen = errors.New("capture: stream not open")

// Manual is a capture whose chunks are pushed by the host, for embedding
// the recorder behind an audio API that already delivers buffers.
type Manual struct {
	mu      sync.Mutex
	onChunk func(recorder.Chunk)
	// OpenErr, when set, is returned by Open.
	OpenErr error
}

func (m *Manual) Open(onChunk func(recorder.Chunk)) (recorder.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.onChunk = onChunk
	return manualStream{m}, nil
}

// Push delivers c to the open stream. The lock is held for the call so Stop
// cannot return while a delivery is in progress.
func (m *Manual) Push(c recorder.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onChunk == nil {
		return ErrNotOpen
	}
	m.onChunk(c)
	return nil
}

type manualStream struct{ m *Manual }

func (s manualStream) Stop() error {
	s.m.mu.Lock()
	s.m.onChunk = nil
	s.m.mu.Unlock()
	return nil
}
