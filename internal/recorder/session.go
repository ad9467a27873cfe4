// Package recorder implements the voice recording session: a
// start/pause/resume/stop state machine that buffers captured audio while
// recording and writes it out as a WAV file when stopped.
package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desk-utils-lab/internal/logging"
	"github.com/desk-utils-lab/internal/wav"
	"github.com/google/uuid"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultQueueSize    = 256
	DefaultOutputPath   = "recorded.wav"
)

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock used for all timing.
func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

// WithTickInterval sets how often the elapsed-time handler fires.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithElapsedHandler registers fn to receive the elapsed active time on every
// tick while recording. fn runs on the ticker goroutine and must not call
// back into the session's transition methods.
func WithElapsedHandler(fn func(time.Duration)) Option {
	return func(s *Session) { s.onElapsed = fn }
}

// WithQueueSize bounds the number of chunks waiting to be buffered.
func WithQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithFormat sets the output format. Only the channel count is expected to
// vary; recordings are 44.1 kHz 16-bit.
func WithFormat(f wav.Format) Option { return func(s *Session) { s.format = f } }

// WithSink replaces the default FileSink.
func WithSink(k Sink) Option { return func(s *Session) { s.sink = k } }

// Result summarizes a completed stop or save.
type Result struct {
	SessionID string
	// Path is empty when nothing was written.
	Path    string
	Chunks  int
	Samples int
	Elapsed time.Duration
	Paused  time.Duration
	Dropped int64
}

// Snapshot is a consistent view of the session for display.
type Snapshot struct {
	SessionID  string
	Status     Status
	Elapsed    time.Duration
	Chunks     int
	Samples    int
	Discarded  int64
	Overflowed int64
}

// Session is one recorder. A Session is reusable: after a successful stop it
// returns to Idle and may be started again.
type Session struct {
	capture      Capture
	sink         Sink
	clock        Clock
	format       wav.Format
	tickInterval time.Duration
	queueSize    int
	onElapsed    func(time.Duration)

	// opMu serializes transitions; it is never taken by capture callbacks
	// or the ticker.
	opMu   sync.Mutex
	closed bool
	tick   *ticker
	done   chan struct{}
	stream Stream
	// attempts counts save attempts for the stopped session.
	attempts int

	// mu guards the lifecycle fields read by capture callbacks.
	mu         sync.RWMutex
	gen        uint64
	status     Status
	id         string
	startTime  time.Time
	stopTime   time.Time
	totalPause time.Duration
	pauseStart *time.Time
	queue      chan Chunk

	bufMu   sync.Mutex
	chunks  []Chunk
	samples int

	discarded  atomic.Int64
	overflowed atomic.Int64
}

// New returns an Idle session reading from capture.
func New(capture Capture, opts ...Option) *Session {
	s := &Session{
		capture:      capture,
		clock:        systemClock{},
		format:       wav.CD,
		tickInterval: DefaultTickInterval,
		queueSize:    DefaultQueueSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sink == nil {
		s.sink = &FileSink{Path: DefaultOutputPath}
	}
	return s
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ID returns the id of the current or most recent session, or "" before the
// first Start.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Format returns the output format.
func (s *Session) Format() wav.Format { return s.format }

// Elapsed returns active recording time, excluding pauses. It is frozen while
// paused and zero when idle or stopped.
func (s *Session) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsedLocked(s.clock.Now())
}

func (s *Session) elapsedLocked(now time.Time) time.Duration {
	switch s.status {
	case Recording:
		return now.Sub(s.startTime) - s.totalPause
	case Paused:
		return s.pauseStart.Sub(s.startTime) - s.totalPause
	}
	return 0
}

// ElapsedString is Elapsed formatted for display.
func (s *Session) ElapsedString() string { return FormatElapsed(s.Elapsed()) }

// Snapshot returns status, elapsed time and buffer counters together.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		SessionID: s.id,
		Status:    s.status,
		Elapsed:   s.elapsedLocked(s.clock.Now()),
	}
	s.mu.RUnlock()
	s.bufMu.Lock()
	snap.Chunks = len(s.chunks)
	snap.Samples = s.samples
	s.bufMu.Unlock()
	snap.Discarded = s.discarded.Load()
	snap.Overflowed = s.overflowed.Load()
	return snap
}

// Start opens the capture stream and begins recording. It is only valid from
// Idle; any other state is rejected before the stream is touched.
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if st := s.Status(); st != Idle {
		return &TransitionError{Op: "start", From: st}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	gen := s.gen + 1
	s.mu.RUnlock()
	// Until status flips to Recording below, the callback drops anything the
	// stream delivers.
	stream, err := s.capture.Open(func(c Chunk) { s.ingest(gen, c) })
	if err != nil {
		logging.Warnw("recorder: capture stream unavailable", "err", err)
		return &StreamError{Err: err}
	}

	q := make(chan Chunk, s.queueSize)
	done := make(chan struct{})
	go s.drain(q, done)

	now := s.clock.Now()
	id := uuid.NewString()
	s.mu.Lock()
	s.gen = gen
	s.id = id
	s.startTime = now
	s.stopTime = time.Time{}
	s.totalPause = 0
	s.pauseStart = nil
	s.queue = q
	s.status = Recording
	s.mu.Unlock()

	s.stream = stream
	s.done = done
	s.attempts = 0
	s.discarded.Store(0)
	s.overflowed.Store(0)
	s.armTicker(now, 0)
	logging.InfowCtx(ctx, "recorder: recording started", logging.SessionFields(id, Recording.String())...)
	return nil
}

// Pause stops buffering audio and freezes elapsed time. Only valid while
// recording.
func (s *Session) Pause() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if st := s.Status(); st != Recording {
		return &TransitionError{Op: "pause", From: st}
	}
	s.disarmTicker()
	now := s.clock.Now()
	s.mu.Lock()
	s.pauseStart = &now
	s.status = Paused
	id := s.id
	s.mu.Unlock()
	logging.Infow("recorder: recording paused", logging.SessionFields(id, Paused.String())...)
	return nil
}

// Resume continues a paused recording, adding the just-ended pause to the
// total pause duration.
func (s *Session) Resume() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if st := s.Status(); st != Paused {
		return &TransitionError{Op: "resume", From: st}
	}
	now := s.clock.Now()
	s.mu.Lock()
	pause := now.Sub(*s.pauseStart)
	s.totalPause += pause
	s.pauseStart = nil
	s.status = Recording
	start, total, id := s.startTime, s.totalPause, s.id
	s.mu.Unlock()
	s.armTicker(start, total)
	logging.Infow("recorder: recording resumed", append(logging.SessionFields(id, Recording.String()), "pause_ms", pause.Milliseconds(), "total_pause_ms", total.Milliseconds())...)
	return nil
}

// Stop ends the recording and saves it. Stopping an idle or already stopped
// session is a no-op. If the save fails the session stays Stopped with its
// buffer intact and the returned error is a *SaveError. A capture stream that
// fails to stop cleanly adds a *StopError; the save still runs.
func (s *Session) Stop(ctx context.Context) (Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return Result{}, ErrClosed
	}
	st := s.Status()
	if st != Recording && st != Paused {
		logging.Debugw("recorder: stop ignored", "status", st.String())
		return Result{}, nil
	}
	stopErr := s.halt()
	res, err := s.save(ctx)
	if stopErr != nil {
		err = errors.Join(err, &StopError{Err: stopErr})
	}
	return res, err
}

// Save retries writing a stopped session whose previous save failed.
func (s *Session) Save(ctx context.Context) (Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return Result{}, ErrClosed
	}
	if st := s.Status(); st != Stopped {
		return Result{}, &TransitionError{Op: "save", From: st}
	}
	return s.save(ctx)
}

// Discard drops the audio retained by a failed save and returns to Idle.
func (s *Session) Discard() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if st := s.Status(); st != Stopped {
		return &TransitionError{Op: "discard", From: st}
	}
	chunks := s.reset()
	logging.Warnw("recorder: discarded unsaved audio", append(logging.SessionFields(s.ID(), Idle.String()), "chunks", chunks)...)
	return nil
}

// Close releases the capture stream and background goroutines. It is safe to
// call on every exit path and more than once. Unsaved audio is discarded.
func (s *Session) Close() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if st := s.Status(); st == Recording || st == Paused {
		if stopErr := s.halt(); stopErr != nil {
			err = &StopError{Err: stopErr}
		}
	}
	if chunks := s.reset(); chunks > 0 {
		logging.Warnw("recorder: closed with unsaved audio", append(logging.SessionFields(s.ID(), ""), "chunks", chunks)...)
	}
	logging.Infow("recorder: session closed")
	return err
}

// halt moves a Recording or Paused session to Stopped: ticker joined, stream
// stopped, queue closed and drained. Callers hold opMu.
func (s *Session) halt() error {
	s.disarmTicker()
	var streamErr error
	if s.stream != nil {
		if streamErr = s.stream.Stop(); streamErr != nil {
			logging.Warnw("recorder: capture stream stop failed", "err", streamErr)
		}
		s.stream = nil
	}
	now := s.clock.Now()
	s.mu.Lock()
	if s.status == Paused && s.pauseStart != nil {
		s.totalPause += now.Sub(*s.pauseStart)
		s.pauseStart = nil
	}
	s.stopTime = now
	s.status = Stopped
	q := s.queue
	s.queue = nil
	id := s.id
	s.mu.Unlock()
	// Every sender holds mu.RLock and sees status Recording while sending,
	// so no send can be in flight past the status flip above.
	if q != nil {
		close(q)
	}
	if s.done != nil {
		<-s.done
		s.done = nil
	}
	logging.Infow("recorder: recording stopped", logging.SessionFields(id, Stopped.String())...)
	return streamErr
}

func (s *Session) save(ctx context.Context) (Result, error) {
	s.mu.RLock()
	res := Result{
		SessionID: s.id,
		Elapsed:   s.stopTime.Sub(s.startTime) - s.totalPause,
		Paused:    s.totalPause,
	}
	take := Take{
		SessionID: s.id,
		Format:    s.format,
		StartedAt: s.startTime,
		StoppedAt: s.stopTime,
		Elapsed:   res.Elapsed,
		Paused:    res.Paused,
	}
	s.mu.RUnlock()

	s.bufMu.Lock()
	res.Chunks = len(s.chunks)
	res.Samples = s.samples
	var samples []int16
	if res.Samples > 0 {
		samples = make([]int16, 0, res.Samples)
		for _, c := range s.chunks {
			samples = append(samples, c...)
		}
	}
	s.bufMu.Unlock()
	res.Dropped = s.discarded.Load() + s.overflowed.Load()

	if len(samples) == 0 {
		s.reset()
		logging.Infow("recorder: nothing recorded, skipping save", logging.SessionFields(res.SessionID, Idle.String())...)
		return res, nil
	}

	s.attempts++
	take.Samples = samples
	take.Chunks = res.Chunks
	take.Dropped = res.Dropped
	take.Attempt = s.attempts
	path, err := s.sink.Save(ctx, take)
	if err != nil {
		logging.Errorw("recorder: save failed; audio retained for retry", append(logging.SessionFields(res.SessionID, Stopped.String()), "attempt", s.attempts, "err", err)...)
		return res, &SaveError{Err: err}
	}
	res.Path = path
	s.reset()
	return res, nil
}

// reset clears the buffer and returns the session to Idle, reporting how
// many chunks were dropped. Callers hold opMu.
func (s *Session) reset() int {
	s.bufMu.Lock()
	n := len(s.chunks)
	s.chunks = nil
	s.samples = 0
	s.bufMu.Unlock()
	s.mu.Lock()
	s.status = Idle
	s.mu.Unlock()
	return n
}

// ingest is the capture callback. Audio is accepted only while the session
// generation that opened the stream is Recording; everything else is
// discarded rather than held for later.
func (s *Session) ingest(gen uint64, c Chunk) {
	if len(c) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gen != s.gen || s.status != Recording {
		s.discarded.Add(1)
		return
	}
	cp := make(Chunk, len(c))
	copy(cp, c)
	select {
	case s.queue <- cp:
	default:
		s.overflowed.Add(1)
		logging.Warnw("recorder: dropping chunk; queue full", "session.id", s.id, "samples", len(c))
	}
}

// drain is the single writer for the chunk buffer.
func (s *Session) drain(q <-chan Chunk, done chan<- struct{}) {
	defer close(done)
	for c := range q {
		s.bufMu.Lock()
		s.chunks = append(s.chunks, c)
		s.samples += len(c)
		s.bufMu.Unlock()
	}
}

func (s *Session) armTicker(start time.Time, paused time.Duration) {
	if s.onElapsed == nil {
		return
	}
	s.disarmTicker()
	s.tick = startTicker(s.tickInterval, s.clock, start.Add(paused), s.onElapsed)
}

func (s *Session) disarmTicker() {
	s.tick.stop()
	s.tick = nil
}
