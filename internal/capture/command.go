package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/desk-utils-lab/internal/logging"
	"github.com/desk-utils-lab/internal/recorder"
	"github.com/desk-utils-lab/internal/wav"
)

// Command runs an external program that writes raw little-endian 16-bit PCM
// in Format to stdout, and delivers it in fixed-size chunks.
type Command struct {
	Name        string
	Args        []string
	Format      wav.Format
	ChunkFrames int
}

// FFmpeg returns a Command capturing from device with the platform's native
// input backend.
func FFmpeg(device string, f wav.Format, chunkFrames int) (*Command, error) {
	input, err := inputArgs(device)
	if err != nil {
		return nil, err
	}
	args := append([]string{"-hide_banner", "-loglevel", "error"}, input...)
	args = append(args,
		"-ac", fmt.Sprint(f.Channels),
		"-ar", fmt.Sprint(f.SampleRate),
		"-f", "s16le", "-",
	)
	return &Command{Name: "ffmpeg", Args: args, Format: f, ChunkFrames: chunkFrames}, nil
}

func (c *Command) Open(onChunk func(recorder.Chunk)) (recorder.Stream, error) {
	if c.Name == "" {
		return nil, errors.New("capture: command is required")
	}
	if err := c.Format.Validate(); err != nil {
		return nil, err
	}
	frames := c.ChunkFrames
	if frames <= 0 {
		frames = DefaultChunkFrames
	}
	cmd := exec.Command(c.Name, c.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}
	logging.Infow("capture: command started", "command", c.Name, "args", strings.Join(c.Args, " "))

	st := &commandStream{cmd: cmd, name: c.Name, readDone: make(chan struct{}), errDone: make(chan struct{})}
	go func() {
		defer close(st.errDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logging.Warnw("capture: command stderr", "command", c.Name, "line", scanner.Text())
		}
	}()
	go func() {
		defer close(st.readDone)
		buf := make([]byte, frames*c.Format.Channels*2)
		for {
			n, err := io.ReadFull(stdout, buf)
			if n > 0 {
				chunk := make(recorder.Chunk, n/2)
				for i := range chunk {
					chunk[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
				}
				if !st.isStopping() {
					onChunk(chunk)
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !st.isStopping() {
					logging.Warnw("capture: command read failed", "command", c.Name, "err", err)
				}
				return
			}
		}
	}()
	return st, nil
}

type commandStream struct {
	cmd      *exec.Cmd
	name     string
	readDone chan struct{}
	errDone  chan struct{}

	mu       sync.Mutex
	stopping bool
	stopped  bool
	waitErr  error
}

func (s *commandStream) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// Stop kills the process if still running, waits for the reader, and reaps
// the process.
func (s *commandStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return s.waitErr
	}
	s.stopping = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	<-s.readDone
	<-s.errDone
	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed by us or exited on its own after delivering its output
		err = nil
	}
	s.mu.Lock()
	s.stopped = true
	s.waitErr = err
	s.mu.Unlock()
	logging.Infow("capture: command stopped", "command", s.name)
	return err
}
