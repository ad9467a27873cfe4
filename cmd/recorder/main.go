// Command recorder runs a recording session behind the MCP control server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/desk-utils-lab/internal/capture"
	"github.com/desk-utils-lab/internal/config"
	"github.com/desk-utils-lab/internal/control"
	"github.com/desk-utils-lab/internal/game"
	"github.com/desk-utils-lab/internal/logging"
	"github.com/desk-utils-lab/internal/recorder"
	"github.com/desk-utils-lab/internal/wav"
)

const version = "v0.1.0"

func buildCapture(cfg *config.Config, f wav.Format) (recorder.Capture, error) {
	switch cfg.Capture {
	case "command":
		return capture.FFmpeg(cfg.CaptureDevice, f, cfg.ChunkFrames)
	case "tone", "":
		return &capture.Tone{Format: f, Frequency: float64(cfg.ToneHz), Amplitude: 0.3, ChunkFrames: cfg.ChunkFrames}, nil
	}
	return nil, fmt.Errorf("unknown capture %q", cfg.Capture)
}

func buildResolver(seed uint64) (*game.Resolver, error) {
	if seed != 0 {
		return game.NewResolver(seed), nil
	}
	return game.NewRandomResolver()
}

// secondsLogger reports elapsed time once per whole second rather than on
// every display tick.
func secondsLogger(sess func() string) func(time.Duration) {
	last := time.Duration(-1)
	return func(d time.Duration) {
		if s := d.Truncate(time.Second); s != last {
			last = s
			logging.Debugw("recording", "session.id", sess(), "elapsed", recorder.FormatElapsed(d))
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	sugar := logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if sugar == nil {
		l, _ := zap.NewProduction()
		sugar = l.Sugar()
	}
	defer func() { _ = logging.Sync() }()

	format := wav.CD.WithChannels(cfg.Channels)
	src, err := buildCapture(cfg, format)
	if err != nil {
		sugar.Fatalw("capture setup failed", "capture", cfg.Capture, "err", err)
	}
	resolver, err := buildResolver(cfg.RPSSeed)
	if err != nil {
		sugar.Fatalw("resolver setup failed", "err", err)
	}

	var sess *recorder.Session
	sess = recorder.New(src,
		recorder.WithFormat(format),
		recorder.WithTickInterval(cfg.TickInterval()),
		recorder.WithQueueSize(cfg.QueueSize),
		recorder.WithSink(&recorder.FileSink{Path: cfg.OutputPath, Sidecars: cfg.Sidecars}),
		recorder.WithElapsedHandler(secondsLogger(func() string { return sess.ID() })),
	)
	defer func() {
		if err := sess.Close(); err != nil {
			sugar.Warnw("session close error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("recorder starting",
		"version", version,
		"addr", cfg.ListenAddr,
		"output", cfg.OutputPath,
		"capture", cfg.Capture,
		"channels", format.Channels,
		"sample_rate", format.SampleRate,
	)
	srv := control.NewServer(sess, version, control.WithResolver(resolver))
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		sugar.Errorw("control server failed", "err", err)
		return
	}
	sugar.Infow("shutdown complete")
}
