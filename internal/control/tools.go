package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/desk-utils-lab/internal/game"
	"github.com/desk-utils-lab/internal/logging"
	"github.com/desk-utils-lab/internal/recorder"
	"github.com/desk-utils-lab/internal/wav"
)

// Tool names exposed by the control server.
const (
	ToolStart   = "recorder_start"
	ToolPause   = "recorder_pause"
	ToolResume  = "recorder_resume"
	ToolStop    = "recorder_stop"
	ToolSave    = "recorder_save"
	ToolDiscard = "recorder_discard"
	ToolStatus  = "recorder_status"
	ToolRPSPlay = "rps_play"
)

type noArgs struct{}

// PlayArgs is the input of rps_play.
type PlayArgs struct {
	Choice string `json:"choice" jsonschema:"rock, paper or scissors"`
}

// StatusReply is the JSON body of recorder_status and of each transition
// tool.
type StatusReply struct {
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
	Elapsed   string `json:"elapsed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Chunks    int    `json:"chunks"`
	Samples   int    `json:"samples"`
	Dropped   int64  `json:"dropped"`
	Last      *Saved `json:"last,omitempty"`
}

// Saved describes the last WAV written by the server, read back from disk.
type Saved struct {
	Path       string `json:"path"`
	Samples    int    `json:"samples"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	DurationMs int64  `json:"duration_ms"`
}

// ResultReply is the JSON body of recorder_stop and recorder_save.
type ResultReply struct {
	SessionID string `json:"session_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Chunks    int    `json:"chunks"`
	Samples   int    `json:"samples"`
	Elapsed   string `json:"elapsed"`
	PausedMs  int64  `json:"paused_ms"`
	Dropped   int64  `json:"dropped"`
	Status    string `json:"status"`
}

// PlayReply is the JSON body of rps_play.
type PlayReply struct {
	RoundID  string `json:"round_id"`
	Player   string `json:"player"`
	Computer string `json:"computer"`
	Outcome  string `json:"outcome"`
	Message  string `json:"message"`
}

func jsonResult(v any) (*sdk.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode reply: %w", err)
	}
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(b)}}}, nil, nil
}

// errorResult reports err to the caller as a failed tool call. The session
// is still usable, so this is never a protocol error.
func errorResult(tool string, err error) (*sdk.CallToolResult, any, error) {
	logging.Warnw("control: tool failed", "tool", tool, "err", err)
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: errorKind(err) + ": " + err.Error()}},
	}, nil, nil
}

func errorKind(err error) string {
	var se *recorder.StreamError
	var sv *recorder.SaveError
	switch {
	case errors.Is(err, recorder.ErrInvalidTransition):
		return "invalid_transition"
	case errors.As(err, &se):
		return "stream_error"
	case errors.As(err, &sv):
		return "save_failed"
	case errors.Is(err, recorder.ErrClosed):
		return "closed"
	case errors.Is(err, game.ErrUnknownChoice):
		return "bad_choice"
	default:
		return "error"
	}
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStart, Description: "start a new recording"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		if err := s.session.Start(ctx); err != nil {
			return errorResult(ToolStart, err)
		}
		return jsonResult(s.status())
	})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolPause, Description: "pause the active recording"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		if err := s.session.Pause(); err != nil {
			return errorResult(ToolPause, err)
		}
		return jsonResult(s.status())
	})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolResume, Description: "resume a paused recording"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		if err := s.session.Resume(); err != nil {
			return errorResult(ToolResume, err)
		}
		return jsonResult(s.status())
	})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStop, Description: "stop recording and save the wav file"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		res, err := s.session.Stop(ctx)
		return s.resultReply(ToolStop, res, err)
	})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolSave, Description: "retry saving a stopped recording"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		res, err := s.session.Save(ctx)
		return s.resultReply(ToolSave, res, err)
	})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolDiscard, Description: "drop a stopped recording that could not be saved"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		if err := s.session.Discard(); err != nil {
			return errorResult(ToolDiscard, err)
		}
		return jsonResult(s.status())
	})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStatus, Description: "report recorder status and elapsed time"}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		return jsonResult(s.status())
	})
	if s.resolver != nil {
		sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolRPSPlay, Description: "play one round of rock paper scissors"}, func(ctx context.Context, req *sdk.CallToolRequest, args PlayArgs) (*sdk.CallToolResult, any, error) {
			choice, err := game.ParseChoice(args.Choice)
			if err != nil {
				return errorResult(ToolRPSPlay, err)
			}
			r := s.resolver.Play(choice)
			return jsonResult(PlayReply{
				RoundID:  r.ID,
				Player:   r.Player.String(),
				Computer: r.Computer.String(),
				Outcome:  r.Outcome.String(),
				Message:  s.messages[r.Outcome],
			})
		})
	}
}

func (s *Server) resultReply(tool string, res recorder.Result, err error) (*sdk.CallToolResult, any, error) {
	var stopErr *recorder.StopError
	var saveErr *recorder.SaveError
	if err != nil && errors.As(err, &stopErr) && !errors.As(err, &saveErr) {
		// The recording was handled; only the capture device misbehaved.
		logging.Warnw("control: capture stream did not stop cleanly", "tool", tool, "err", err)
		err = nil
	}
	if err != nil {
		return errorResult(tool, err)
	}
	if res.Path != "" {
		s.mu.Lock()
		s.lastPath = res.Path
		s.mu.Unlock()
	}
	return jsonResult(ResultReply{
		SessionID: res.SessionID,
		Path:      res.Path,
		Chunks:    res.Chunks,
		Samples:   res.Samples,
		Elapsed:   recorder.FormatElapsed(res.Elapsed),
		PausedMs:  res.Paused.Milliseconds(),
		Dropped:   res.Dropped,
		Status:    s.session.Status().String(),
	})
}

func (s *Server) status() StatusReply {
	snap := s.session.Snapshot()
	reply := StatusReply{
		SessionID: snap.SessionID,
		Status:    snap.Status.String(),
		Elapsed:   recorder.FormatElapsed(snap.Elapsed),
		ElapsedMs: snap.Elapsed.Milliseconds(),
		Chunks:    snap.Chunks,
		Samples:   snap.Samples,
		Dropped:   snap.Discarded + snap.Overflowed,
	}
	s.mu.Lock()
	path := s.lastPath
	s.mu.Unlock()
	if path != "" {
		reply.Last = readSaved(path)
	}
	return reply
}

func readSaved(path string) *Saved {
	f, err := os.Open(path)
	if err != nil {
		logging.Debugw("control: last recording unavailable", "path", path, "err", err)
		return nil
	}
	defer f.Close()
	format, samples, err := wav.Decode(f)
	if err != nil {
		logging.Warnw("control: last recording unreadable", "path", path, "err", err)
		return nil
	}
	frames := format.Frames(len(samples))
	return &Saved{
		Path:       path,
		Samples:    len(samples),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		DurationMs: (time.Duration(frames) * time.Second / time.Duration(format.SampleRate)).Milliseconds(),
	}
}
