// Command recctl drives a running recorder over its control endpoint.
//
//	recctl start|pause|resume|stop|save|discard|status
//	recctl play rock|paper|scissors
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/desk-utils-lab/internal/config"
	"github.com/desk-utils-lab/internal/control"
	"github.com/desk-utils-lab/internal/logging"
)

var toolByCommand = map[string]string{
	"start":   control.ToolStart,
	"pause":   control.ToolPause,
	"resume":  control.ToolResume,
	"stop":    control.ToolStop,
	"save":    control.ToolSave,
	"discard": control.ToolDiscard,
	"status":  control.ToolStatus,
	"play":    control.ToolRPSPlay,
}

const usage = "usage: recctl start|pause|resume|stop|save|discard|status | recctl play <choice>"

// parseArgs maps command-line arguments to a tool call.
func parseArgs(args []string) (string, map[string]any, error) {
	if len(args) == 0 {
		return "", nil, errors.New(usage)
	}
	tool, ok := toolByCommand[args[0]]
	if !ok {
		return "", nil, fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	if tool == control.ToolRPSPlay {
		if len(args) != 2 {
			return "", nil, errors.New("usage: recctl play rock|paper|scissors")
		}
		return tool, map[string]any{"choice": args[1]}, nil
	}
	if len(args) != 1 {
		return "", nil, fmt.Errorf("%s takes no arguments", args[0])
	}
	return tool, nil, nil
}

func run(ctx context.Context, url string, args []string, out io.Writer) error {
	tool, toolArgs, err := parseArgs(args)
	if err != nil {
		return err
	}
	c := control.NewClientWrapper("recctl", "v0.1.0")
	if err := c.ConnectWebSocket(ctx, url); err != nil {
		return err
	}
	defer c.Close()
	text, err := c.CallTool(ctx, tool, toolArgs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

// exitCode is 1 when the server refused the call and 2 for anything that
// kept the call from happening.
func exitCode(err error) int {
	var te *control.ToolError
	if errors.As(err, &te) {
		return 1
	}
	return 2
}

func main() { os.Exit(realMain()) }

func realMain() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stderr: true})
	defer func() { _ = logging.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg.ControlURL, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}
