package control

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/desk-utils-lab/internal/capture"
	"github.com/desk-utils-lab/internal/game"
	"github.com/desk-utils-lab/internal/recorder"
)

type harness struct {
	manual  *capture.Manual
	session *recorder.Session
	client  *ClientWrapper
	wavPath string
}

func newHarness(t *testing.T, wavPath string, opts ...Option) *harness {
	t.Helper()
	m := &capture.Manual{}
	sess := recorder.New(m, recorder.WithSink(&recorder.FileSink{Path: wavPath}))
	t.Cleanup(func() { _ = sess.Close() })
	srv := NewServer(sess, "test", opts...)

	ctx, cancel := context.WithCancel(context.Background())
	serverT, clientT := sdk.NewInMemoryTransports()
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Connect(ctx, serverT)
	}()

	c := NewClientWrapper("control-test", "test")
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	if err := c.Connect(connectCtx, clientT); err != nil {
		cancel()
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		<-served
	})
	return &harness{manual: m, session: sess, client: c, wavPath: wavPath}
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestToolsDriveRecording(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "take.wav"))
	ctx := callCtx(t)

	var st StatusReply
	if err := h.client.CallJSON(ctx, ToolStart, nil, &st); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.Status != "recording" || st.SessionID == "" {
		t.Fatalf("unexpected status after start: %+v", st)
	}
	for i := 0; i < 4; i++ {
		if err := h.manual.Push(make(recorder.Chunk, 100)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if err := h.client.CallJSON(ctx, ToolPause, nil, &st); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if st.Status != "paused" {
		t.Fatalf("want paused, got %s", st.Status)
	}
	if err := h.client.CallJSON(ctx, ToolResume, nil, &st); err != nil {
		t.Fatalf("resume: %v", err)
	}

	var res ResultReply
	if err := h.client.CallJSON(ctx, ToolStop, nil, &res); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res.Path != h.wavPath || res.Samples != 400 || res.Chunks != 4 || res.Status != "idle" {
		t.Fatalf("unexpected stop reply: %+v", res)
	}

	if err := h.client.CallJSON(ctx, ToolStatus, nil, &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != "idle" || st.Elapsed != "00:00:00.00" {
		t.Fatalf("unexpected idle status: %+v", st)
	}
	if st.Last == nil || st.Last.Samples != 400 || st.Last.SampleRate != 44100 || st.Last.Channels != 1 {
		t.Fatalf("unexpected last recording: %+v", st.Last)
	}
}

func TestInvalidTransitionIsToolError(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "take.wav"))
	ctx := callCtx(t)

	_, err := h.client.CallTool(ctx, ToolPause, nil)
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if te.Tool != ToolPause || !strings.HasPrefix(te.Message, "invalid_transition") {
		t.Fatalf("unexpected tool error: %+v", te)
	}
	if h.session.Status() != recorder.Idle {
		t.Fatalf("session left idle: %s", h.session.Status())
	}
	// the session survives a failed call
	if _, err := h.client.CallTool(ctx, ToolStatus, nil); err != nil {
		t.Fatalf("status after error: %v", err)
	}
}

func TestSaveFailureThenDiscard(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, filepath.Join(blocker, "take.wav"))
	ctx := callCtx(t)

	if _, err := h.client.CallTool(ctx, ToolStart, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.manual.Push(make(recorder.Chunk, 10)); err != nil {
		t.Fatalf("push: %v", err)
	}
	_, err := h.client.CallTool(ctx, ToolStop, nil)
	var te *ToolError
	if !errors.As(err, &te) || !strings.HasPrefix(te.Message, "save_failed") {
		t.Fatalf("expected save_failed, got %v", err)
	}

	var st StatusReply
	if err := h.client.CallJSON(ctx, ToolStatus, nil, &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != "stopped" || st.Samples != 10 {
		t.Fatalf("buffer not retained: %+v", st)
	}
	if _, err := h.client.CallTool(ctx, ToolSave, nil); err == nil {
		t.Fatalf("expected retry to fail again")
	}
	if err := h.client.CallJSON(ctx, ToolDiscard, nil, &st); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if st.Status != "idle" || st.Samples != 0 {
		t.Fatalf("unexpected status after discard: %+v", st)
	}
}

func TestRPSPlayMatchesSeededResolver(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "take.wav"), WithResolver(game.NewResolver(7)))
	ctx := callCtx(t)
	want := game.NewResolver(7)

	for i := 0; i < 10; i++ {
		var reply PlayReply
		if err := h.client.CallJSON(ctx, ToolRPSPlay, map[string]any{"choice": "Rock"}, &reply); err != nil {
			t.Fatalf("rps_play: %v", err)
		}
		round := want.Play(game.Rock)
		if reply.Computer != round.Computer.String() || reply.Outcome != round.Outcome.String() {
			t.Fatalf("round %d: want %s/%s, got %+v", i, round.Computer, round.Outcome, reply)
		}
		if reply.Message != round.Outcome.Message() || reply.Player != "Rock" || reply.RoundID == "" {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	}

	_, err := h.client.CallTool(ctx, ToolRPSPlay, map[string]any{"choice": "lizard"})
	var te *ToolError
	if !errors.As(err, &te) || !strings.HasPrefix(te.Message, "bad_choice") {
		t.Fatalf("expected bad_choice, got %v", err)
	}
}

func TestCallBeforeConnect(t *testing.T) {
	c := NewClientWrapper("control-test", "test")
	if _, err := c.CallTool(context.Background(), ToolStatus, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on unconnected client: %v", err)
	}
}

func TestWebSocketEndpoint(t *testing.T) {
	sess := recorder.New(&capture.Manual{}, recorder.WithSink(&recorder.FileSink{Path: filepath.Join(t.TempDir(), "take.wav")}))
	defer sess.Close()
	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()
	srv := httptest.NewServer(NewServer(sess, "test").Handler(srvCtx))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok idle" {
		t.Fatalf("unexpected health reply %d %q", resp.StatusCode, body)
	}

	c := NewClientWrapper("control-test", "test")
	ctx := callCtx(t)
	// http is mapped to ws
	if err := c.ConnectWebSocket(ctx, srv.URL+"/mcp/ws"); err != nil {
		t.Fatalf("ConnectWebSocket failed: %v", err)
	}
	defer c.Close()

	var st StatusReply
	if err := c.CallJSON(ctx, ToolStart, nil, &st); err != nil {
		t.Fatalf("start over websocket: %v", err)
	}
	if st.Status != "recording" {
		t.Fatalf("want recording, got %+v", st)
	}
	if _, err := c.CallTool(ctx, ToolStop, nil); err != nil {
		t.Fatalf("stop over websocket: %v", err)
	}
	if sess.Status() != recorder.Idle {
		t.Fatalf("want idle after empty stop, got %s", sess.Status())
	}
}

func TestConnectWebSocketBadURL(t *testing.T) {
	c := NewClientWrapper("control-test", "test")
	ctx := callCtx(t)
	if err := c.ConnectWebSocket(ctx, "ws://127.0.0.1:1/mcp/ws"); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	sess := recorder.New(&capture.Manual{})
	defer sess.Close()
	srv := NewServer(sess, "test")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestListenAndServeBadAddress(t *testing.T) {
	srv := NewServer(recorder.New(&capture.Manual{}), "test")
	if err := srv.ListenAndServe(context.Background(), "127.0.0.1:-1"); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestWebSocketRefusedWhileDraining(t *testing.T) {
	sess := recorder.New(&capture.Manual{})
	defer sess.Close()
	srv := NewServer(sess, "test")
	hs := httptest.NewServer(srv.Handler(context.Background()))
	defer hs.Close()

	srv.drainSessions()

	resp, err := http.Get(hs.URL + "/mcp/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503 while draining, got %d", resp.StatusCode)
	}
	c := NewClientWrapper("control-test", "test")
	if err := c.ConnectWebSocket(callCtx(t), hs.URL+"/mcp/ws"); err == nil {
		_ = c.Close()
		t.Fatal("expected websocket dial to be refused")
	}
	if srv.beginSession() {
		t.Fatal("beginSession succeeded after drain")
	}
}
