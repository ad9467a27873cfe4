// Package control exposes the recorder session and the RPS resolver as MCP
// tools, served over websocket.
package control

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/desk-utils-lab/internal/game"
	"github.com/desk-utils-lab/internal/logging"
	"github.com/desk-utils-lab/internal/recorder"
)

// Server binds one recorder session and an optional resolver to an MCP
// server.
type Server struct {
	mcp      *sdk.Server
	session  *recorder.Session
	resolver *game.Resolver
	messages game.Messages
	upgrader websocket.Upgrader

	mu       sync.Mutex
	lastPath string
	// draining is set once shutdown starts waiting on wg; no Add after it.
	draining bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithResolver enables the rps_play tool.
func WithResolver(r *game.Resolver) Option { return func(s *Server) { s.resolver = r } }

// WithMessages overrides the outcome lines returned by rps_play.
func WithMessages(m game.Messages) Option { return func(s *Server) { s.messages = m } }

// NewServer builds the MCP server and registers its tools.
func NewServer(session *recorder.Session, version string, opts ...Option) *Server {
	s := &Server{
		session:  session,
		messages: game.DefaultMessages,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	for _, o := range opts {
		o(s)
	}
	s.mcp = sdk.NewServer(&sdk.Implementation{Name: "desk-recorder", Version: version}, nil)
	s.registerTools()
	return s
}

// Connect serves one client over t until the client goes away or ctx ends.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) error {
	ss, err := s.mcp.Connect(ctx, t, nil)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = ss.Close() })
	defer stop()
	return ss.Wait()
}

// Handler serves /health and the /mcp/ws websocket endpoint. Sessions are
// bound to ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok " + s.session.Status().String()))
	})
	mux.HandleFunc("/mcp/ws", func(w http.ResponseWriter, r *http.Request) {
		if ctx.Err() != nil || !s.beginSession() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.wg.Done()
			logging.Warnw("control: websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		logging.Debugw("control: client connected", "remote", r.RemoteAddr)
		go func() {
			defer s.wg.Done()
			if err := s.Connect(ctx, NewWebSocketTransport(conn)); err != nil && ctx.Err() == nil {
				logging.Debugw("control: session ended", "remote", r.RemoteAddr, "err", err)
			}
			_ = conn.Close()
		}()
	})
	return mux
}

// beginSession reserves a slot in wg unless shutdown has begun.
func (s *Server) beginSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.wg.Add(1)
	return true
}

// drainSessions refuses new websocket sessions and waits for open ones.
func (s *Server) drainSessions() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.wg.Wait()
}

// ListenAndServe runs the HTTP server on addr until ctx is cancelled, then
// shuts it down and waits for open MCP sessions.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Infow("control: listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.drainSessions()
	logging.Infow("control: server stopped")
	return err
}
