// Package statusweb is claodex's optional monitoring surface: a local
// HTTP+WebSocket server that streams the Event Bus's metrics snapshot to a
// browser tab, off by default. It carries no rendering of its own (a
// sidebar/UI is explicitly out of scope); it is the transport a future
// dashboard would sit behind, following internal/webserver/ws_handler.go
// and server.go's shape.
package statusweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/agusx1211/claodex/internal/eventbus"
)

// pollInterval is how often the metrics snapshot is pushed to connected
// clients. The bus has no pub/sub of its own, so the server just samples
// the in-memory snapshot on a tick, the same tradeoff a polling loop-status
// view takes for anything not worth wiring a proper event stream for.
const pollInterval = 500 * time.Millisecond

// Server serves a status page and a metrics WebSocket for one workspace.
type Server struct {
	bus *eventbus.Bus
	srv *http.Server
	ln  net.Listener
}

// New builds a Server bound to addr (e.g. "127.0.0.1:0" for an ephemeral
// port), not yet listening.
func New(bus *eventbus.Bus, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("statusweb: listening on %s: %w", addr, err)
	}
	s := &Server{bus: bus, ln: ln}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the bound host:port, useful once New picked an ephemeral port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// URL returns the http:// URL clients should open.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Serve blocks, accepting connections until Shutdown is called.
func (s *Server) Serve() error {
	err := s.srv.Serve(s.ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.bus.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "claodex status\nsent=%d received=%d collab_active=%v\nconnect to /ws for a live stream\n",
		snap.TotalSent, snap.TotalReceived, snap.CollabActive)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(s.bus.Snapshot())
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
