// Package server exposes the engine over HTTP: a health endpoint and a
// WebSocket chat endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mnemolabs/mnemo/engine"
)

// Server serves chat turns over WebSocket at /ws and liveness at /health.
type Server struct {
	engine   *engine.Engine
	addr     string
	upgrader websocket.Upgrader

	turnTimeout time.Duration
}

// Option configures the server.
type Option func(*Server)

// WithAddr sets the listen address (default ":8080").
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithTurnTimeout bounds a single turn (default 2 minutes).
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Server) { s.turnTimeout = d }
}

// New creates a server around the engine.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:      eng,
		addr:        ":8080",
		turnTimeout: 2 * time.Minute,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run blocks serving HTTP until the listener fails or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[SERVER] Listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// turnRequest is one inbound chat message. A missing thread_id starts a new
// thread whose id comes back in the response.
type turnRequest struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	Message   string `json:"message"`
	Memorable bool   `json:"memorable,omitempty"`
}

type turnResponse struct {
	Text      string   `json:"text,omitempty"`
	ThreadID  string   `json:"thread_id,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	EpisodeID string   `json:"episode_id,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("[SERVER] Connection from %s", r.RemoteAddr)

	// Turns on one connection run sequentially; each connection gets its
	// own goroutine from net/http.
	for {
		var req turnRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[SERVER] Read failed: %v", err)
			}
			return
		}

		resp := s.runTurn(r.Context(), &req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[SERVER] Write failed: %v", err)
			return
		}
	}
}

func (s *Server) runTurn(ctx context.Context, req *turnRequest) *turnResponse {
	if req.UserID == "" || req.Message == "" {
		return &turnResponse{Error: "user_id and message are required"}
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	out, err := s.engine.Run(ctx, &engine.Input{
		UserID:    req.UserID,
		ThreadID:  req.ThreadID,
		Message:   req.Message,
		Memorable: req.Memorable,
	})
	if err != nil {
		log.Printf("[SERVER] Turn failed user=%s: %v", req.UserID, err)
		resp := &turnResponse{ThreadID: req.ThreadID, Error: err.Error()}
		if out != nil {
			resp.Text = out.Text
		}
		return resp
	}

	resp := &turnResponse{
		Text:      out.Text,
		ThreadID:  req.ThreadID,
		EpisodeID: out.EpisodeID,
	}
	for _, exec := range out.ToolsUsed {
		resp.ToolsUsed = append(resp.ToolsUsed, exec.Summary())
	}
	return resp
}
