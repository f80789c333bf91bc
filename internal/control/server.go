// Package control is the operator surface: a small HTTP/WebSocket server for
// watching the bot's activity and pausing automatic responses. Login uses
// one-time tokens minted through the owner's !control chat command.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Controller is the slice of the orchestrator the control surface drives.
type Controller interface {
	SetManualMode(on bool)
	ManualMode() bool
}

// Event is one activity notification broadcast to connected clients.
type Event struct {
	Name    string      `json:"name"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// Server serves the control API and event stream.
type Server struct {
	addr       string
	controller Controller
	vault      *Vault
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	httpServer *http.Server
}

// NewServer creates a control server listening on addr once started.
func NewServer(addr string, controller Controller, vault *Vault) *Server {
	return &Server{
		addr:       addr,
		controller: controller,
		vault:      vault,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The panel is served from anywhere the operator likes;
			// auth is the session, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Vault returns the token vault, shared with the chat-side !control command.
func (s *Server) Vault() *Vault { return s.vault }

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/api/manual", s.requireSession(s.handleManual))
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start begins serving until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.buildMux(),
	}

	slog.Info("control server starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleLogin exchanges a one-time token for a session ID.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	session, ok := s.vault.Redeem(req.Token)
	if !ok {
		slog.Warn("control login rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"session": session})
}

// requireSession guards an endpoint with a Bearer session check.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.vault.Valid(bearerToken(r)) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleManual reads (GET) or toggles (POST) manual mode.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// fallthrough to the state response below

	case http.MethodPost:
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		s.controller.SetManualMode(req.Enabled)
		s.Broadcast(Event{Name: "manual_mode", Payload: req.Enabled})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"enabled": s.controller.ManualMode()})
}

// handleWebSocket upgrades to a WebSocket and streams events until the
// client disconnects. The session rides in the query string because browser
// WebSocket clients cannot set headers.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.vault.Valid(r.URL.Query().Get("session")) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	slog.Info("control client connected", "remote", conn.RemoteAddr())

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		slog.Info("control client disconnected", "remote", conn.RemoteAddr())
	}()

	// Drain (and discard) client frames so pings are answered and closes
	// are noticed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends an event to every connected client. Send failures drop the
// client on its next read.
func (s *Server) Broadcast(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("control broadcast failed", "remote", conn.RemoteAddr(), "error", err)
		}
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
