// Package dashboard serves the daemon's status surface.
//
// The server exposes health and status endpoints, manual sync triggers and
// a WebSocket feed that broadcasts sync results and collection statistics
// to connected clients.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	gosync "sync"
	"time"

	"github.com/coder/websocket"

	"github.com/seniorcare/opscentre/internal/store"
	"github.com/seniorcare/opscentre/internal/sync"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSyncComplete indicates a sync run finished
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeStats carries updated collection statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Syncer runs sync passes on demand. *daemon.Scheduler implements it.
type Syncer interface {
	TriggerNow(ctx context.Context, req sync.Request) (sync.Result, error)
	Last() (sync.Result, bool)
	PollInterval() time.Duration
}

// StatsSource reports collection statistics. *store.Store implements it.
type StatsSource interface {
	Stats(ctx context.Context, today time.Time) (store.Stats, error)
}

// Server manages WebSocket connections and the HTTP endpoints
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	syncer Syncer
	stats  StatsSource
	now    func() time.Time

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu gosync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup

	logger *slog.Logger
}

// Config holds server configuration
type Config struct {
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Syncer serves /sync/push and /sync/pull. Optional.
	Syncer Syncer

	// Stats serves /status and the stats feed. Optional.
	Stats StatsSource

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:   "127.0.0.1",
		Port:   8080,
		Logger: slog.Default(),
	}
}

// NewServer creates a new dashboard server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	host := config.Host
	if host == "" {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(host, fmt.Sprint(config.Port)),
		syncer:    config.Syncer,
		stats:     config.Stats,
		now:       config.Now,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger.With("component", "dashboard"),
	}
}

// Handler returns the HTTP routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /sync/push", s.handleSync(sync.ModePush))
	mux.HandleFunc("POST /sync/pull", s.handleSync(sync.ModePull))
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// Manual syncs hold the request open for the remote round trip.
		WriteTimeout: 60 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("dashboard server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Info("dashboard server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = s.now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the lock so a slow client cannot block new connections.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Debug("failed to send to client", "error", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The dashboard binds to loopback by default.
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("client connected", "clients", clientCount)

	// New clients start with the current statistics.
	welcome := Message{Type: MessageTypeStats, Timestamp: s.now()}
	if stats, err := s.currentStats(r.Context()); err == nil && stats != nil {
		welcome.Data, _ = json.Marshal(stats)
	}
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection alive until the client disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Info("client disconnected", "clients", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Stats        *store.Stats `json:"stats,omitempty"`
	LastSync     *sync.Result `json:"last_sync,omitempty"`
	PollInterval string       `json:"poll_interval,omitempty"`
	Clients      int          `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Clients: s.ClientCount()}

	stats, err := s.currentStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Stats = stats

	if s.syncer != nil {
		if last, ok := s.syncer.Last(); ok {
			resp.LastSync = &last
		}
		resp.PollInterval = s.syncer.PollInterval().String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// maxSyncBody bounds the body of POST /sync/{push,pull}.
const maxSyncBody = 4 << 10

// syncRequest is the optional body of POST /sync/{push,pull}.
type syncRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleSync(mode sync.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.syncer == nil {
			writeError(w, http.StatusServiceUnavailable, "sync is not available")
			return
		}

		var body syncRequest
		if r.ContentLength != 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxSyncBody)
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
				return
			}
		}
		if r.URL.Query().Get("force") == "true" {
			body.Force = true
		}

		res, err := s.syncer.TriggerNow(r.Context(), sync.Request{Mode: mode, Force: body.Force && mode == sync.ModePush})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		status := http.StatusOK
		switch res.Outcome {
		case sync.OutcomeSkipped:
			status = http.StatusConflict
		case sync.OutcomeFailed:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>OpsCentre</title>
</head>
<body>
    <h1>OpsCentre Sync Daemon</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Status: <a href="/status">/status</a></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

func (s *Server) currentStats(ctx context.Context) (*store.Stats, error) {
	if s.stats == nil {
		return nil, nil
	}
	stats, err := s.stats.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &stats, nil
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
