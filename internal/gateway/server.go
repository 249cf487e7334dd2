package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alekspetrov/dobby/internal/comms"
	"github.com/alekspetrov/dobby/internal/logging"
	"github.com/gorilla/websocket"
)

// Dispatcher accepts inbound chat messages for asynchronous processing.
// HandleEvent must return without waiting for the reply.
type Dispatcher interface {
	HandleEvent(ctx context.Context, msg *comms.IncomingMessage, sink comms.ReplySink) bool
}

// Server is the HTTP front door of the bot. It receives Feishu event
// callbacks, answers health probes, and optionally serves a websocket
// console that feeds typed messages through the same dispatcher.
// Server is safe for concurrent use.
type Server struct {
	config     *Config
	dispatcher Dispatcher
	sink       comms.ReplySink
	token      string
	sessions   *SessionManager
	router     *Router
	upgrader   websocket.Upgrader
	server     *http.Server
	mu         sync.RWMutex
	running    bool
}

// Config holds gateway server configuration including network binding options.
type Config struct {
	// Host is the network interface to bind to (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `yaml:"host"`
	// Port is the TCP port number to listen on.
	Port int `yaml:"port"`
	// DevConsole enables the /ws chat console.
	DevConsole bool `yaml:"dev_console"`
}

// ServerOption is a functional option for configuring Server.
type ServerOption func(*Server)

// WithReplySink sets where replies to webhook messages are delivered.
func WithReplySink(sink comms.ReplySink) ServerOption {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithVerificationToken makes the webhook reject callbacks whose token
// differs from token. An empty token disables the check.
func WithVerificationToken(token string) ServerOption {
	return func(s *Server) {
		s.token = token
	}
}

// NewServer creates a new gateway server with the given configuration.
// The server is not started until Start is called.
func NewServer(config *Config, dispatcher Dispatcher, opts ...ServerOption) *Server {
	s := &Server{
		config:     config,
		dispatcher: dispatcher,
		sessions:   NewSessionManager(),
		router:     NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				// The console is a local tool; browsers on other sites may not connect.
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router.RegisterMessageHandler(FrameMessage, s.handleConsoleMessage)
	return s
}

// Handler returns the HTTP handler serving every gateway endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook/event", s.handleEvent)
	if s.config.DevConsole {
		mux.HandleFunc("/ws", s.handleWebSocket)
	}
	return mux
}

// Start starts the gateway server and blocks until the context is cancelled
// or an error occurs. Returns an error if the server fails to start or is
// already running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	logging.WithComponent("gateway").Info("Gateway starting",
		slog.String("addr", addr),
		slog.Bool("dev_console", s.config.DevConsole))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server with a 30-second timeout.
// Open console sessions are closed first.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.running = false
	s.sessions.CloseAll()
	return s.server.Shutdown(ctx)
}

// handleWebSocket serves one console connection until it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithComponent("gateway").Error("WebSocket upgrade error", slog.Any("error", err))
		return
	}

	session := s.sessions.Create(conn)
	defer s.sessions.Remove(session.ID)

	logging.WithComponent("gateway").Info("New console session", slog.String("session_id", session.ID))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.WithComponent("gateway").Warn("WebSocket error", slog.Any("error", err))
			}
			break
		}

		s.router.HandleMessage(r.Context(), session, message)
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "healthy",
		"sessions": s.sessions.Count(),
	})
}
