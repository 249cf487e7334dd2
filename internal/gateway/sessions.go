package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is one connected console. It doubles as the reply sink for the
// messages typed into it.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	CreatedAt time.Time
	LastPing  time.Time

	mu      sync.Mutex
	handles map[string]struct{}
}

// SessionManager manages active sessions
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Create creates a new session for a WebSocket connection
func (m *SessionManager) Create(conn *websocket.Conn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &Session{
		ID:        uuid.New().String(),
		Conn:      conn,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
		handles:   make(map[string]struct{}),
	}

	m.sessions[session.ID] = session
	return session
}

// Get retrieves a session by ID
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	return session, ok
}

// Remove closes and forgets a session.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		_ = session.Conn.Close()
		delete(m.sessions, id)
	}
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		_ = session.Conn.Close()
		delete(m.sessions, id)
	}
}

// Count returns the number of active sessions
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Send writes one frame. Writes are serialized because replies arrive
// from dispatcher goroutines.
func (s *Session) Send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// UpdatePing updates the last ping time
func (s *Session) UpdatePing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPing = time.Now()
}

// Reply sends a reply frame and returns a fresh handle for it.
func (s *Session) Reply(_ context.Context, replyTo, text string) (string, error) {
	handle := uuid.New().String()

	s.mu.Lock()
	s.handles[handle] = struct{}{}
	s.mu.Unlock()

	err := s.Send(newFrame(FrameReply, ReplyPayload{Handle: handle, ReplyTo: replyTo, Text: text}))
	if err != nil {
		return "", fmt.Errorf("console reply: %w", err)
	}
	return handle, nil
}

// Update sends an update frame for a handle this session issued.
func (s *Session) Update(_ context.Context, handle, text string) error {
	s.mu.Lock()
	_, ok := s.handles[handle]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("console update: unknown handle %q", handle)
	}

	if err := s.Send(newFrame(FrameUpdate, ReplyPayload{Handle: handle, Text: text})); err != nil {
		return fmt.Errorf("console update: %w", err)
	}
	return nil
}
