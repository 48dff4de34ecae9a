package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alekspetrov/linerelay/internal/logging"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

// writeTimeout bounds a single WebSocket write so a stuck client cannot
// stall event publishing.
const writeTimeout = 5 * time.Second

// Session represents a connected client session
type Session struct {
	ID        string
	Conn      *websocket.Conn
	CreatedAt time.Time
	LastPing  time.Time
	mu        sync.Mutex
}

// SessionManager manages active sessions. It implements
// orchestrator.EventSink by broadcasting every event to all sessions.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	log      *slog.Logger
}

var _ orchestrator.EventSink = (*SessionManager)(nil)

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		log:      logging.WithComponent("gateway.sessions"),
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

// Remove removes a session
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		_ = session.Conn.Close()
		delete(m.sessions, id)
	}
}

// CloseAll closes and forgets every session.
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

// Broadcast sends a message to all sessions. Send failures are logged; the
// read loop removes dead sessions.
func (m *SessionManager) Broadcast(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, session := range m.sessions {
		if err := session.Send(message); err != nil {
			m.log.Debug("Broadcast failed", slog.String("session_id", session.ID), slog.Any("error", err))
		}
	}
}

// Publish broadcasts a pipeline event as an "event" message.
func (m *SessionManager) Publish(event orchestrator.Event) {
	if m.Count() == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		m.log.Error("Failed to encode event", slog.String("type", string(event.Type)), slog.Any("error", err))
		return
	}
	message, _ := json.Marshal(Message{Type: MessageTypeEvent, Payload: payload})
	m.Broadcast(message)
}

// Send sends a message to this session
func (s *Session) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.Conn.WriteMessage(websocket.TextMessage, message)
}

// UpdatePing updates the last ping time
func (s *Session) UpdatePing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPing = time.Now()
}
