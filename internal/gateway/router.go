package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/alekspetrov/linerelay/internal/logging"
)

// MessageType defines the type of control plane message
type MessageType string

const (
	MessageTypeEvent MessageType = "event"
	MessageTypeStats MessageType = "stats"
	MessageTypePing  MessageType = "ping"
	MessageTypePong  MessageType = "pong"
)

// Message represents a control plane message
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Router routes WebSocket control messages to handlers.
type Router struct {
	messageHandlers map[MessageType][]func(*Session, json.RawMessage)
	mu              sync.RWMutex
	log             *slog.Logger
}

// NewRouter creates a new router
func NewRouter() *Router {
	r := &Router{
		messageHandlers: make(map[MessageType][]func(*Session, json.RawMessage)),
		log:             logging.WithComponent("gateway.router"),
	}

	// Register default handlers
	r.RegisterMessageHandler(MessageTypePing, r.handlePing)

	return r
}

// RegisterMessageHandler registers a handler for a message type
func (r *Router) RegisterMessageHandler(msgType MessageType, handler func(*Session, json.RawMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messageHandlers[msgType] = append(r.messageHandlers[msgType], handler)
}

// HandleMessage routes a message to registered handlers
func (r *Router) HandleMessage(session *Session, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.log.Debug("Failed to parse message", slog.Any("error", err))
		return
	}

	r.mu.RLock()
	handlers, ok := r.messageHandlers[msg.Type]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("No handler for message type", slog.String("type", string(msg.Type)))
		return
	}

	for _, handler := range handlers {
		handler(session, msg.Payload)
	}
}

// handlePing responds to ping messages
func (r *Router) handlePing(session *Session, payload json.RawMessage) {
	session.UpdatePing()
	response, _ := json.Marshal(Message{
		Type:    MessageTypePong,
		Payload: payload,
	})
	_ = session.Send(response)
}
