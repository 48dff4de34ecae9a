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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/alekspetrov/linerelay/internal/admission"
	"github.com/alekspetrov/linerelay/internal/logging"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

// Server is the HTTP front of the relay. It receives LINE webhooks on
// /callback, reports health and metrics, and streams pipeline events to
// WebSocket clients on /ws. Server is safe for concurrent use.
type Server struct {
	config     *Config
	authConfig *AuthConfig
	webhook    http.Handler
	metrics    MetricsSource
	gate       GateSource
	sessions   *SessionManager
	router     *Router
	upgrader   websocket.Upgrader
	server     *http.Server
	log        *slog.Logger
	mu         sync.RWMutex
	running    bool
}

// Config holds gateway server configuration including network binding options.
type Config struct {
	// Host is the network interface to bind to (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `yaml:"host"`
	// Port is the TCP port number to listen on.
	Port int `yaml:"port"`
	// CallbackPath is where LINE posts webhook events.
	CallbackPath string `yaml:"callback_path"`
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         5000,
		CallbackPath: "/callback",
	}
}

// MetricsSource provides pipeline counters.
type MetricsSource interface {
	Snapshot() orchestrator.MetricsSnapshot
}

// GateSource provides admission gate usage.
type GateSource interface {
	Stats() admission.Stats
}

// ServerOption is a functional option for configuring Server.
type ServerOption func(*Server)

// WithAuthConfig protects /metrics and /ws. /callback is always verified by
// signature instead.
func WithAuthConfig(auth *AuthConfig) ServerOption {
	return func(s *Server) {
		s.authConfig = auth
	}
}

// WithMetrics sets the source behind /metrics and the stats control message.
func WithMetrics(source MetricsSource) ServerOption {
	return func(s *Server) {
		s.metrics = source
	}
}

// WithGate sets the admission gate reported by /health and /metrics.
func WithGate(gate GateSource) ServerOption {
	return func(s *Server) {
		s.gate = gate
	}
}

// WithSessions shares a session manager, typically one already registered as
// the orchestrator's event sink.
func WithSessions(sessions *SessionManager) ServerOption {
	return func(s *Server) {
		s.sessions = sessions
	}
}

// NewServer creates a gateway that hands /callback requests to webhook.
// The server is not started until Start is called.
func NewServer(config *Config, webhook http.Handler, opts ...ServerOption) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CallbackPath == "" {
		config.CallbackPath = "/callback"
	}
	s := &Server{
		config:  config,
		webhook: webhook,
		router:  NewRouter(),
		log:     logging.WithComponent("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Allow requests with no origin (same-origin, CLI tools, etc.)
				if origin == "" {
					return true
				}
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
	if s.sessions == nil {
		s.sessions = NewSessionManager()
	}
	s.router.RegisterMessageHandler(MessageTypeStats, s.handleStatsMessage)
	return s
}

// Sessions returns the WebSocket session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// No RealIP: local auth must see the socket peer, not forwarded headers.
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	// LINE verifies with the channel secret, not bearer auth
	if s.webhook != nil {
		r.Method(http.MethodPost, s.config.CallbackPath, s.webhook)
	}

	r.Group(func(r chi.Router) {
		if s.authConfig != nil && s.authConfig.Type != AuthTypeNone {
			r.Use(NewAuthenticator(s.authConfig).Middleware)
		}
		r.Get("/metrics", s.handleMetrics)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// Start starts the gateway server and blocks until the context is cancelled
// or an error occurs. Returns an error if the server is already running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info("Gateway starting",
		slog.String("addr", addr),
		slog.String("callback", s.config.CallbackPath))

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
// It waits for active connections to complete before returning.
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

// handleWebSocket streams pipeline events to the client and serves control
// messages until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade error", slog.Any("error", err))
		return
	}

	session := s.sessions.Create(conn)
	defer s.sessions.Remove(session.ID)

	s.log.Info("New WebSocket session", slog.String("session_id", session.ID))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("WebSocket error", slog.Any("error", err))
			}
			break
		}

		s.router.HandleMessage(session, message)
	}
}

// handleHealth returns server health and admission usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "healthy",
		"sessions": s.sessions.Count(),
	}
	if s.gate != nil {
		stats := s.gate.Stats()
		resp["in_flight"] = stats.InUse
		resp["capacity"] = stats.Capacity
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleMetrics writes the Prometheus text exposition.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_ = NewPrometheusExporter(s.metrics, s.gate).WritePrometheus(w)
}

// handleStatsMessage answers a stats control message with the current snapshot.
func (s *Server) handleStatsMessage(session *Session, _ json.RawMessage) {
	payload := map[string]any{"sessions": s.sessions.Count()}
	if s.metrics != nil {
		payload["metrics"] = s.metrics.Snapshot()
	}
	if s.gate != nil {
		payload["gate"] = s.gate.Stats()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Failed to encode stats", slog.Any("error", err))
		return
	}
	response, _ := json.Marshal(Message{Type: MessageTypeStats, Payload: data})
	if err := session.Send(response); err != nil {
		s.log.Debug("Failed to send stats", slog.String("session_id", session.ID), slog.Any("error", err))
	}
}

// requestLogger logs each request through the component logger.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
