package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alekspetrov/linerelay/internal/admission"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

func TestNewServer(t *testing.T) {
	server := NewServer(nil, nil)

	if server == nil {
		t.Fatal("NewServer returned nil")
	}
	if server.config.CallbackPath != "/callback" {
		t.Errorf("CallbackPath = %q, want /callback", server.config.CallbackPath)
	}
	if server.sessions == nil {
		t.Error("Sessions manager not initialized")
	}
	if server.router == nil {
		t.Error("Router not initialized")
	}
}

func TestNewServer_SharedSessions(t *testing.T) {
	sessions := NewSessionManager()
	server := NewServer(DefaultConfig(), nil, WithSessions(sessions))

	if server.Sessions() != sessions {
		t.Error("WithSessions not applied")
	}
}

func TestHealthEndpoint(t *testing.T) {
	gate := &mockGate{stats: admission.Stats{Capacity: 5, InUse: 2}}
	server := NewServer(DefaultConfig(), nil, WithGate(gate))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", response["status"])
	}
	if response["in_flight"] != float64(2) || response["capacity"] != float64(5) {
		t.Errorf("gate fields = %v / %v", response["in_flight"], response["capacity"])
	}
}

func TestOperatorRoutes_SpoofedLoopback(t *testing.T) {
	server := NewServer(DefaultConfig(), nil,
		WithAuthConfig(&AuthConfig{Type: AuthTypeLocal}),
		WithMetrics(&mockMetricsSource{}),
	)
	handler := server.Handler()

	for _, path := range []string{"/metrics", "/ws"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.7:4444"
		req.Header.Set("X-Forwarded-For", "127.0.0.1")
		req.Header.Set("X-Real-IP", "127.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with forwarded loopback = %d, want 401", path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET /metrics from loopback = %d, want 200", w.Code)
	}
}

func TestCallbackRoute(t *testing.T) {
	var called bool
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	server := NewServer(DefaultConfig(), webhook, WithAuthConfig(&AuthConfig{Type: AuthTypeAPIToken, Token: "secret"}))
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !called {
		t.Errorf("POST /callback status = %d, called = %v", w.Code, called)
	}

	req = httptest.NewRequest(http.MethodGet, "/callback", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /callback status = %d, want 405", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	source := &mockMetricsSource{snapshot: orchestrator.MetricsSnapshot{Received: 7}}

	t.Run("not configured", func(t *testing.T) {
		server := NewServer(DefaultConfig(), nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("exposition", func(t *testing.T) {
		server := NewServer(DefaultConfig(), nil, WithMetrics(source))
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
			t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
		}
		if !strings.Contains(w.Body.String(), "linerelay_messages_received_total 7") {
			t.Errorf("body missing received counter:\n%s", w.Body.String())
		}
	})

	t.Run("requires token", func(t *testing.T) {
		server := NewServer(DefaultConfig(), nil,
			WithMetrics(source),
			WithAuthConfig(&AuthConfig{Type: AuthTypeAPIToken, Token: "secret"}))
		handler := server.Handler()

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status without token = %d, want 401", w.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.Header.Set("Authorization", "Bearer secret")
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status with token = %d, want 200", w.Code)
		}
	})
}

func dialWS(t *testing.T, server *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(server.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("Failed to connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for server.Sessions().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if server.Sessions().Count() != 1 {
		t.Fatalf("session count = %d, want 1", server.Sessions().Count())
	}

	return conn, func() {
		_ = conn.Close()
		ts.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return msg
}

func TestWebSocket_StreamsEvents(t *testing.T) {
	server := NewServer(DefaultConfig(), nil)
	conn, cleanup := dialWS(t, server)
	defer cleanup()

	server.Sessions().Publish(orchestrator.Event{
		ID:            "evt-1",
		Type:          orchestrator.EventAdmissionRejected,
		CorrelationID: "corr-1",
		ChatID:        "U1",
		Timestamp:     time.Now(),
	})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeEvent {
		t.Fatalf("Type = %s, want event", msg.Type)
	}
	var event orchestrator.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("payload decode error = %v", err)
	}
	if event.Type != orchestrator.EventAdmissionRejected || event.CorrelationID != "corr-1" {
		t.Errorf("event = %+v", event)
	}
}

func TestWebSocket_PingAndStats(t *testing.T) {
	source := &mockMetricsSource{snapshot: orchestrator.MetricsSnapshot{Received: 3}}
	server := NewServer(DefaultConfig(), nil, WithMetrics(source))
	conn, cleanup := dialWS(t, server)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","payload":{"n":1}}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("Type = %s, want pong", msg.Type)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stats"}`)); err != nil {
		t.Fatalf("write stats: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("Type = %s, want stats", msg.Type)
	}
	var payload struct {
		Metrics orchestrator.MetricsSnapshot `json:"metrics"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload decode error = %v", err)
	}
	if payload.Metrics.Received != 3 {
		t.Errorf("Received = %d, want 3", payload.Metrics.Received)
	}
}

func TestPublish_NoSessions(t *testing.T) {
	sm := NewSessionManager()
	// Must not panic or block with nobody listening.
	sm.Publish(orchestrator.Event{Type: orchestrator.EventMessageReceived})
	if sm.Count() != 0 {
		t.Errorf("Count() = %d, want 0", sm.Count())
	}
}

func TestServerStartStop(t *testing.T) {
	config := &Config{Host: "127.0.0.1", Port: 19090}
	server := NewServer(config, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	<-ctx.Done()

	select {
	case err := <-errCh:
		if err != nil {
			t.Logf("Server returned: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not shut down in time")
	}
}

func TestRouter_UnknownMessageIgnored(t *testing.T) {
	router := NewRouter()
	// Unknown type and malformed JSON are dropped without a session.
	router.HandleMessage(nil, []byte(`{"type":"nope"}`))
	router.HandleMessage(nil, []byte(`not json`))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	server := NewServer(DefaultConfig(), nil)
	handler := requestLogger(server.log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "tea")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "tea" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
