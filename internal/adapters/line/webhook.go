package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alekspetrov/linerelay/internal/comms"
	"github.com/alekspetrov/linerelay/internal/logging"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the request body.
const SignatureHeader = "X-Line-Signature"

// maxBodyBytes caps webhook bodies read into memory.
const maxBodyBytes = 1 << 20

// Dispatcher accepts decoded messages. It must not block.
type Dispatcher interface {
	Dispatch(msg comms.IncomingMessage)
}

// VerifySignature reports whether signature is the base64 HMAC-SHA256 of body
// keyed with the channel secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature LINE would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebhookHandler receives LINE webhook posts.
type WebhookHandler struct {
	channelSecret string
	dispatcher    Dispatcher
	now           func() time.Time
	log           *slog.Logger
}

// NewWebhookHandler creates a handler that verifies requests with
// channelSecret and hands text messages to dispatcher.
func NewWebhookHandler(channelSecret string, dispatcher Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		channelSecret: channelSecret,
		dispatcher:    dispatcher,
		now:           time.Now,
		log:           logging.WithComponent("line.webhook"),
	}
}

// ServeHTTP verifies and decodes the payload, dispatches every text message
// and answers 200 without waiting for the pipeline.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.log.Error("Failed to read request body", slog.Any("error", err))
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.channelSecret, body, r.Header.Get(SignatureHeader)) {
		h.log.Warn("Invalid LINE signature")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Error("Failed to parse payload", slog.Any("error", err))
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	for _, event := range payload.Events {
		msg, ok := h.toMessage(event)
		if !ok {
			h.log.Debug("Ignoring event",
				slog.String("type", event.Type),
				slog.String("event_id", event.WebhookEventID))
			continue
		}
		h.dispatcher.Dispatch(msg)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// toMessage converts a text message event. Standby events and non-text
// messages are skipped. Redelivered events lose their reply token so the
// answer goes out via push.
func (h *WebhookHandler) toMessage(e WebhookEvent) (comms.IncomingMessage, bool) {
	if e.Type != "message" || e.Message == nil || e.Message.Type != "text" || e.Source == nil {
		return comms.IncomingMessage{}, false
	}
	if e.Mode == "standby" {
		return comms.IncomingMessage{}, false
	}

	now := h.now()
	received := now
	if e.Timestamp > 0 {
		if ts := time.UnixMilli(e.Timestamp); ts.Before(now) {
			received = ts
		}
	}

	replyToken := e.ReplyToken
	if e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery {
		h.log.Info("Redelivered event, answering via push", slog.String("event_id", e.WebhookEventID))
		replyToken = ""
	}

	return comms.IncomingMessage{
		EventID:    e.WebhookEventID,
		SenderID:   e.Source.UserID,
		ChatID:     e.Source.ChatID(),
		Text:       e.Message.Text,
		ReplyToken: replyToken,
		ReceivedAt: received,
	}, true
}
