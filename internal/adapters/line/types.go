package line

// TextMessage is an outbound text message object.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ReplyRequest is the body of /v2/bot/message/reply.
type ReplyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []TextMessage `json:"messages"`
}

// PushRequest is the body of /v2/bot/message/push.
type PushRequest struct {
	To       string        `json:"to"`
	Messages []TextMessage `json:"messages"`
}

// LoadingRequest is the body of /v2/bot/chat/loading/start.
type LoadingRequest struct {
	ChatID         string `json:"chatId"`
	LoadingSeconds int    `json:"loadingSeconds"`
}

// APIError is the error body returned by the Messaging API.
type APIError struct {
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail describes one invalid property.
type ErrorDetail struct {
	Message  string `json:"message"`
	Property string `json:"property"`
}

// WebhookPayload is the body LINE posts to the callback endpoint.
type WebhookPayload struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is a single webhook event. Only message events carry Message.
type WebhookEvent struct {
	Type            string           `json:"type"`
	Mode            string           `json:"mode"`
	Timestamp       int64            `json:"timestamp"`
	WebhookEventID  string           `json:"webhookEventId"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Source          *EventSource     `json:"source,omitempty"`
	Message         *EventMessage    `json:"message,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
}

// EventSource identifies where an event came from.
type EventSource struct {
	Type    string `json:"type"` // user, group or room
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// ChatID returns the ID replies should be pushed to.
func (s *EventSource) ChatID() string {
	switch s.Type {
	case "group":
		return s.GroupID
	case "room":
		return s.RoomID
	default:
		return s.UserID
	}
}

// EventMessage is the message object of a message event.
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// DeliveryContext tells whether the event is a redelivery.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}
