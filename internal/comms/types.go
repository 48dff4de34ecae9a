// Package comms defines the platform-agnostic message types and outbound
// contracts shared by the relay pipeline and the chat adapters.
package comms

import (
	"context"
	"time"
)

// IncomingMessage is the platform-agnostic representation of one inbound
// user message. It is created per webhook event and never mutated.
type IncomingMessage struct {
	EventID    string    // platform webhook event ID (optional)
	SenderID   string    // user who sent the message
	ChatID     string    // push target: user, group or room ID
	Text       string    // message text
	ReplyToken string    // single-use reply handle, empty when unavailable
	ReceivedAt time.Time // when the platform says the event happened
}

// Platform is the outbound surface of a messaging platform.
//
// Reply uses a single-use handle that expires shortly after the inbound
// event and accepts at most MaxReplyBatch messages. Push is addressed by
// recipient and has no expiry.
type Platform interface {
	Reply(ctx context.Context, replyToken string, texts []string) error
	Push(ctx context.Context, to string, texts []string) error
	StartLoading(ctx context.Context, chatID string, seconds int) error
}

// MaxReplyBatch is the number of messages a single reply call may carry.
const MaxReplyBatch = 5
