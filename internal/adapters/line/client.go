// Package line talks to the LINE Messaging API: outbound reply, push and
// loading-animation calls, and the inbound webhook.
package line

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alekspetrov/linerelay/internal/comms"
	"github.com/alekspetrov/linerelay/internal/logging"
)

const (
	// DefaultBaseURL is the Messaging API endpoint.
	DefaultBaseURL = "https://api.line.me"

	replyPath   = "/v2/bot/message/reply"
	pushPath    = "/v2/bot/message/push"
	loadingPath = "/v2/bot/chat/loading/start"

	// MaxTextLen is the platform limit for one text message.
	MaxTextLen = 5000
)

// Config holds LINE channel settings.
type Config struct {
	BaseURL       string        `yaml:"base_url"`
	AccessToken   string        `yaml:"channel_access_token"`
	ChannelSecret string        `yaml:"channel_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DefaultConfig returns LINE defaults without credentials.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// Client is a LINE Messaging API client. It implements comms.Platform.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

var _ comms.Platform = (*Client)(nil)

// NewClient creates a client for cfg.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(cfg.AccessToken).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		log: logging.WithComponent("line"),
	}
}

// Reply answers an event with up to comms.MaxReplyBatch texts using its
// single-use reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, texts []string) error {
	if replyToken == "" {
		return fmt.Errorf("reply: empty reply token")
	}
	if len(texts) == 0 || len(texts) > comms.MaxReplyBatch {
		return fmt.Errorf("reply: %d messages, want 1..%d", len(texts), comms.MaxReplyBatch)
	}
	return c.post(ctx, replyPath, ReplyRequest{ReplyToken: replyToken, Messages: textMessages(texts)})
}

// Push sends texts to a user, group or room without a reply token.
func (c *Client) Push(ctx context.Context, to string, texts []string) error {
	if to == "" {
		return fmt.Errorf("push: empty recipient")
	}
	if len(texts) == 0 || len(texts) > comms.MaxReplyBatch {
		return fmt.Errorf("push: %d messages, want 1..%d", len(texts), comms.MaxReplyBatch)
	}
	return c.post(ctx, pushPath, PushRequest{To: to, Messages: textMessages(texts)})
}

// StartLoading shows the loading animation in a one-on-one chat.
func (c *Client) StartLoading(ctx context.Context, chatID string, seconds int) error {
	if chatID == "" {
		return fmt.Errorf("loading: empty chat id")
	}
	return c.post(ctx, loadingPath, LoadingRequest{ChatID: chatID, LoadingSeconds: seconds})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if resp.IsError() {
		c.log.Debug("LINE API error",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode()),
			slog.String("message", apiErr.Message),
		)
		if apiErr.Message != "" {
			return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode())
	}
	return nil
}

func textMessages(texts []string) []TextMessage {
	msgs := make([]TextMessage, 0, len(texts))
	for _, t := range texts {
		msgs = append(msgs, TextMessage{Type: "text", Text: comms.TruncateText(t, MaxTextLen)})
	}
	return msgs
}
