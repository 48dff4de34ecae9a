// Package generator wraps the hosted text-generation API behind a single
// blocking call that never fails past its own boundary.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/alekspetrov/linerelay/internal/logging"
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	api    openai.Client
	config *Config
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// NewClient creates a generation client. Retries are disabled: one failed
// attempt is final for a request.
func NewClient(cfg *Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &Client{
		api:    openai.NewClient(reqOpts...),
		config: cfg,
		log:    logging.WithComponent("generator"),
	}
}

// NewRequest builds the request for one user message from the configured
// persona and generation parameters.
func (c *Client) NewRequest(userText string) Request {
	text := userText
	if suffix := strings.TrimSpace(c.config.PromptSuffix); suffix != "" {
		text = userText + "\n" + suffix
	}
	return Request{
		Persona:     c.config.Persona,
		UserText:    text,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
}

// Generate performs one call. Every failure, including a cancelled or
// expired ctx, is reported as a StatusFailed result carrying an *Error.
func (c *Client) Generate(ctx context.Context, req Request) Result {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Persona),
			openai.UserMessage(req.UserText),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	params.Temperature = openai.Float(req.Temperature)

	resp, err := c.api.Chat.Completions.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		genErr := classify(ctx, err)
		logging.WithContext(ctx).Warn("Generation call failed",
			slog.String("component", "generator"),
			slog.Int("status_code", genErr.StatusCode),
			slog.Bool("timeout", genErr.Timeout),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return Result{Status: StatusFailed, Err: genErr, Duration: elapsed}
	}

	if len(resp.Choices) == 0 {
		return Result{
			Status:   StatusFailed,
			Err:      &Error{StatusCode: http.StatusOK, Reason: "response contained no choices"},
			Duration: elapsed,
		}
	}

	text := resp.Choices[0].Message.Content
	c.log.Debug("Generation call succeeded",
		slog.String("model", c.config.Model),
		slog.Int("chars", len([]rune(text))),
		slog.Duration("elapsed", elapsed),
	)
	return Result{Status: StatusOK, Text: text, Duration: elapsed}
}

func classify(ctx context.Context, err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{StatusCode: apiErr.StatusCode, Reason: http.StatusText(apiErr.StatusCode), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Timeout: true, Reason: "deadline exceeded", Err: err}
	}
	return &Error{Reason: err.Error(), Err: err}
}
