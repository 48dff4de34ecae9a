package generator

import (
	"fmt"
	"time"
)

// Config holds settings for the upstream text-generation endpoint.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	MaxTokens    int64         `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	Persona      string        `yaml:"persona"`
	PromptSuffix string        `yaml:"prompt_suffix"` // appended to every user message
	Timeout      time.Duration `yaml:"timeout"`       // transport-level cap for one call
}

// DefaultConfig returns the defaults for an x.ai-hosted model.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.x.ai/v1",
		Model:       "grok",
		MaxTokens:   1000,
		Temperature: 0.7,
		Persona:     "You are a helpful assistant. Answer clearly and in detail.",
		Timeout:     60 * time.Second,
	}
}

// Request is one generation call. It is built once per inbound message.
type Request struct {
	Persona     string
	UserText    string
	MaxTokens   int64
	Temperature float64
}

// Status is the outcome of a generation call.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
)

// String returns the status label used in logs and metrics.
func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "failed"
}

// Result is produced exactly once per Request.
type Result struct {
	Status   Status
	Text     string
	Err      error
	Duration time.Duration
}

// OK reports whether the call produced text.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Error describes a failed generation call. StatusCode is zero for
// transport failures.
type Error struct {
	StatusCode int
	Reason     string
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Timeout:
		return "generation timed out"
	case e.StatusCode != 0:
		return fmt.Sprintf("generation API returned status %d: %s", e.StatusCode, e.Reason)
	default:
		return fmt.Sprintf("generation request failed: %s", e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
