package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment holds the variables that override the config file. Empty
// values leave the file setting alone.
type Environment struct {
	LineAccessToken   string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	LineChannelSecret string `env:"LINE_CHANNEL_SECRET"`
	XAIAPIKey         string `env:"XAI_API_KEY"`
	XAIModel          string `env:"XAI_MODEL"`
	Port              int    `env:"PORT"`
	LogLevel          string `env:"LINERELAY_LOG_LEVEL"`
}

// ApplyEnv overlays the process environment onto c.
func (c *Config) ApplyEnv() error {
	e, err := env.ParseAs[Environment]()
	if err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.applyEnvironment(e)
	return nil
}

func (c *Config) applyEnvironment(e Environment) {
	if e.LineAccessToken != "" && c.Line != nil {
		c.Line.AccessToken = e.LineAccessToken
	}
	if e.LineChannelSecret != "" && c.Line != nil {
		c.Line.ChannelSecret = e.LineChannelSecret
	}
	if e.XAIAPIKey != "" && c.Generator != nil {
		c.Generator.APIKey = e.XAIAPIKey
	}
	if e.XAIModel != "" && c.Generator != nil {
		c.Generator.Model = e.XAIModel
	}
	if e.Port != 0 && c.Gateway != nil {
		c.Gateway.Port = e.Port
	}
	if e.LogLevel != "" && c.Logging != nil {
		c.Logging.Level = e.LogLevel
	}
}
