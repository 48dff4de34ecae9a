package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/alekspetrov/linerelay/internal/adapters/line"
	"github.com/alekspetrov/linerelay/internal/briefs"
	"github.com/alekspetrov/linerelay/internal/comms"
	"github.com/alekspetrov/linerelay/internal/delivery"
	"github.com/alekspetrov/linerelay/internal/gateway"
	"github.com/alekspetrov/linerelay/internal/generator"
	"github.com/alekspetrov/linerelay/internal/logging"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

// Config represents the main configuration
type Config struct {
	Version   string              `yaml:"version"`
	Gateway   *gateway.Config     `yaml:"gateway"`
	Auth      *gateway.AuthConfig `yaml:"auth"`
	Line      *line.Config        `yaml:"line"`
	Generator *generator.Config   `yaml:"generator"`
	Pipeline  *PipelineConfig     `yaml:"pipeline"`
	Logging   *logging.Config     `yaml:"logging"`
	Briefs    *briefs.BriefConfig `yaml:"briefs"`
}

// PipelineConfig holds the reply pipeline tunables.
type PipelineConfig struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	MaxSegmentLen     int           `yaml:"max_segment_len"`
	BatchLimit        int           `yaml:"batch_limit"`
	SafetyThreshold   time.Duration `yaml:"safety_threshold"`
	IndicatorDuration time.Duration `yaml:"indicator_duration"`
	IndicatorTimeout  time.Duration `yaml:"indicator_timeout"` // cap on the loading-start call
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	BusyMessage       string        `yaml:"busy_message"`
	ApologyMessage    string        `yaml:"apology_message"`
}

// DefaultPipelineConfig returns the pipeline defaults.
func DefaultPipelineConfig() *PipelineConfig {
	orch := orchestrator.DefaultConfig()
	dlv := delivery.DefaultConfig()
	return &PipelineConfig{
		MaxConcurrent:     5,
		MaxSegmentLen:     orch.MaxSegmentLen,
		BatchLimit:        dlv.BatchLimit,
		SafetyThreshold:   dlv.SafetyThreshold,
		IndicatorDuration: 10 * time.Second,
		IndicatorTimeout:  5 * time.Second,
		GenerationTimeout: orch.GenerationTimeout,
		BusyMessage:       orch.BusyMessage,
		ApologyMessage:    orch.ApologyMessage,
	}
}

// OrchestratorConfig returns the orchestrator's share of the pipeline settings.
func (p *PipelineConfig) OrchestratorConfig() *orchestrator.Config {
	return &orchestrator.Config{
		MaxSegmentLen:     p.MaxSegmentLen,
		GenerationTimeout: p.GenerationTimeout,
		BusyMessage:       p.BusyMessage,
		ApologyMessage:    p.ApologyMessage,
	}
}

// DeliveryConfig returns the dispatcher's share of the pipeline settings.
func (p *PipelineConfig) DeliveryConfig() *delivery.Config {
	return &delivery.Config{
		BatchLimit:      p.BatchLimit,
		SafetyThreshold: p.SafetyThreshold,
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version:   "1.0",
		Gateway:   gateway.DefaultConfig(),
		Auth:      &gateway.AuthConfig{Type: gateway.AuthTypeLocal},
		Line:      line.DefaultConfig(),
		Generator: generator.DefaultConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Logging:   logging.DefaultConfig(),
		Briefs:    briefs.DefaultBriefConfig(),
	}
}

// Load loads configuration from a file, then applies the environment
// overlay. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err == nil {
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if config.Logging != nil && config.Logging.Output != "" {
		config.Logging.Output = expandPath(config.Logging.Output)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Credentials may be inlined.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".linerelay", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Gateway == nil {
		return fmt.Errorf("gateway configuration is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}
	if c.Auth != nil && c.Auth.Type == gateway.AuthTypeAPIToken && c.Auth.Token == "" {
		return fmt.Errorf("API token is required when auth type is api-token")
	}

	if c.Line == nil {
		return fmt.Errorf("line configuration is required")
	}
	if c.Line.AccessToken == "" {
		return fmt.Errorf("line.channel_access_token is required (or LINE_CHANNEL_ACCESS_TOKEN)")
	}
	if c.Line.ChannelSecret == "" {
		return fmt.Errorf("line.channel_secret is required (or LINE_CHANNEL_SECRET)")
	}

	if err := c.validateGenerator(); err != nil {
		return err
	}
	if c.Pipeline == nil {
		return fmt.Errorf("pipeline configuration is required")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}

	if c.Briefs != nil && c.Briefs.Enabled {
		if _, err := cron.ParseStandard(c.Briefs.Schedule); err != nil {
			return fmt.Errorf("invalid briefs.schedule %q: %w", c.Briefs.Schedule, err)
		}
	}
	return nil
}

func (c *Config) validateGenerator() error {
	g := c.Generator
	if g == nil {
		return fmt.Errorf("generator configuration is required")
	}
	if g.APIKey == "" {
		return fmt.Errorf("generator.api_key is required (or XAI_API_KEY)")
	}
	u, err := url.Parse(g.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid generator.base_url: %q", g.BaseURL)
	}
	if g.Model == "" {
		return fmt.Errorf("generator.model is required")
	}
	if g.MaxTokens <= 0 {
		return fmt.Errorf("generator.max_tokens must be positive, got %d", g.MaxTokens)
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("generator.temperature must be in [0, 2], got %g", g.Temperature)
	}
	return nil
}

// Validate checks that every pipeline value is in range.
func (p *PipelineConfig) Validate() error {
	if p.MaxConcurrent < 1 {
		return fmt.Errorf("pipeline.max_concurrent must be at least 1, got %d", p.MaxConcurrent)
	}
	if p.MaxSegmentLen < 20 || p.MaxSegmentLen > line.MaxTextLen {
		return fmt.Errorf("pipeline.max_segment_len must be in [20, %d], got %d", line.MaxTextLen, p.MaxSegmentLen)
	}
	if p.BatchLimit < 1 || p.BatchLimit > comms.MaxReplyBatch {
		return fmt.Errorf("pipeline.batch_limit must be in [1, %d], got %d", comms.MaxReplyBatch, p.BatchLimit)
	}
	if p.SafetyThreshold <= 0 || p.SafetyThreshold > time.Minute {
		return fmt.Errorf("pipeline.safety_threshold must be in (0, 1m], got %s", p.SafetyThreshold)
	}
	if p.IndicatorDuration < 0 || p.IndicatorDuration > time.Minute {
		return fmt.Errorf("pipeline.indicator_duration must be in [0, 1m], got %s", p.IndicatorDuration)
	}
	if p.IndicatorTimeout < 0 || p.IndicatorTimeout > p.SafetyThreshold {
		return fmt.Errorf("pipeline.indicator_timeout must be in [0, safety_threshold], got %s", p.IndicatorTimeout)
	}
	if p.GenerationTimeout <= 0 {
		return fmt.Errorf("pipeline.generation_timeout must be positive, got %s", p.GenerationTimeout)
	}
	if strings.TrimSpace(p.BusyMessage) == "" || strings.TrimSpace(p.ApologyMessage) == "" {
		return fmt.Errorf("pipeline.busy_message and pipeline.apology_message must not be empty")
	}
	return nil
}
