package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alekspetrov/linerelay/internal/gateway"
	"github.com/alekspetrov/linerelay/internal/testutil"
)

// clearEnv blanks the overlay variables so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LINE_CHANNEL_ACCESS_TOKEN", "LINE_CHANNEL_SECRET", "XAI_API_KEY",
		"XAI_MODEL", "PORT", "LINERELAY_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

// validConfig returns defaults plus the credentials Validate requires.
func validConfig() *Config {
	c := DefaultConfig()
	c.Line.AccessToken = testutil.FakeLineAccessToken
	c.Line.ChannelSecret = testutil.FakeLineChannelSecret
	c.Generator.APIKey = testutil.FakeXAIKey
	return c
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Version != "1.0" {
		t.Errorf("Version = %q, want %q", config.Version, "1.0")
	}
	if config.Gateway.Port != 5000 || config.Gateway.CallbackPath != "/callback" {
		t.Errorf("Gateway = %+v", config.Gateway)
	}
	if config.Auth.Type != gateway.AuthTypeLocal {
		t.Errorf("Auth.Type = %q, want %q", config.Auth.Type, gateway.AuthTypeLocal)
	}
	if config.Generator.BaseURL != "https://api.x.ai/v1" || config.Generator.Model != "grok" {
		t.Errorf("Generator = %+v", config.Generator)
	}

	p := config.Pipeline
	if p.MaxConcurrent != 5 || p.MaxSegmentLen != 700 || p.BatchLimit != 5 {
		t.Errorf("Pipeline sizes = %+v", p)
	}
	if p.IndicatorTimeout != 5*time.Second {
		t.Errorf("IndicatorTimeout = %v, want 5s", p.IndicatorTimeout)
	}
	if p.SafetyThreshold != 50*time.Second || p.IndicatorDuration != 10*time.Second || p.GenerationTimeout != 45*time.Second {
		t.Errorf("Pipeline durations = %+v", p)
	}
	if config.Briefs.Enabled {
		t.Error("Briefs should be disabled by default")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Gateway.Port != 5000 {
		t.Errorf("Port = %d, want default", config.Gateway.Port)
	}
}

func TestLoad_FileAndExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELAY_TEST_SECRET", "from-expansion")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
gateway:
  host: 127.0.0.1
  port: 8080
line:
  channel_secret: ${RELAY_TEST_SECRET}
pipeline:
  max_concurrent: 3
  safety_threshold: 40s
  generation_timeout: 30s
  busy_message: busy
  apology_message: sorry
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Gateway.Port != 8080 || config.Gateway.Host != "127.0.0.1" {
		t.Errorf("Gateway = %+v", config.Gateway)
	}
	if config.Line.ChannelSecret != "from-expansion" {
		t.Errorf("ChannelSecret = %q", config.Line.ChannelSecret)
	}
	if config.Pipeline.MaxConcurrent != 3 || config.Pipeline.SafetyThreshold != 40*time.Second {
		t.Errorf("Pipeline = %+v", config.Pipeline)
	}
	// keys absent from the file keep their defaults
	if config.Pipeline.MaxSegmentLen != 700 {
		t.Errorf("MaxSegmentLen = %d, want default 700", config.Pipeline.MaxSegmentLen)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("gateway: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestLoad_EnvironmentOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", testutil.FakeLineAccessToken)
	t.Setenv("LINE_CHANNEL_SECRET", testutil.FakeLineChannelSecret)
	t.Setenv("XAI_API_KEY", testutil.FakeXAIKey)
	t.Setenv("PORT", "10000")
	t.Setenv("LINERELAY_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "gateway:\n  port: 8080\nline:\n  channel_secret: file-secret\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Gateway.Port != 10000 {
		t.Errorf("Port = %d, want 10000 from PORT", config.Gateway.Port)
	}
	if config.Line.ChannelSecret != testutil.FakeLineChannelSecret {
		t.Errorf("ChannelSecret = %q, env should win", config.Line.ChannelSecret)
	}
	if config.Line.AccessToken != testutil.FakeLineAccessToken || config.Generator.APIKey != testutil.FakeXAIKey {
		t.Error("credentials not applied from environment")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_BadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should fail when PORT is not a number")
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := validConfig()
	original.Pipeline.MaxSegmentLen = 500
	original.Briefs.Enabled = true

	if err := Save(original, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Pipeline.MaxSegmentLen != 500 || !loaded.Briefs.Enabled {
		t.Errorf("round trip lost values: %+v %+v", loaded.Pipeline, loaded.Briefs)
	}
	if loaded.Pipeline.SafetyThreshold != 50*time.Second {
		t.Errorf("SafetyThreshold = %v after round trip", loaded.Pipeline.SafetyThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Gateway.Port = 0 }, "invalid gateway port"},
		{"api token without token", func(c *Config) { c.Auth = &gateway.AuthConfig{Type: gateway.AuthTypeAPIToken} }, "API token"},
		{"missing access token", func(c *Config) { c.Line.AccessToken = "" }, "channel_access_token"},
		{"missing secret", func(c *Config) { c.Line.ChannelSecret = "" }, "channel_secret"},
		{"missing api key", func(c *Config) { c.Generator.APIKey = "" }, "api_key"},
		{"bad base url", func(c *Config) { c.Generator.BaseURL = "not a url" }, "base_url"},
		{"zero max tokens", func(c *Config) { c.Generator.MaxTokens = 0 }, "max_tokens"},
		{"temperature too high", func(c *Config) { c.Generator.Temperature = 3 }, "temperature"},
		{"zero concurrency", func(c *Config) { c.Pipeline.MaxConcurrent = 0 }, "max_concurrent"},
		{"tiny segments", func(c *Config) { c.Pipeline.MaxSegmentLen = 5 }, "max_segment_len"},
		{"batch too large", func(c *Config) { c.Pipeline.BatchLimit = 6 }, "batch_limit"},
		{"threshold too long", func(c *Config) { c.Pipeline.SafetyThreshold = 2 * time.Minute }, "safety_threshold"},
		{"indicator too long", func(c *Config) { c.Pipeline.IndicatorDuration = 2 * time.Minute }, "indicator_duration"},
		{"negative indicator timeout", func(c *Config) { c.Pipeline.IndicatorTimeout = -time.Second }, "indicator_timeout"},
		{"indicator timeout past threshold", func(c *Config) { c.Pipeline.IndicatorTimeout = time.Minute }, "indicator_timeout"},
		{"no generation timeout", func(c *Config) { c.Pipeline.GenerationTimeout = 0 }, "generation_timeout"},
		{"empty apology", func(c *Config) { c.Pipeline.ApologyMessage = " " }, "apology_message"},
		{"bad brief schedule", func(c *Config) {
			c.Briefs.Enabled = true
			c.Briefs.Schedule = "whenever"
		}, "briefs.schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.errSubstr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errSubstr)
			}
		})
	}
}

func TestPipelineConfig_Derived(t *testing.T) {
	p := DefaultPipelineConfig()
	p.MaxSegmentLen = 300
	p.BatchLimit = 3

	orch := p.OrchestratorConfig()
	if orch.MaxSegmentLen != 300 || orch.GenerationTimeout != p.GenerationTimeout || orch.BusyMessage != p.BusyMessage {
		t.Errorf("OrchestratorConfig() = %+v", orch)
	}
	dlv := p.DeliveryConfig()
	if dlv.BatchLimit != 3 || dlv.SafetyThreshold != p.SafetyThreshold {
		t.Errorf("DeliveryConfig() = %+v", dlv)
	}
}
