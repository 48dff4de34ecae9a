// Package health checks whether a configuration is ready to serve traffic.
package health

import (
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alekspetrov/linerelay/internal/config"
	"github.com/alekspetrov/linerelay/internal/gateway"
)

// Status represents a check or feature status
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

var (
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#7ec699")) // sage green
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d4a054")) // amber
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#d48a8a")) // dusty rose
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e")) // mid gray
)

// Check represents a health check result
type Check struct {
	Name    string
	Status  Status
	Message string
	Fix     string
}

// FeatureStatus represents an optional feature and whether it is on
type FeatureStatus struct {
	Name    string
	Enabled bool
	Status  Status
	Note    string
}

// HealthReport contains all health check results
type HealthReport struct {
	Credentials []Check
	Endpoints   []Check
	Pipeline    []Check
	Features    []FeatureStatus
}

// RunChecks performs all health checks based on config
func RunChecks(cfg *config.Config) *HealthReport {
	return &HealthReport{
		Credentials: checkCredentials(cfg),
		Endpoints:   checkEndpoints(cfg),
		Pipeline:    checkPipeline(cfg),
		Features:    checkFeatures(cfg),
	}
}

// Summary counts errors and warnings across all checks.
func (r *HealthReport) Summary() (errors, warnings int) {
	for _, group := range [][]Check{r.Credentials, r.Endpoints, r.Pipeline} {
		for _, c := range group {
			switch c.Status {
			case StatusError:
				errors++
			case StatusWarning:
				warnings++
			}
		}
	}
	return errors, warnings
}

// ReadyToStart reports whether no check is in error.
func (r *HealthReport) ReadyToStart() bool {
	errors, _ := r.Summary()
	return errors == 0
}

func checkCredentials(cfg *config.Config) []Check {
	var accessToken, secret, apiKey string
	if cfg.Line != nil {
		accessToken = cfg.Line.AccessToken
		secret = cfg.Line.ChannelSecret
	}
	if cfg.Generator != nil {
		apiKey = cfg.Generator.APIKey
	}

	return []Check{
		credentialCheck("LINE access token", accessToken, "export LINE_CHANNEL_ACCESS_TOKEN=..."),
		credentialCheck("LINE channel secret", secret, "export LINE_CHANNEL_SECRET=..."),
		credentialCheck("x.ai API key", apiKey, "export XAI_API_KEY=..."),
	}
}

func credentialCheck(name, value, fix string) Check {
	if value == "" {
		return Check{Name: name, Status: StatusError, Message: "not set", Fix: fix}
	}
	return Check{Name: name, Status: StatusOK, Message: "set (" + maskSecret(value) + ")"}
}

// maskSecret keeps the last four characters.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 4) + s[len(s)-4:]
}

func checkEndpoints(cfg *config.Config) []Check {
	var checks []Check
	if cfg.Generator != nil {
		checks = append(checks, endpointCheck("generation API", cfg.Generator.BaseURL))
		if cfg.Generator.Model == "" {
			checks = append(checks, Check{Name: "model", Status: StatusError, Message: "not set", Fix: "set generator.model"})
		} else {
			checks = append(checks, Check{Name: "model", Status: StatusOK, Message: cfg.Generator.Model})
		}
	}
	if cfg.Line != nil {
		checks = append(checks, endpointCheck("LINE API", cfg.Line.BaseURL))
	}
	return checks
}

func endpointCheck(name, raw string) Check {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Check{Name: name, Status: StatusError, Message: "invalid URL " + raw, Fix: "use an absolute https URL"}
	}
	if u.Scheme != "https" {
		return Check{Name: name, Status: StatusWarning, Message: raw + " (not https)"}
	}
	return Check{Name: name, Status: StatusOK, Message: u.Host}
}

func checkPipeline(cfg *config.Config) []Check {
	p := cfg.Pipeline
	if p == nil {
		return []Check{{Name: "pipeline", Status: StatusError, Message: "missing", Fix: "linerelay config init"}}
	}

	checks := []Check{{Name: "pipeline", Status: StatusOK, Message: "valid"}}
	if err := p.Validate(); err != nil {
		checks[0] = Check{Name: "pipeline", Status: StatusError, Message: err.Error()}
	}

	// Settling past the safety threshold forces every answer onto push.
	if p.IndicatorDuration > p.SafetyThreshold {
		checks = append(checks, Check{
			Name:    "indicator",
			Status:  StatusWarning,
			Message: "indicator_duration exceeds safety_threshold; replies will always be pushed",
		})
	}
	if p.GenerationTimeout > p.SafetyThreshold {
		checks = append(checks, Check{
			Name:    "deadline",
			Status:  StatusWarning,
			Message: "generation_timeout exceeds safety_threshold; slow answers will be pushed",
		})
	}
	return checks
}

// checkFeatures checks optional feature availability
func checkFeatures(cfg *config.Config) []FeatureStatus {
	features := []FeatureStatus{}

	briefsEnabled := cfg.Briefs != nil && cfg.Briefs.Enabled
	brief := FeatureStatus{Name: "Briefs", Enabled: briefsEnabled, Status: boolToStatus(briefsEnabled)}
	if briefsEnabled {
		brief.Note = cfg.Briefs.Schedule
	}
	features = append(features, brief)

	authType := gateway.AuthTypeNone
	if cfg.Auth != nil && cfg.Auth.Type != "" {
		authType = cfg.Auth.Type
	}
	metrics := FeatureStatus{Name: "Metrics", Enabled: true, Status: StatusOK, Note: string(authType)}
	if authType == gateway.AuthTypeNone {
		metrics.Status = StatusWarning
		metrics.Note = "unauthenticated"
	}
	features = append(features, metrics)

	rotation := cfg.Logging != nil && cfg.Logging.Rotation != nil
	features = append(features, FeatureStatus{
		Name:    "Log rotation",
		Enabled: rotation,
		Status:  boolToStatus(rotation),
	})

	return features
}

// boolToStatus converts bool to Status
func boolToStatus(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusDisabled
}

// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

// ColorSymbol returns the symbol styled for terminals that support color.
func (s Status) ColorSymbol() string {
	switch s {
	case StatusOK:
		return okStyle.Render(s.Symbol())
	case StatusWarning:
		return warnStyle.Render(s.Symbol())
	case StatusError:
		return errorStyle.Render(s.Symbol())
	case StatusDisabled:
		return disabledStyle.Render(s.Symbol())
	default:
		return s.Symbol()
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
