package briefs

import "time"

// Brief summarizes relay activity over one period.
type Brief struct {
	GeneratedAt time.Time
	Period      BriefPeriod
	Traffic     TrafficSummary
	Latency     LatencySummary
	Gate        GateSummary
}

// BriefPeriod represents the time range for the brief
type BriefPeriod struct {
	Start time.Time
	End   time.Time
}

// TrafficSummary holds counter deltas for the period.
type TrafficSummary struct {
	Received           int64
	Admitted           int64
	Rejected           int64
	GenerationOK       int64
	GenerationFailed   int64
	GenerationTimeouts int64
	SegmentsSent       int64
	PushDeliveries     int64
	DeliveryFailures   int64
}

// SuccessRate is the share of admitted messages that got a generated answer.
func (t TrafficSummary) SuccessRate() float64 {
	total := t.GenerationOK + t.GenerationFailed
	if total == 0 {
		return 0
	}
	return float64(t.GenerationOK) / float64(total)
}

// LatencySummary describes generation latency over the sample window.
type LatencySummary struct {
	Samples int
	P50     time.Duration
	P95     time.Duration
	Max     time.Duration
}

// GateSummary is the admission gate state when the brief was generated.
type GateSummary struct {
	Capacity int
	InUse    int
}

// BriefConfig holds configuration for brief generation
type BriefConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Schedule string          `yaml:"schedule"` // Cron syntax or "@every 1h"
	Timezone string          `yaml:"timezone"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig defines a delivery channel
type ChannelConfig struct {
	Type       string   `yaml:"type"`       // "log" or "line"
	Recipients []string `yaml:"recipients"` // LINE user, group or room IDs
}

// DefaultBriefConfig returns default brief configuration
func DefaultBriefConfig() *BriefConfig {
	return &BriefConfig{
		Enabled:  false,
		Schedule: "@every 1h",
		Timezone: "UTC",
		Channels: []ChannelConfig{{Type: "log"}},
	}
}

// DeliveryResult represents the result of sending a brief
type DeliveryResult struct {
	Channel string
	Success bool
	Error   error
	SentAt  time.Time
}
