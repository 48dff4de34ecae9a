// Package delivery sends answer segments back to the user, choosing between
// the short-lived reply handle and the durable push channel.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alekspetrov/linerelay/internal/comms"
	"github.com/alekspetrov/linerelay/internal/logging"
)

// Channel identifies an outbound channel.
type Channel int

const (
	ChannelReply Channel = iota
	ChannelPush
)

// String returns the channel label used in logs and metrics.
func (c Channel) String() string {
	if c == ChannelReply {
		return "reply"
	}
	return "push"
}

// Config holds delivery policy.
type Config struct {
	// BatchLimit is how many segments ride on the single reply call.
	BatchLimit int `yaml:"batch_limit"`
	// SafetyThreshold is the event age after which the reply handle is
	// considered expired and everything goes through push.
	SafetyThreshold time.Duration `yaml:"safety_threshold"`
}

// DefaultConfig returns the delivery defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchLimit:      comms.MaxReplyBatch,
		SafetyThreshold: 50 * time.Second,
	}
}

// Plan is the delivery decision for one answer. It is computed once and
// consumed once by Send.
type Plan struct {
	Channel    Channel
	Segments   []string
	BatchLimit int
}

// Replied returns the segments that go out on the reply handle.
func (p Plan) Replied() []string {
	if p.Channel != ChannelReply {
		return nil
	}
	if len(p.Segments) <= p.BatchLimit {
		return p.Segments
	}
	return p.Segments[:p.BatchLimit]
}

// Pushed returns the segments that go out one by one on the push channel.
func (p Plan) Pushed() []string {
	if p.Channel == ChannelPush {
		return p.Segments
	}
	return p.Segments[len(p.Replied()):]
}

// Error records one failed delivery unit.
type Error struct {
	Channel Channel
	Index   int // index of the first segment in the failed unit
	Count   int // number of segments in the failed unit
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s delivery failed at segment %d: %v", e.Channel, e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Report summarizes what Send did.
type Report struct {
	Channel  Channel
	Replied  int
	Pushed   int
	Failures []*Error
}

// Delivered returns the number of segments accepted by the platform.
func (r Report) Delivered() int {
	return r.Replied + r.Pushed
}

// Dispatcher executes delivery plans against a platform.
type Dispatcher struct {
	platform comms.Platform
	config   *Config
	log      *slog.Logger
}

// New creates a Dispatcher.
func New(platform comms.Platform, cfg *Config) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.BatchLimit <= 0 || c.BatchLimit > comms.MaxReplyBatch {
		c.BatchLimit = comms.MaxReplyBatch
	}
	return &Dispatcher{
		platform: platform,
		config:   &c,
		log:      logging.WithComponent("delivery"),
	}
}

// Plan decides the channel for segments. elapsed is the time since the
// inbound event.
func (d *Dispatcher) Plan(segments []string, replyToken string, elapsed time.Duration) Plan {
	ch := ChannelReply
	if replyToken == "" || elapsed > d.config.SafetyThreshold {
		ch = ChannelPush
	}
	return Plan{Channel: ch, Segments: segments, BatchLimit: d.config.BatchLimit}
}

// Send delivers segments in order. Every unit (the reply batch, or a single
// pushed segment) is attempted once; a failure is logged and recorded and the
// remaining units are still sent.
func (d *Dispatcher) Send(ctx context.Context, segments []string, replyToken, recipient string, elapsed time.Duration) Report {
	plan := d.Plan(segments, replyToken, elapsed)
	report := Report{Channel: plan.Channel}
	log := logging.WithContext(ctx).With(slog.String("component", "delivery"))

	if plan.Channel == ChannelPush && replyToken != "" {
		log.Info("Reply token too old, delivering via push",
			slog.Duration("elapsed", elapsed),
			slog.Duration("threshold", d.config.SafetyThreshold),
		)
	}

	replied := plan.Replied()
	if len(replied) > 0 {
		if err := d.platform.Reply(ctx, replyToken, replied); err != nil {
			report.Failures = append(report.Failures, &Error{Channel: ChannelReply, Index: 0, Count: len(replied), Err: err})
			log.Error("Reply batch failed", slog.Int("segments", len(replied)), slog.Any("error", err))
		} else {
			report.Replied = len(replied)
		}
	}

	offset := len(replied)
	for i, seg := range plan.Pushed() {
		if err := d.platform.Push(ctx, recipient, []string{seg}); err != nil {
			report.Failures = append(report.Failures, &Error{Channel: ChannelPush, Index: offset + i, Count: 1, Err: err})
			log.Error("Push failed", slog.Int("segment", offset+i), slog.Any("error", err))
			continue
		}
		report.Pushed++
	}

	log.Debug("Delivery finished",
		slog.String("channel", plan.Channel.String()),
		slog.Int("replied", report.Replied),
		slog.Int("pushed", report.Pushed),
		slog.Int("failed_units", len(report.Failures)),
	)
	return report
}
