package briefs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alekspetrov/linerelay/internal/comms"
)

// DeliveryService orchestrates brief delivery to configured channels
type DeliveryService struct {
	config    *BriefConfig
	platform  comms.Platform
	formatter Formatter
	logger    *slog.Logger
}

// DeliveryOption configures the delivery service
type DeliveryOption func(*DeliveryService)

// WithPlatform sets the chat platform used by "line" channels.
func WithPlatform(platform comms.Platform) DeliveryOption {
	return func(d *DeliveryService) {
		d.platform = platform
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) DeliveryOption {
	return func(d *DeliveryService) {
		d.logger = logger
	}
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(config *BriefConfig, opts ...DeliveryOption) *DeliveryService {
	d := &DeliveryService{
		config:    config,
		formatter: NewPlainTextFormatter(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// DeliverAll sends the brief to all configured channels
func (d *DeliveryService) DeliverAll(ctx context.Context, brief *Brief) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(d.config.Channels))

	text, err := d.formatter.Format(brief)
	if err != nil {
		return append(results, DeliveryResult{
			Channel: "format",
			Error:   fmt.Errorf("failed to format brief: %w", err),
			SentAt:  time.Now(),
		})
	}

	for _, channel := range d.config.Channels {
		switch channel.Type {
		case "log":
			results = append(results, d.deliverLog(brief, text))
		case "line":
			results = append(results, d.deliverLine(ctx, text, channel)...)
		default:
			results = append(results, DeliveryResult{
				Channel: channel.Type,
				Error:   fmt.Errorf("unsupported channel type: %s", channel.Type),
				SentAt:  time.Now(),
			})
		}
	}

	return results
}

// deliverLog writes the brief through the logger.
func (d *DeliveryService) deliverLog(brief *Brief, text string) DeliveryResult {
	d.logger.Info("relay brief",
		"received", brief.Traffic.Received,
		"rejected", brief.Traffic.Rejected,
		"generation_failed", brief.Traffic.GenerationFailed,
		"delivery_failures", brief.Traffic.DeliveryFailures,
		"brief", text,
	)
	return DeliveryResult{Channel: "log", Success: true, SentAt: time.Now()}
}

// deliverLine pushes the brief to every recipient; one result per recipient.
func (d *DeliveryService) deliverLine(ctx context.Context, text string, channel ChannelConfig) []DeliveryResult {
	if d.platform == nil {
		return []DeliveryResult{{
			Channel: "line",
			Error:   fmt.Errorf("line platform not configured"),
			SentAt:  time.Now(),
		}}
	}
	if len(channel.Recipients) == 0 {
		return []DeliveryResult{{
			Channel: "line",
			Error:   fmt.Errorf("no line recipients configured"),
			SentAt:  time.Now(),
		}}
	}

	segments := comms.Split(text, comms.DefaultMaxSegmentLen)
	if len(segments) > comms.MaxReplyBatch {
		segments = segments[:comms.MaxReplyBatch]
	}

	results := make([]DeliveryResult, 0, len(channel.Recipients))
	for _, to := range channel.Recipients {
		result := DeliveryResult{Channel: "line:" + to, SentAt: time.Now()}
		if err := d.platform.Push(ctx, to, segments); err != nil {
			result.Error = err
			d.logger.Error("failed to deliver brief to LINE",
				"recipient", to,
				"error", err,
			)
		} else {
			result.Success = true
		}
		results = append(results, result)
	}
	return results
}
