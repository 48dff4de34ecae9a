// Package orchestrator runs the reply pipeline for one inbound message:
// admission, bounded generation, indicator pacing, segmentation and delivery.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alekspetrov/linerelay/internal/admission"
	"github.com/alekspetrov/linerelay/internal/comms"
	"github.com/alekspetrov/linerelay/internal/delivery"
	"github.com/alekspetrov/linerelay/internal/generator"
	"github.com/alekspetrov/linerelay/internal/indicator"
	"github.com/alekspetrov/linerelay/internal/logging"
)

// Config holds the pipeline settings the orchestrator applies itself.
type Config struct {
	MaxSegmentLen     int
	GenerationTimeout time.Duration
	BusyMessage       string
	ApologyMessage    string
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxSegmentLen:     comms.DefaultMaxSegmentLen,
		GenerationTimeout: 45 * time.Second,
		BusyMessage:       "系統忙碌中，請稍後再試。",
		ApologyMessage:    "抱歉，我無法生成回應。請稍後再試。",
	}
}

// Generator produces answers. *generator.Client implements it.
type Generator interface {
	NewRequest(userText string) generator.Request
	Generate(ctx context.Context, req generator.Request) generator.Result
}

// Deps are the collaborators an Orchestrator is wired with.
type Deps struct {
	Gate       *admission.Gate
	Generator  Generator
	Indicator  *indicator.Synchronizer
	Dispatcher *delivery.Dispatcher
	Metrics    *Metrics  // optional
	Events     EventSink // optional
}

// State is a step of the per-message state machine.
type State string

const (
	StateReceived   State = "received"
	StateRejected   State = "rejected"
	StateAdmitted   State = "admitted"
	StateGenerating State = "generating"
	StateSettling   State = "settling"
	StateSegmenting State = "segmenting"
	StateDelivering State = "delivering"
	StateDone       State = "done"
)

// Outcome describes how one message was handled.
type Outcome struct {
	CorrelationID string
	Rejected      bool
	Generation    generator.Result
	Segments      []string
	Delivery      delivery.Report
	Path          []State
}

// Orchestrator handles inbound messages. The admission gate is the only state
// shared between concurrent messages.
type Orchestrator struct {
	config     *Config
	gate       *admission.Gate
	gen        Generator
	indicator  *indicator.Synchronizer
	dispatcher *delivery.Dispatcher
	metrics    *Metrics
	events     EventSink
	now        func() time.Time
	log        *slog.Logger

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg *Config, deps Deps) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.MaxSegmentLen <= 0 {
		c.MaxSegmentLen = comms.DefaultMaxSegmentLen
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Orchestrator{
		config:     &c,
		gate:       deps.Gate,
		gen:        deps.Generator,
		indicator:  deps.Indicator,
		dispatcher: deps.Dispatcher,
		metrics:    metrics,
		events:     deps.Events,
		now:        time.Now,
		log:        logging.WithComponent("orchestrator"),
	}
}

// Metrics returns the orchestrator's metrics.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Gate returns the admission gate.
func (o *Orchestrator) Gate() *admission.Gate {
	return o.gate
}

// Dispatch handles msg on its own goroutine. Use Wait to drain in-flight
// messages on shutdown.
func (o *Orchestrator) Dispatch(msg comms.IncomingMessage) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("Message handler panicked",
					slog.String("chat_id", msg.ChatID),
					slog.Any("panic", r),
				)
			}
		}()
		o.HandleMessage(context.Background(), msg)
	}()
}

// Wait blocks until every dispatched message is done or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage runs the full pipeline for msg and always ends with some text
// sent to the user, or a logged delivery failure.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg comms.IncomingMessage) Outcome {
	out := Outcome{CorrelationID: uuid.NewString(), Path: []State{StateReceived}}

	ctx = logging.ContextWithCorrelationID(ctx, out.CorrelationID)
	ctx = logging.ContextWithChatID(ctx, msg.ChatID)
	log := logging.WithContext(ctx).With(slog.String("component", "orchestrator"))

	received := msg.ReceivedAt
	if received.IsZero() {
		received = o.now()
	}

	o.metrics.recordReceived()
	o.publish(EventMessageReceived, out.CorrelationID, msg.ChatID, map[string]any{
		"event_id": msg.EventID,
		"chars":    len([]rune(msg.Text)),
	})
	log.Info("Message received", slog.String("event_id", msg.EventID), slog.Int("chars", len([]rune(msg.Text))))

	ticket, err := o.gate.Acquire()
	if err != nil {
		out.Rejected = true
		out.Path = append(out.Path, StateRejected)
		o.metrics.recordAdmission(false)
		o.publish(EventAdmissionRejected, out.CorrelationID, msg.ChatID, map[string]any{
			"capacity": o.gate.Capacity(),
		})
		log.Warn("Admission rejected, answering busy", slog.Int("capacity", o.gate.Capacity()))

		out.Segments = comms.Split(o.config.BusyMessage, o.config.MaxSegmentLen)
		out.Delivery = o.deliver(ctx, out, msg, received)
		out.Path = append(out.Path, StateDone)
		return out
	}
	// Backstop for panics; the explicit Release below ends the ticket's life.
	defer ticket.Release()

	out.Path = append(out.Path, StateAdmitted)
	o.metrics.recordAdmission(true)

	handle := o.indicator.Begin(ctx, loadingTarget(msg))

	out.Path = append(out.Path, StateGenerating)
	out.Generation = o.generate(ctx, msg.Text)
	ticket.Release()

	o.metrics.recordGeneration(out.Generation.OK(), isTimeout(out.Generation.Err), out.Generation.Duration)
	if out.Generation.OK() {
		o.publish(EventGenerationCompleted, out.CorrelationID, msg.ChatID, map[string]any{
			"duration_ms": out.Generation.Duration.Milliseconds(),
			"chars":       len([]rune(out.Generation.Text)),
		})
	} else {
		o.publish(EventGenerationFailed, out.CorrelationID, msg.ChatID, map[string]any{
			"duration_ms": out.Generation.Duration.Milliseconds(),
			"error":       fmt.Sprint(out.Generation.Err),
		})
		log.Warn("Generation failed, answering with apology", slog.Any("error", out.Generation.Err))
	}

	out.Path = append(out.Path, StateSettling)
	if err := o.indicator.Settle(ctx, handle); err != nil {
		log.Warn("Indicator settle interrupted", slog.Any("error", err))
	}

	out.Path = append(out.Path, StateSegmenting)
	text := strings.TrimSpace(out.Generation.Text)
	if !out.Generation.OK() || text == "" {
		text = o.config.ApologyMessage
	}
	out.Segments = comms.Split(text, o.config.MaxSegmentLen)

	out.Path = append(out.Path, StateDelivering)
	out.Delivery = o.deliver(ctx, out, msg, received)
	out.Path = append(out.Path, StateDone)
	return out
}

// generate runs the upstream call on its own goroutine, bounded by
// GenerationTimeout. A call still running at the deadline is abandoned and
// reported as a timeout; its context is cancelled so the client can stop.
func (o *Orchestrator) generate(ctx context.Context, text string) generator.Result {
	timeout := o.config.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().GenerationTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := o.now()
	results := make(chan generator.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- generator.Result{
					Status:   generator.StatusFailed,
					Err:      &generator.Error{Reason: fmt.Sprintf("generator panicked: %v", r)},
					Duration: o.now().Sub(start),
				}
			}
		}()
		results <- o.gen.Generate(genCtx, o.gen.NewRequest(text))
	}()

	select {
	case r := <-results:
		return r
	case <-genCtx.Done():
		select {
		case r := <-results:
			return r
		default:
		}
		return generator.Result{
			Status:   generator.StatusFailed,
			Err:      &generator.Error{Timeout: true, Reason: "deadline exceeded", Err: genCtx.Err()},
			Duration: o.now().Sub(start),
		}
	}
}

func (o *Orchestrator) deliver(ctx context.Context, out Outcome, msg comms.IncomingMessage, received time.Time) delivery.Report {
	elapsed := o.now().Sub(received)
	report := o.dispatcher.Send(ctx, out.Segments, msg.ReplyToken, msg.ChatID, elapsed)

	failures := make(map[string]int)
	for _, f := range report.Failures {
		failures[f.Channel.String()] += f.Count
	}
	o.metrics.recordDelivery(report.Replied, report.Pushed, failures)
	o.publish(EventDeliveryCompleted, out.CorrelationID, msg.ChatID, map[string]any{
		"channel":    report.Channel.String(),
		"segments":   len(out.Segments),
		"delivered":  report.Delivered(),
		"failed":     len(report.Failures),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return report
}

func (o *Orchestrator) publish(typ EventType, correlationID, chatID string, data map[string]any) {
	if o.events == nil {
		return
	}
	o.events.Publish(newEvent(typ, correlationID, chatID, data))
}

// loadingTarget returns the chat to animate. LINE only shows the loading
// animation in one-on-one chats, so group and room messages get none.
func loadingTarget(msg comms.IncomingMessage) string {
	if msg.ChatID != msg.SenderID {
		return ""
	}
	return msg.ChatID
}

func isTimeout(err error) bool {
	ge, ok := err.(*generator.Error)
	return ok && ge.Timeout
}
