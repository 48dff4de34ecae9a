// Package indicator shows the platform's "working…" animation while an answer
// is generated, and paces the reply so it never lands while the animation is
// still advertised.
package indicator

import (
	"context"
	"log/slog"
	"time"

	"github.com/alekspetrov/linerelay/internal/logging"
)

const (
	// StepSeconds is the granularity the platform accepts for loading durations.
	StepSeconds = 5
	// MinSeconds and MaxSeconds bound the advertised duration.
	MinSeconds = 5
	MaxSeconds = 60

	defaultSignalTimeout = 5 * time.Second
)

// Starter sends the loading signal to a chat.
type Starter interface {
	StartLoading(ctx context.Context, chatID string, seconds int) error
}

// Synchronizer runs the two phases of the indicator: Begin emits the signal
// (best effort) and Settle waits out the advertised duration.
type Synchronizer struct {
	starter       Starter
	duration      time.Duration
	seconds       int
	signalTimeout time.Duration
	now           func() time.Time
	log           *slog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// WithSignalTimeout bounds how long the loading signal call may take.
func WithSignalTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.signalTimeout = d
		}
	}
}

// New creates a Synchronizer. A nil starter disables the signal but keeps the
// pacing; a zero duration disables the pacing.
func New(starter Starter, duration time.Duration, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		starter:       starter,
		duration:      duration,
		seconds:       QuantizeSeconds(duration),
		signalTimeout: defaultSignalTimeout,
		now:           time.Now,
		log:           logging.WithComponent("indicator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seconds returns the duration advertised to the platform.
func (s *Synchronizer) Seconds() int {
	return s.seconds
}

// Handle tracks one emitted signal.
type Handle struct {
	ChatID    string
	StartedAt time.Time

	done chan struct{}
	err  error
}

// Err returns the signal's send error. Only meaningful after Settle.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Begin records the start time and fires the loading signal on its own
// goroutine. Failures are logged and never surface to the caller.
func (s *Synchronizer) Begin(ctx context.Context, chatID string) *Handle {
	h := &Handle{
		ChatID:    chatID,
		StartedAt: s.now(),
		done:      make(chan struct{}),
	}

	if s.starter == nil || chatID == "" {
		close(h.done)
		return h
	}

	go func() {
		defer close(h.done)

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.signalTimeout)
		defer cancel()

		if err := s.starter.StartLoading(sendCtx, chatID, s.seconds); err != nil {
			h.err = err
			logging.WithContext(ctx).Warn("Loading indicator failed",
				slog.String("component", "indicator"),
				slog.String("chat_id", chatID),
				slog.Any("error", err),
			)
		}
	}()

	return h
}

// Settle blocks until the signal call has returned and the configured
// duration has elapsed since Begin. When generation already took longer than
// the duration, no extra wait is added. Returns ctx.Err() if ctx ends first.
func (s *Synchronizer) Settle(ctx context.Context, h *Handle) error {
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	remaining := s.duration - s.now().Sub(h.StartedAt)
	if remaining <= 0 {
		return nil
	}

	s.log.Debug("Pacing reply behind indicator", slog.Duration("remaining", remaining))

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QuantizeSeconds rounds d up to the platform's 5-second step and clamps it
// to [MinSeconds, MaxSeconds].
func QuantizeSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if rem := secs % StepSeconds; rem != 0 {
		secs += StepSeconds - rem
	}
	if secs < MinSeconds {
		return MinSeconds
	}
	if secs > MaxSeconds {
		return MaxSeconds
	}
	return secs
}
