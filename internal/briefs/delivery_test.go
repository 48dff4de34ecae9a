package briefs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type pushCall struct {
	to    string
	texts []string
}

type fakePlatform struct {
	mu     sync.Mutex
	pushes []pushCall
	fail   map[string]bool
}

func (f *fakePlatform) Reply(ctx context.Context, token string, texts []string) error {
	return errors.New("reply not expected")
}

func (f *fakePlatform) Push(ctx context.Context, to string, texts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, pushCall{to, texts})
	if f.fail[to] {
		return errors.New("push rejected")
	}
	return nil
}

func (f *fakePlatform) StartLoading(ctx context.Context, chatID string, seconds int) error {
	return nil
}

func sampleBrief() *Brief {
	now := time.Now()
	return &Brief{
		GeneratedAt: now,
		Period:      BriefPeriod{Start: now.Add(-time.Hour), End: now},
		Traffic:     TrafficSummary{Received: 3, GenerationOK: 3},
	}
}

func TestDeliverAll_Log(t *testing.T) {
	d := NewDeliveryService(&BriefConfig{Channels: []ChannelConfig{{Type: "log"}}})

	results := d.DeliverAll(context.Background(), sampleBrief())
	if len(results) != 1 || !results[0].Success || results[0].Channel != "log" {
		t.Errorf("results = %+v", results)
	}
}

func TestDeliverAll_Line(t *testing.T) {
	platform := &fakePlatform{fail: map[string]bool{"Ubad": true}}
	d := NewDeliveryService(&BriefConfig{Channels: []ChannelConfig{
		{Type: "line", Recipients: []string{"Uops", "Ubad"}},
	}}, WithPlatform(platform))

	results := d.DeliverAll(context.Background(), sampleBrief())

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].Success || results[0].Channel != "line:Uops" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Success || results[1].Error == nil {
		t.Errorf("results[1] = %+v, want failure", results[1])
	}
	if len(platform.pushes) != 2 || len(platform.pushes[0].texts) == 0 {
		t.Errorf("pushes = %+v", platform.pushes)
	}
}

func TestDeliverAll_Misconfigured(t *testing.T) {
	tests := []struct {
		name    string
		channel ChannelConfig
		opts    []DeliveryOption
	}{
		{"line without platform", ChannelConfig{Type: "line", Recipients: []string{"U1"}}, nil},
		{"line without recipients", ChannelConfig{Type: "line"}, []DeliveryOption{WithPlatform(&fakePlatform{})}},
		{"unknown type", ChannelConfig{Type: "email"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeliveryService(&BriefConfig{Channels: []ChannelConfig{tt.channel}}, tt.opts...)
			results := d.DeliverAll(context.Background(), sampleBrief())
			if len(results) != 1 || results[0].Success || results[0].Error == nil {
				t.Errorf("results = %+v, want one failure", results)
			}
		})
	}
}
