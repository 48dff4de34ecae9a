package gateway

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alekspetrov/linerelay/internal/admission"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

type mockMetricsSource struct {
	snapshot orchestrator.MetricsSnapshot
}

func (m *mockMetricsSource) Snapshot() orchestrator.MetricsSnapshot {
	return m.snapshot
}

type mockGate struct {
	stats admission.Stats
}

func (m *mockGate) Stats() admission.Stats {
	return m.stats
}

func TestPrometheusExporter_WritePrometheus(t *testing.T) {
	tests := []struct {
		name     string
		source   *mockMetricsSource
		gate     GateSource
		contains []string
		absent   []string
	}{
		{
			name:   "empty metrics",
			source: &mockMetricsSource{},
			contains: []string{
				"# HELP linerelay_messages_received_total",
				"# TYPE linerelay_messages_received_total counter",
				"linerelay_messages_received_total 0",
				`linerelay_admission_total{result="admitted"} 0`,
				`linerelay_admission_total{result="rejected"} 0`,
				`linerelay_delivery_failures_total{channel="reply"} 0`,
				`linerelay_delivery_failures_total{channel="push"} 0`,
				"# TYPE linerelay_generation_duration_seconds histogram",
				`linerelay_generation_duration_seconds_bucket{le="+Inf"} 0`,
				"linerelay_generation_duration_seconds_sum 0",
				"linerelay_generation_duration_seconds_count 0",
			},
			absent: []string{"linerelay_generations_in_flight"},
		},
		{
			name: "populated counters",
			source: &mockMetricsSource{snapshot: orchestrator.MetricsSnapshot{
				Received:           12,
				Admitted:           10,
				Rejected:           2,
				GenerationOK:       8,
				GenerationFailed:   2,
				GenerationTimeouts: 1,
				SegmentsSent:       15,
				ReplyDeliveries:    10,
				PushDeliveries:     3,
				DeliveryFailures:   map[string]int64{"push": 1},
			}},
			gate: &mockGate{stats: admission.Stats{Capacity: 5, InUse: 3}},
			contains: []string{
				"linerelay_messages_received_total 12",
				`linerelay_admission_total{result="admitted"} 10`,
				`linerelay_admission_total{result="rejected"} 2`,
				`linerelay_generation_total{result="ok"} 8`,
				`linerelay_generation_total{result="failed"} 2`,
				"linerelay_generation_timeouts_total 1",
				"linerelay_segments_sent_total 15",
				`linerelay_deliveries_total{channel="reply"} 10`,
				`linerelay_deliveries_total{channel="push"} 3`,
				`linerelay_delivery_failures_total{channel="push"} 1`,
				"linerelay_generations_in_flight 3",
				"linerelay_admission_capacity 5",
			},
		},
		{
			name: "latency histogram",
			source: &mockMetricsSource{snapshot: orchestrator.MetricsSnapshot{
				GenerationLatency: []time.Duration{
					500 * time.Millisecond,
					3 * time.Second,
					12 * time.Second,
					50 * time.Second,
				},
			}},
			contains: []string{
				`linerelay_generation_duration_seconds_bucket{le="0.5"} 1`,
				`linerelay_generation_duration_seconds_bucket{le="1"} 1`,
				`linerelay_generation_duration_seconds_bucket{le="5"} 2`,
				`linerelay_generation_duration_seconds_bucket{le="20"} 3`,
				`linerelay_generation_duration_seconds_bucket{le="45"} 3`,
				`linerelay_generation_duration_seconds_bucket{le="60"} 4`,
				`linerelay_generation_duration_seconds_bucket{le="+Inf"} 4`,
				"linerelay_generation_duration_seconds_sum 65.5",
				"linerelay_generation_duration_seconds_count 4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewPrometheusExporter(tt.source, tt.gate).WritePrometheus(&buf); err != nil {
				t.Fatalf("WritePrometheus() error = %v", err)
			}
			output := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(output, unwanted) {
					t.Errorf("Output should not contain %q", unwanted)
				}
			}
		})
	}
}

func TestEscapeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"with\\backslash", "with\\\\backslash"},
		{`with"quote`, `with\"quote`},
		{"with\nnewline", "with\\nnewline"},
		{`complex\n"test`, `complex\\n\"test`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := escapeLabel(tt.input)
			if got != tt.expected {
				t.Errorf("escapeLabel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatLabels(t *testing.T) {
	tests := []struct {
		name     string
		pairs    []string
		expected string
	}{
		{"empty", []string{}, ""},
		{"single", []string{"key", "value"}, `key="value"`},
		{"multiple", []string{"a", "1", "b", "2"}, `a="1",b="2"`},
		{"with special chars", []string{"key", `val"ue`}, `key="val\"ue"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLabels(tt.pairs)
			if got != tt.expected {
				t.Errorf("formatLabels(%v) = %q, want %q", tt.pairs, got, tt.expected)
			}
		})
	}
}
