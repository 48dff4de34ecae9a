package briefs

import (
	"sort"
	"sync"
	"time"

	"github.com/alekspetrov/linerelay/internal/admission"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

// MetricsSource provides pipeline counters.
type MetricsSource interface {
	Snapshot() orchestrator.MetricsSnapshot
}

// GateSource provides admission gate usage.
type GateSource interface {
	Stats() admission.Stats
}

// Generator turns metric snapshots into briefs. Each brief covers the
// counters accumulated since the previous one.
type Generator struct {
	metrics MetricsSource
	gate    GateSource
	now     func() time.Time

	mu       sync.Mutex
	last     orchestrator.MetricsSnapshot
	lastTime time.Time
}

// NewGenerator creates a new brief generator. gate may be nil.
func NewGenerator(metrics MetricsSource, gate GateSource) *Generator {
	return &Generator{
		metrics:  metrics,
		gate:     gate,
		now:      time.Now,
		lastTime: time.Now(),
	}
}

// Generate creates a brief for the period since the previous call.
func (g *Generator) Generate() *Brief {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	snap := g.metrics.Snapshot()

	brief := &Brief{
		GeneratedAt: now,
		Period:      BriefPeriod{Start: g.lastTime, End: now},
		Traffic: TrafficSummary{
			Received:           snap.Received - g.last.Received,
			Admitted:           snap.Admitted - g.last.Admitted,
			Rejected:           snap.Rejected - g.last.Rejected,
			GenerationOK:       snap.GenerationOK - g.last.GenerationOK,
			GenerationFailed:   snap.GenerationFailed - g.last.GenerationFailed,
			GenerationTimeouts: snap.GenerationTimeouts - g.last.GenerationTimeouts,
			SegmentsSent:       snap.SegmentsSent - g.last.SegmentsSent,
			PushDeliveries:     snap.PushDeliveries - g.last.PushDeliveries,
			DeliveryFailures:   sumFailures(snap.DeliveryFailures) - sumFailures(g.last.DeliveryFailures),
		},
		Latency: summarizeLatency(snap.GenerationLatency),
	}
	if g.gate != nil {
		stats := g.gate.Stats()
		brief.Gate = GateSummary{Capacity: stats.Capacity, InUse: stats.InUse}
	}

	g.last = snap
	g.lastTime = now
	return brief
}

func sumFailures(m map[string]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

// summarizeLatency reports nearest-rank percentiles over the sample window.
func summarizeLatency(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencySummary{
		Samples: len(sorted),
		P50:     percentile(sorted, 50),
		P95:     percentile(sorted, 95),
		Max:     sorted[len(sorted)-1],
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
