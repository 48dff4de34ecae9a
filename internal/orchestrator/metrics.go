package orchestrator

import (
	"sync"
	"time"
)

// maxLatencySamples bounds the generation latency window kept for histograms.
const maxLatencySamples = 1000

// Metrics accumulates pipeline counters. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	received           int64
	admitted           int64
	rejected           int64
	generationOK       int64
	generationFailed   int64
	generationTimeouts int64
	segments           int64
	replyDeliveries    int64
	pushDeliveries     int64
	deliveryFailures   map[string]int64

	latencies []time.Duration
	next      int
}

// MetricsSnapshot is a copy of the counters at one point in time.
type MetricsSnapshot struct {
	Received           int64
	Admitted           int64
	Rejected           int64
	GenerationOK       int64
	GenerationFailed   int64
	GenerationTimeouts int64
	SegmentsSent       int64
	ReplyDeliveries    int64
	PushDeliveries     int64
	DeliveryFailures   map[string]int64 // by channel
	GenerationLatency  []time.Duration
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{deliveryFailures: make(map[string]int64)}
}

func (m *Metrics) recordReceived() {
	m.mu.Lock()
	m.received++
	m.mu.Unlock()
}

func (m *Metrics) recordAdmission(admitted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if admitted {
		m.admitted++
	} else {
		m.rejected++
	}
}

func (m *Metrics) recordGeneration(ok, timeout bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case ok:
		m.generationOK++
	case timeout:
		m.generationFailed++
		m.generationTimeouts++
	default:
		m.generationFailed++
	}

	if len(m.latencies) < maxLatencySamples {
		m.latencies = append(m.latencies, d)
		return
	}
	m.latencies[m.next] = d
	m.next = (m.next + 1) % maxLatencySamples
}

func (m *Metrics) recordDelivery(replied, pushed int, failures map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.segments += int64(replied + pushed)
	if replied > 0 {
		m.replyDeliveries++
	}
	m.pushDeliveries += int64(pushed)
	for ch, n := range failures {
		m.deliveryFailures[ch] += int64(n)
	}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	failures := make(map[string]int64, len(m.deliveryFailures))
	for k, v := range m.deliveryFailures {
		failures[k] = v
	}
	lat := make([]time.Duration, len(m.latencies))
	copy(lat, m.latencies)

	return MetricsSnapshot{
		Received:           m.received,
		Admitted:           m.admitted,
		Rejected:           m.rejected,
		GenerationOK:       m.generationOK,
		GenerationFailed:   m.generationFailed,
		GenerationTimeouts: m.generationTimeouts,
		SegmentsSent:       m.segments,
		ReplyDeliveries:    m.replyDeliveries,
		PushDeliveries:     m.pushDeliveries,
		DeliveryFailures:   failures,
		GenerationLatency:  lat,
	}
}
