package orchestrator

import (
	"testing"
	"time"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.recordReceived()
	m.recordReceived()
	m.recordAdmission(true)
	m.recordAdmission(false)
	m.recordGeneration(true, false, 2*time.Second)
	m.recordGeneration(false, true, 45*time.Second)
	m.recordDelivery(2, 1, map[string]int{"push": 1})
	m.recordDelivery(0, 3, nil)

	snap := m.Snapshot()
	if snap.Received != 2 || snap.Admitted != 1 || snap.Rejected != 1 {
		t.Errorf("admission counters = %+v", snap)
	}
	if snap.GenerationOK != 1 || snap.GenerationFailed != 1 || snap.GenerationTimeouts != 1 {
		t.Errorf("generation counters = %+v", snap)
	}
	if snap.SegmentsSent != 6 || snap.ReplyDeliveries != 1 || snap.PushDeliveries != 4 {
		t.Errorf("delivery counters = %+v", snap)
	}
	if snap.DeliveryFailures["push"] != 1 {
		t.Errorf("DeliveryFailures = %v", snap.DeliveryFailures)
	}
	if len(snap.GenerationLatency) != 2 {
		t.Errorf("latency samples = %d, want 2", len(snap.GenerationLatency))
	}
}

func TestMetrics_LatencyWindowBounded(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < maxLatencySamples+10; i++ {
		m.recordGeneration(true, false, time.Duration(i)*time.Millisecond)
	}

	snap := m.Snapshot()
	if len(snap.GenerationLatency) != maxLatencySamples {
		t.Errorf("latency samples = %d, want %d", len(snap.GenerationLatency), maxLatencySamples)
	}
}

func TestMetrics_SnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.recordDelivery(0, 0, map[string]int{"reply": 1})

	snap := m.Snapshot()
	snap.DeliveryFailures["reply"] = 99

	if got := m.Snapshot().DeliveryFailures["reply"]; got != 1 {
		t.Errorf("DeliveryFailures[reply] = %d, want 1", got)
	}
}
