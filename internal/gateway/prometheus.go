package gateway

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// generationBuckets are histogram bounds in seconds, up to the generation
// deadline and a little beyond.
var generationBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60}

// PrometheusExporter formats relay metrics for Prometheus scraping.
type PrometheusExporter struct {
	metrics MetricsSource
	gate    GateSource
}

// NewPrometheusExporter creates an exporter. gate may be nil.
func NewPrometheusExporter(metrics MetricsSource, gate GateSource) *PrometheusExporter {
	return &PrometheusExporter{metrics: metrics, gate: gate}
}

// WritePrometheus writes metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WritePrometheus(w io.Writer) error {
	snap := e.metrics.Snapshot()

	// --- Counters ---

	writeHelp(w, "linerelay_messages_received_total", "Inbound text messages accepted from the webhook")
	writeType(w, "linerelay_messages_received_total", "counter")
	writeCounter(w, "linerelay_messages_received_total", snap.Received)

	writeHelp(w, "linerelay_admission_total", "Admission decisions by result")
	writeType(w, "linerelay_admission_total", "counter")
	writeCounter(w, "linerelay_admission_total", snap.Admitted, "result", "admitted")
	writeCounter(w, "linerelay_admission_total", snap.Rejected, "result", "rejected")

	writeHelp(w, "linerelay_generation_total", "Upstream generation calls by result")
	writeType(w, "linerelay_generation_total", "counter")
	writeCounter(w, "linerelay_generation_total", snap.GenerationOK, "result", "ok")
	writeCounter(w, "linerelay_generation_total", snap.GenerationFailed, "result", "failed")

	writeHelp(w, "linerelay_generation_timeouts_total", "Upstream generation calls that hit the deadline")
	writeType(w, "linerelay_generation_timeouts_total", "counter")
	writeCounter(w, "linerelay_generation_timeouts_total", snap.GenerationTimeouts)

	writeHelp(w, "linerelay_segments_sent_total", "Message segments accepted by the platform")
	writeType(w, "linerelay_segments_sent_total", "counter")
	writeCounter(w, "linerelay_segments_sent_total", snap.SegmentsSent)

	writeHelp(w, "linerelay_deliveries_total", "Platform delivery calls by channel")
	writeType(w, "linerelay_deliveries_total", "counter")
	writeCounter(w, "linerelay_deliveries_total", snap.ReplyDeliveries, "channel", "reply")
	writeCounter(w, "linerelay_deliveries_total", snap.PushDeliveries, "channel", "push")

	writeHelp(w, "linerelay_delivery_failures_total", "Segments the platform did not accept, by channel")
	writeType(w, "linerelay_delivery_failures_total", "counter")
	// Ensure standard channels always appear (even if 0)
	for _, ch := range []string{"reply", "push"} {
		writeCounter(w, "linerelay_delivery_failures_total", snap.DeliveryFailures[ch], "channel", ch)
	}
	for _, ch := range sortedKeys(snap.DeliveryFailures) {
		if ch == "reply" || ch == "push" {
			continue
		}
		writeCounter(w, "linerelay_delivery_failures_total", snap.DeliveryFailures[ch], "channel", ch)
	}

	// --- Gauges ---

	if e.gate != nil {
		stats := e.gate.Stats()

		writeHelp(w, "linerelay_generations_in_flight", "Admission tickets currently held")
		writeType(w, "linerelay_generations_in_flight", "gauge")
		writeGauge(w, "linerelay_generations_in_flight", float64(stats.InUse))

		writeHelp(w, "linerelay_admission_capacity", "Maximum concurrent generation calls")
		writeType(w, "linerelay_admission_capacity", "gauge")
		writeGauge(w, "linerelay_admission_capacity", float64(stats.Capacity))
	}

	// --- Histograms ---

	writeHistogram(w, "linerelay_generation_duration_seconds",
		"Upstream generation latency",
		snap.GenerationLatency,
		generationBuckets)

	return nil
}

// writeHelp writes a HELP line for a metric.
func writeHelp(w io.Writer, name, help string) {
	_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
}

// writeType writes a TYPE line for a metric.
func writeType(w io.Writer, name, metricType string) {
	_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
}

// writeCounter writes a counter metric line.
func writeCounter(w io.Writer, name string, value int64, labelPairs ...string) {
	if len(labelPairs) == 0 {
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
		return
	}
	_, _ = fmt.Fprintf(w, "%s{%s} %d\n", name, formatLabels(labelPairs), value)
}

// writeGauge writes a gauge metric line.
func writeGauge(w io.Writer, name string, value float64) {
	_, _ = fmt.Fprintf(w, "%s %g\n", name, value)
}

// writeHistogram writes a histogram metric with cumulative buckets.
func writeHistogram(w io.Writer, name, help string, samples []time.Duration, buckets []float64) {
	writeHelp(w, name, help)
	writeType(w, name, "histogram")

	seconds := make([]float64, len(samples))
	var sum float64
	for i, d := range samples {
		s := d.Seconds()
		seconds[i] = s
		sum += s
	}
	sort.Float64s(seconds)

	idx := 0
	for _, bucket := range buckets {
		for idx < len(seconds) && seconds[idx] <= bucket {
			idx++
		}
		_, _ = fmt.Fprintf(w, "%s_bucket{le=\"%g\"} %d\n", name, bucket, idx)
	}
	_, _ = fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", name, len(seconds))

	_, _ = fmt.Fprintf(w, "%s_sum %g\n", name, sum)
	_, _ = fmt.Fprintf(w, "%s_count %d\n", name, len(seconds))
}

// formatLabels formats label key-value pairs for Prometheus output.
func formatLabels(pairs []string) string {
	var b strings.Builder
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		value := ""
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		fmt.Fprintf(&b, "%s=\"%s\"", pairs[i], escapeLabel(value))
	}
	return b.String()
}

// escapeLabel escapes special characters in label values.
func escapeLabel(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
