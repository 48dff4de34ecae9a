package briefs

import (
	"fmt"
	"strings"
	"time"
)

// Formatter formats briefs for delivery
type Formatter interface {
	Format(brief *Brief) (string, error)
}

// PlainTextFormatter formats briefs as plain text
type PlainTextFormatter struct{}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter() *PlainTextFormatter {
	return &PlainTextFormatter{}
}

// Format formats a brief as plain text
func (f *PlainTextFormatter) Format(brief *Brief) (string, error) {
	var sb strings.Builder
	t := brief.Traffic

	sb.WriteString(fmt.Sprintf("LINERELAY BRIEF %s\n", brief.GeneratedAt.Format("Jan 2, 2006 15:04")))
	sb.WriteString(fmt.Sprintf("Period: %s\n", formatDuration(brief.Period.End.Sub(brief.Period.Start))))
	sb.WriteString(strings.Repeat("=", 30) + "\n\n")

	sb.WriteString("TRAFFIC\n")
	sb.WriteString(strings.Repeat("-", 30) + "\n")
	sb.WriteString(fmt.Sprintf("  Received: %d\n", t.Received))
	sb.WriteString(fmt.Sprintf("  Admitted: %d, busy: %d\n", t.Admitted, t.Rejected))
	sb.WriteString("\n")

	sb.WriteString("GENERATION\n")
	sb.WriteString(strings.Repeat("-", 30) + "\n")
	sb.WriteString(fmt.Sprintf("  Success rate: %.0f%% (%d/%d)\n",
		t.SuccessRate()*100, t.GenerationOK, t.GenerationOK+t.GenerationFailed))
	if t.GenerationTimeouts > 0 {
		sb.WriteString(fmt.Sprintf("  Timeouts: %d\n", t.GenerationTimeouts))
	}
	if brief.Latency.Samples > 0 {
		sb.WriteString(fmt.Sprintf("  Latency p50 %s, p95 %s, max %s\n",
			formatDuration(brief.Latency.P50),
			formatDuration(brief.Latency.P95),
			formatDuration(brief.Latency.Max)))
	}
	sb.WriteString("\n")

	sb.WriteString("DELIVERY\n")
	sb.WriteString(strings.Repeat("-", 30) + "\n")
	sb.WriteString(fmt.Sprintf("  Segments sent: %d (push: %d)\n", t.SegmentsSent, t.PushDeliveries))
	if t.DeliveryFailures > 0 {
		sb.WriteString(fmt.Sprintf("  Failed: %d\n", t.DeliveryFailures))
	}

	if brief.Gate.Capacity > 0 {
		sb.WriteString(fmt.Sprintf("\nIn flight: %d/%d\n", brief.Gate.InUse, brief.Gate.Capacity))
	}

	return sb.String(), nil
}

// formatDuration formats a duration for humans.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
