// Package banner prints the startup banner and health summary.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alekspetrov/linerelay/internal/config"
	"github.com/alekspetrov/linerelay/internal/health"
)

// Logo is the ASCII art logo for linerelay
const Logo = `
   ██╗     ██╗███╗   ██╗███████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
   ██║     ██║████╗  ██║██╔════╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
   ██║     ██║██╔██╗ ██║█████╗  ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
   ██║     ██║██║╚██╗██║██╔══╝  ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
   ███████╗██║██║ ╚████║███████╗██║  ██║███████╗███████╗██║  ██║   ██║
   ╚══════╝╚═╝╚═╝  ╚═══╝╚══════╝╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// Tagline is the project tagline
const Tagline = "LINE in, answers out"

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var (
	logoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7ec699")) // sage green
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
)

// Print writes the banner with tagline
func Print(w io.Writer) {
	fmt.Fprint(w, logoStyle.Render(Logo))
	fmt.Fprintf(w, "\n   %s\n\n", Tagline)
}

// StartupBanner writes the full startup banner
func StartupBanner(w io.Writer, version, gateway string) {
	Print(w)
	fmt.Fprintf(w, "   Version:  %s\n", version)
	fmt.Fprintf(w, "   Gateway:  %s\n", gateway)
	fmt.Fprintln(w)
}

// StartupWithHealth writes a compact header followed by feature status.
func StartupWithHealth(w io.Writer, version, gateway string, cfg *config.Config) {
	report := health.RunChecks(cfg)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s │ %s\n", titleStyle.Render("LINERELAY "+version), gateway)
	fmt.Fprintln(w, rule)

	var enabled, warnings []string
	for _, f := range report.Features {
		switch f.Status {
		case health.StatusOK:
			enabled = append(enabled, f.Name)
		case health.StatusWarning:
			warnings = append(warnings, f.Name+"*")
		}
	}
	if len(enabled) > 0 {
		fmt.Fprintf(w, "%s %s\n", health.StatusOK.ColorSymbol(), strings.Join(enabled, ", "))
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "%s %s\n", health.StatusWarning.ColorSymbol(), strings.Join(warnings, ", "))
	}

	// Notes for warnings
	for _, f := range report.Features {
		if f.Status == health.StatusWarning && f.Note != "" {
			fmt.Fprintf(w, "  * %s: %s\n", f.Name, f.Note)
		}
	}
	for _, group := range [][]health.Check{report.Endpoints, report.Pipeline} {
		for _, c := range group {
			if c.Status == health.StatusWarning {
				fmt.Fprintf(w, "  * %s: %s\n", c.Name, c.Message)
			}
		}
	}

	if cfg.Pipeline != nil {
		p := cfg.Pipeline
		fmt.Fprintln(w)
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf(
			"Pipeline: %d concurrent, %d-rune segments, push after %s",
			p.MaxConcurrent, p.MaxSegmentLen, p.SafetyThreshold)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Listening... (Ctrl+C to stop)")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
