package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/linerelay/internal/health"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and credentials",
		Long: `Run health checks on credentials, API endpoints, and pipeline settings.

Shows what's working, what's missing, and how to fix issues.

Examples:
  linerelay doctor           # Run all checks
  linerelay doctor --verbose # Show fix hints`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			report := health.RunChecks(cfg)
			w := cmd.OutOrStdout()

			fmt.Fprintln(w)
			fmt.Fprintln(w, "linerelay Health Check")
			fmt.Fprintln(w, "======================")

			printChecks(w, "Credentials:", report.Credentials, verbose)
			printChecks(w, "Endpoints:", report.Endpoints, verbose)
			printChecks(w, "Pipeline:", report.Pipeline, verbose)

			fmt.Fprintln(w, "\nFeatures:")
			for _, f := range report.Features {
				note := ""
				if f.Note != "" {
					note = " (" + f.Note + ")"
				}
				fmt.Fprintf(w, "  %s %-16s%s\n", f.Status.ColorSymbol(), f.Name, note)
			}
			fmt.Fprintln(w)

			errors, warnings := report.Summary()
			switch {
			case errors > 0:
				fmt.Fprintf(w, "%d error(s), %d warning(s). Run with --verbose for fixes.\n", errors, warnings)
				return fmt.Errorf("not ready to serve")
			case warnings > 0:
				fmt.Fprintf(w, "Ready with %d warning(s).\n", warnings)
			default:
				fmt.Fprintln(w, "Ready to serve.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show fix hints")

	return cmd
}

func printChecks(w io.Writer, title string, checks []health.Check, verbose bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	for _, c := range checks {
		fmt.Fprintf(w, "  %s %-22s %s\n", c.Status.ColorSymbol(), c.Name, c.Message)
		if verbose && c.Fix != "" && c.Status != health.StatusOK {
			fmt.Fprintf(w, "      → %s\n", c.Fix)
		}
	}
}
