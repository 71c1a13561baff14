package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/archonhq/archon/internal/archcheck"
	"github.com/spf13/cobra"
)

var (
	checkRoot   string
	checkRules  string
	checkFormat string
	checkFailOn string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a module tree against architecture rules",
	Long: `Check walks the module tree, builds its import graph, and reports
layer violations, forbidden imports, and dependency cycles.

Exit codes:
  0  no violations at or above the --fail-on severity
  1  violations found
  2  the check itself could not run`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkRoot, "root", ".", "module tree to analyze")
	checkCmd.Flags().StringVar(&checkRules, "rules", "", "YAML rules file (empty uses built-in rules)")
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format: text or json")
	checkCmd.Flags().StringVar(&checkFailOn, "fail-on", "error", "minimum severity that fails the check: error or warning")
}

func runCheck(cmd *cobra.Command, args []string) error {
	threshold := archcheck.Severity(checkFailOn)
	if threshold != archcheck.SeverityError && threshold != archcheck.SeverityWarning {
		return fmt.Errorf("invalid --fail-on value %q", checkFailOn)
	}

	report, err := archcheck.Run(checkRoot, checkRules)
	if err != nil {
		return err
	}

	switch checkFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case "text":
		printReport(cmd, report)
	default:
		return fmt.Errorf("invalid --format value %q", checkFormat)
	}

	if report.CountAtLeast(threshold) > 0 {
		// The report has been printed; the exit code is the verdict.
		os.Exit(1)
	}
	return nil
}

func printReport(cmd *cobra.Command, report *archcheck.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Module:   %s\n", report.ModulePath)
	fmt.Fprintf(out, "Packages: %d\n", report.Packages)
	fmt.Fprintf(out, "Edges:    %d\n", report.Edges)
	fmt.Fprintln(out)

	if len(report.Violations) == 0 {
		fmt.Fprintln(out, "No violations found.")
		return
	}

	for _, v := range report.Violations {
		fmt.Fprintf(out, "[%s] %s: %s\n", v.Severity, v.Rule, v.Message)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%d violation(s), %d cycle(s)\n", len(report.Violations), len(report.Cycles))
}
