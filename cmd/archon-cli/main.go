// The archon-cli command runs architecture checks locally and in CI,
// without the service, the database, or the queue: point it at a module
// tree and get a violation report plus a meaningful exit code.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "archon-cli",
	Short: "Architecture standards checker for Go modules",
	Long: `archon-cli analyzes a Go module's import graph against architecture
standards: layer rules (who may import whom), forbidden imports, and
dependency cycles.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}
