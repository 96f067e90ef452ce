// Package cmd provides the command-line interface of strandview.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "strandview",
	Short: "Strandview inspects the lifecycle trace databases that tracked " +
		"hosts record.",
	Long: `Strandview inspects the lifecycle trace databases that tracked ` +
		`hosts record. It can summarize a trace database on the command ` +
		`line or serve it to a browser.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
