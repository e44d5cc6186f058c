// Package cmd provides the command-line interface of the width bridge
// simulator.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "widthbridge",
	Short: "Simulate a width-adapting transaction bridge.",
	Long: `widthbridge simulates a bridge that translates word-count-based ` +
		`read and write transactions from a narrow data source into burst ` +
		`commands on a wide memory backend, packing and unpacking the data ` +
		`between the two word widths.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Flags not set on the command line fall back to WIDTHBRIDGE_*
		// variables from the environment or a local .env file.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
