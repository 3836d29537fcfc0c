// Package cli implements the hansik command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds flags shared across commands.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "hansik",
	Short: "Grounded Korean recipe Q&A server",
	Long:  "hansik answers cooking questions by grounding LLM generations in a retrieved recipe corpus, with hybrid retrieval and a corrective verification loop.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "hansik.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
