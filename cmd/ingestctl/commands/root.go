package commands

import (
	"github.com/spf13/cobra"

	"github.com/mohammedterryjack/private-ai-data/cmd/ingestctl/ui"
)

var (
	serverURL string
	verbose   bool
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "ingestctl",
	Short: "Command-line client for the file ingestion service",
	Long: `ingestctl uploads images and PDF documents to the file ingestion service,
renders the live processing progress, and manages the stored records.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8000", "base URL of the ingestion API")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print streamed model output while processing")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
