package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tradedesk",
	Short: "Trade desk engine for commodity requirements and availabilities",
	Long: `Runs the trade desk engine: buyer requirements and seller availabilities
with lifecycle transitions, risk prechecks, an event outbox relayed to
pub/sub channels, and the EOD expiry sweep.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
}
