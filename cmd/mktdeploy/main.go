package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gmartner/mktdeploy/internal/logger"
)

var (
	// Default values may be set at compile time.
	version   = "0.3.0"
	buildDate = "unknown"
)

var (
	configFile      string
	logLevel        string
	credentialsFile string
)

var log logger.Logger

var rootCmd = &cobra.Command{
	Use:   "mktdeploy",
	Short: "Deploy marketing data connectors and reporting views",
	Long: `mktdeploy validates a marketing deployment config and conditionally
deploys the Google Ads and CM360 connectors plus their BigQuery
reporting views. Connector deploy steps are gated on flags in the
config file and run in parallel once validation passes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logger.New("mktdeploy", logLevel)
	},
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config/marketing_config.json", "Path to the deployment config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&credentialsFile, "credentials-file", "", "Google Cloud credentials file (default: application default credentials)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
