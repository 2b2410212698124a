package main

import (
	"github.com/spf13/cobra"
)

var (
	// logLevelFlag overrides LOG_LEVEL when set
	logLevelFlag string
	// noArchiveFlag skips uploading the run report
	noArchiveFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "dealops",
	Short: "Reconcile deal, account and owner records",
	Long: `dealops keeps deals linked to merchant accounts and mirrors each account's
owner onto its deals. Each subcommand is a standalone batch run that prints
progress and final statistics.

Configuration is read from the environment (and an optional .env file);
DATABASE_URL is required.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error (default: LOG_LEVEL or info)")
	rootCmd.PersistentFlags().BoolVar(&noArchiveFlag, "no-archive", false, "Do not upload the run report to object storage")
}
