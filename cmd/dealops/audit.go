package main

import (
	"time"

	"github.com/spf13/cobra"

	"dealops/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check that imported deals reference existing accounts",
	Long: `Audit samples imported deals with and without an account and looks up every
referenced account. Missing accounts are reported as NOT FOUND. Read-only.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	started := time.Now()
	report := audit.New(env.store, env.logger, env.cfg.SampleSize).Run(ctx)
	env.finish(ctx, "audit", started, report, ctx.Err())

	printLines(cmd, report.Lines())
	return nil
}
