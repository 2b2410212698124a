package main

import (
	"time"

	"github.com/spf13/cobra"

	"dealops/internal/report"
	"dealops/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print deal counts by owner, division, category and stage",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	started := time.Now()
	r := report.New(env.store, env.logger, env.cfg.DashboardRPC).Build(ctx)
	if _, ok := r.Totals[store.CollectionDeals]; ok {
		env.metrics.OwnerCoverage.Set(r.Coverage)
	}
	env.finish(ctx, "report", started, r, ctx.Err())

	printLines(cmd, r.Lines())
	return nil
}
