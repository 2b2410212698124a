package main

import (
	"time"

	"github.com/spf13/cobra"

	"dealops/internal/purge"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete synthetic fixture rows",
	Long: `Purge deletes deals, accounts and employees whose ids carry the synthetic
prefix (test_deal_, test_acct_, test_emp_) and reports what remains. Imported
rows are never touched.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	started := time.Now()
	purger := purge.New(env.store, env.logger)
	if env.meili != nil {
		purger.WithIndex(env.meili)
	}
	report := purger.Run(ctx)
	for _, o := range report.Outcomes {
		if o.DeleteErr == nil {
			env.metrics.RowsTotal.WithLabelValues("purge", "deleted").Add(float64(o.Deleted))
		}
	}
	env.finish(ctx, "purge", started, report, ctx.Err())

	printLines(cmd, report.Lines())
	return nil
}
