package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dealops/internal/propagate"
)

var propagateCmd = &cobra.Command{
	Use:   "propagate",
	Short: "Copy account owners onto their deals",
	Long: `Propagate pages through deals that reference an account and sets each deal's
owner to the account's current owner, writing only deals that differ. Deals
without an account lose their owner. Progress is checkpointed after every page
so an interrupted run resumes where it stopped.`,
	Args: cobra.NoArgs,
	RunE: runPropagate,
}

func init() {
	rootCmd.AddCommand(propagateCmd)
}

func runPropagate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	started := time.Now()
	engine := propagate.New(env.store, env.logger, propagate.Options{
		PageSize:    env.cfg.BatchSize,
		Throttle:    env.throttle,
		Checkpoints: env.checkpoints,
		LockTTL:     env.cfg.LockTTL,
		Indexer:     env.indexer(),
	})
	summary, runErr := engine.Run(ctx)

	env.metrics.ObserveResult("propagate", summary.Result)
	if runErr == nil {
		env.metrics.OwnerCoverage.Set(summary.Coverage)
	}
	env.finish(ctx, "propagate", started, summary, runErr)
	if runErr != nil {
		return runErr
	}

	lines := []string{fmt.Sprintf("accounts=%d pages=%d cleared=%d", summary.Accounts, summary.Pages, summary.Cleared)}
	if summary.ResumedAt != "" {
		lines = append(lines, "resumed after "+summary.ResumedAt)
	}
	lines = append(lines, resultLines(summary.Result)...)
	lines = append(lines, fmt.Sprintf("owner coverage: %.1f%%", summary.Coverage*100))
	printLines(cmd, lines)
	return nil
}
