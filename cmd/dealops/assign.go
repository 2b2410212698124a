package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dealops/internal/assign"
	"dealops/internal/checkpoint"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign every deal to a merchant account",
	Long: `Assign walks all deals and accounts ordered by id. Every 20th deal (position
0, 20, 40, ...) is left unassigned; the rest are spread round-robin over the
accounts and take the account's owner. The result is deterministic, so a
repeated run writes nothing. Assign and propagate share one lock, so only one
of them writes deal owners at a time.`,
	Args: cobra.NoArgs,
	RunE: runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	started := time.Now()
	engine := assign.New(env.store, env.logger, assign.Options{
		PageSize: env.cfg.BatchSize,
		Throttle: env.throttle,
	})
	release, err := env.checkpoints.Acquire(ctx, checkpoint.ReconcileLock, env.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", checkpoint.ReconcileLock, err)
	}
	summary, runErr := engine.Run(ctx)
	if err := release(context.WithoutCancel(ctx)); err != nil {
		env.logger.Warn("release reconcile lock", zap.Error(err))
	}

	env.metrics.ObserveResult("assign", summary.Result)
	env.finish(ctx, "assign", started, summary, runErr)
	if runErr != nil {
		return runErr
	}

	printLines(cmd, []string{
		fmt.Sprintf("accounts=%d deals=%d assigned=%d unassigned=%d",
			summary.Accounts, summary.Deals, summary.Assigned, summary.Unassigned),
	})
	printLines(cmd, resultLines(summary.Result))
	return nil
}
