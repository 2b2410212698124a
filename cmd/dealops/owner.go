package main

import (
	"time"

	"github.com/spf13/cobra"

	"dealops/internal/owner"
)

var deactivateOwnerCmd = &cobra.Command{
	Use:   "deactivate-owner <employee-id>",
	Short: "Hide an employee from owner listings",
	Long: `Deactivate-owner sets the employee's status to inactive. The record and every
deal or account that references it are kept. An unknown id is reported, not
treated as a failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeactivateOwner,
}

func init() {
	rootCmd.AddCommand(deactivateOwnerCmd)
}

func runDeactivateOwner(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	started := time.Now()
	outcome, runErr := owner.New(env.store, env.logger).Deactivate(ctx, args[0])
	env.finish(ctx, "deactivate-owner", started, nil, runErr)
	if runErr != nil {
		return runErr
	}

	printLines(cmd, []string{args[0] + ": " + string(outcome)})
	return nil
}
