package main

import (
	"time"

	"github.com/spf13/cobra"

	"dealops/internal/seed"
)

var (
	seedEmployees int
	seedAccounts  int
	seedDeals     int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert synthetic fixture rows",
	Long: `Seed inserts synthetic employees, accounts owned by them and unlinked deals.
All ids carry the synthetic prefix so purge removes them again. Run assign and
propagate afterwards to link the new deals.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedEmployees, "employees", 0, "Employees to create (default: DEALOPS_SEED_EMPLOYEES)")
	seedCmd.Flags().IntVar(&seedAccounts, "accounts", 0, "Accounts to create (default: DEALOPS_SEED_ACCOUNTS)")
	seedCmd.Flags().IntVar(&seedDeals, "deals", 0, "Deals to create (default: DEALOPS_SEED_DEALS)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	opts := seed.Options{
		Employees: env.cfg.SeedEmployees,
		Accounts:  env.cfg.SeedAccounts,
		Deals:     env.cfg.SeedDeals,
	}
	if cmd.Flags().Changed("employees") {
		opts.Employees = seedEmployees
	}
	if cmd.Flags().Changed("accounts") {
		opts.Accounts = seedAccounts
	}
	if cmd.Flags().Changed("deals") {
		opts.Deals = seedDeals
	}

	started := time.Now()
	summary, runErr := seed.New(env.store, env.logger, env.throttle).Run(ctx, opts)
	env.metrics.ObserveResult("seed", summary.Total())
	env.finish(ctx, "seed", started, nil, runErr)
	if runErr != nil {
		return runErr
	}

	printLines(cmd, summary.Lines())
	return nil
}
